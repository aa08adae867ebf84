package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/insightduck/insightduck/internal/auth"
	"github.com/insightduck/insightduck/internal/projects"
	"github.com/insightduck/insightduck/internal/store"
)

type ctxKey int

const (
	userKey ctxKey = iota
	projectKey
)

// currentUser returns the authenticated user stored by the auth middleware.
func currentUser(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey).(*auth.User)
	return u
}

// currentProject returns the project resolved by withProject.
func currentProject(ctx context.Context) *projects.Project {
	p, _ := ctx.Value(projectKey).(*projects.Project)
	return p
}

// authenticate extracts the bearer token and resolves it to a user.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := s.resolver.ResolveUser(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// assignWorker spreads requests across the accessor's cached connections.
func (s *Server) assignWorker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		worker := int(s.nextWorker.Add(1)) % s.workers
		next.ServeHTTP(w, r.WithContext(store.WithWorker(r.Context(), worker)))
	})
}

// withProject resolves {projectID}, enforces ownership and stores the
// project in the request context.
func (s *Server) withProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
		if err != nil {
			s.writeError(w, r, errBadRequest("project id must be an integer"))
			return
		}

		project, err := s.meta.GetProject(r.Context(), currentUser(r.Context()).ID, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), projectKey, project)))
	})
}

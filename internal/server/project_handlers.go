package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/ingest"
	"github.com/insightduck/insightduck/internal/projects"
)

// maxUploadBytes bounds multipart CSV uploads.
const maxUploadBytes = 256 << 20

type projectResponse struct {
	Project *projects.Project `json:"project"`
	Profile any               `json:"profile"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.meta.ListProjects(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

// handleUpload ingests a multipart CSV file as a new project.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, errBadRequest("invalid multipart form: "+err.Error()))
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, errBadRequest("missing file field"))
		return
	}
	defer func() { _ = f.Close() }()

	header, rows, err := ingest.ReadCSV(f)
	if err != nil {
		s.writeError(w, r, errBadRequest(err.Error()))
		return
	}

	name := r.FormValue("project_name")
	if name == "" {
		name = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	if name == "" {
		s.writeError(w, r, errBadRequest("missing project_name"))
		return
	}

	s.createProject(w, r, name, header, rows)
}

type kaggleImportRequest struct {
	DatasetRef  string `json:"dataset_ref"`
	ProjectName string `json:"project_name"`
}

// handleKaggleImport downloads a Kaggle dataset with the user's stored
// credentials and ingests its first CSV as a new project.
func (s *Server) handleKaggleImport(w http.ResponseWriter, r *http.Request) {
	var req kaggleImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid json body: "+err.Error()))
		return
	}
	if req.DatasetRef == "" {
		s.writeError(w, r, errBadRequest("missing dataset_ref"))
		return
	}

	username, key, err := s.kaggleCredentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	client, err := ingest.NewKaggleClient(username, key)
	if err != nil {
		s.writeError(w, r, errBadRequest(err.Error()))
		return
	}

	ds, err := client.DownloadFirstCSV(r.Context(), req.DatasetRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := req.ProjectName
	if name == "" {
		name = strings.TrimSuffix(ds.FileName, filepath.Ext(ds.FileName))
	}
	s.createProject(w, r, name, ds.Header, ds.Rows)
}

// createProject records project metadata, ingests the rows into the
// project's table and responds with the fresh profile.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request, name string, header []string, rows [][]string) {
	ctx := r.Context()

	storageName := uuid.New().String() + ".csv"
	project, err := s.meta.CreateProject(ctx, currentUser(ctx).ID, name, storageName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.loader.CreateOrReplaceTable(ctx, projects.TableName(project.ID), header, rows); err != nil {
		// Keep metadata and table contents consistent.
		_ = s.meta.DeleteProject(ctx, project.UserID, project.ID)
		s.writeError(w, r, err)
		return
	}

	prof, err := s.profiler.DataProfile(ctx, projects.TableName(project.ID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: project, Profile: prof})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := currentProject(ctx)

	lock := s.projectLock(project.ID)
	lock.Lock()
	defer lock.Unlock()

	conn, err := s.store.Conn(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident.Quote(projects.TableName(project.ID))); err != nil {
		s.writeError(w, r, fmt.Errorf("failed to drop project table: %w", err))
		return
	}
	if err := s.meta.DeleteProject(ctx, project.UserID, project.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type kaggleCredentialsRequest struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

func (s *Server) handleSaveKaggleCredentials(w http.ResponseWriter, r *http.Request) {
	if s.box == nil {
		s.writeError(w, r, errBadRequest("credential storage is not configured"))
		return
	}

	var req kaggleCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errBadRequest("invalid json body: "+err.Error()))
		return
	}
	if req.Username == "" || req.Key == "" {
		s.writeError(w, r, errBadRequest("missing username or key"))
		return
	}

	plaintext, err := json.Marshal(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sealed, err := s.box.Seal(plaintext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.meta.SaveKaggleCredentials(r.Context(), currentUser(r.Context()).ID, sealed); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// kaggleCredentials opens the caller's stored credentials.
func (s *Server) kaggleCredentials(r *http.Request) (username, key string, err error) {
	if s.box == nil {
		return "", "", errBadRequest("credential storage is not configured")
	}

	sealed, err := s.meta.KaggleCredentials(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		return "", "", err
	}
	plaintext, err := s.box.Open(sealed)
	if err != nil {
		return "", "", err
	}

	var creds kaggleCredentialsRequest
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return "", "", fmt.Errorf("failed to decode stored credentials: %w", err)
	}
	return creds.Username, creds.Key, nil
}

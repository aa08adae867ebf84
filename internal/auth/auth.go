// Package auth resolves bearer tokens to user identities.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned for missing, malformed, expired or otherwise
// rejected tokens.
var ErrUnauthorized = errors.New("invalid or expired token")

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserResolver turns a bearer token into a User.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*User, error)
}

// SupabaseResolver validates tokens against a Supabase GoTrue endpoint.
type SupabaseResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSupabaseResolver creates a resolver for the given Supabase project
// URL and anon API key.
func NewSupabaseResolver(baseURL, apiKey string) (*SupabaseResolver, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("missing supabase url or api key")
	}
	return &SupabaseResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ResolveUser asks Supabase who the token belongs to. Any rejection maps
// to ErrUnauthorized; transport failures are reported as such.
func (r *SupabaseResolver) ResolveUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

// StaticResolver accepts every non-empty token as a fixed local user.
// Meant for development without a Supabase project.
type StaticResolver struct {
	UserID string
}

// ResolveUser implements UserResolver.
func (r *StaticResolver) ResolveUser(_ context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	id := r.UserID
	if id == "" {
		id = "local-dev"
	}
	return &User{ID: id}, nil
}

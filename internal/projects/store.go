// Package projects keeps per-user project metadata and stored Kaggle
// credentials in SQLite. Dataset contents live in the analytic store;
// this package only records who owns which project table.
package projects

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrProjectNotFound is returned when a project does not exist or is not
// owned by the requesting user. The two cases are deliberately
// indistinguishable.
var ErrProjectNotFound = errors.New("project not found")

// ErrNoCredentials is returned when a user has no stored Kaggle
// credentials. Distinct from a decryption failure on stored ones.
var ErrNoCredentials = errors.New("no kaggle credentials stored")

// Project is one uploaded or imported dataset owned by a user.
type Project struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	ProjectName     string    `json:"project_name"`
	StorageFileName string    `json:"storage_file_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the analytic-store table holding a project's data.
func TableName(projectID int64) string {
	return "project_" + strconv.FormatInt(projectID, 10)
}

// Store is the SQLite-backed metadata store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates an unopened Store.
func NewStore() *Store {
	return &Store{}
}

// Open opens the SQLite database and initializes the schema.
// Use ":memory:" for an in-memory database.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open metadata database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping metadata database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize metadata schema: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateProject records a new project and returns it with its assigned ID.
func (s *Store) CreateProject(ctx context.Context, userID, projectName, storageFileName string) (*Project, error) {
	if s.db == nil {
		return nil, fmt.Errorf("metadata database not opened")
	}

	p := &Project{
		UserID:          userID,
		ProjectName:     projectName,
		StorageFileName: storageFileName,
		CreatedAt:       time.Now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO user_projects (user_id, project_name, storage_file_name, created_at) VALUES (?, ?, ?, ?)`,
		p.UserID, p.ProjectName, p.StorageFileName, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read project id: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID, scoped to its owner.
func (s *Store) GetProject(ctx context.Context, userID string, projectID int64) (*Project, error) {
	if s.db == nil {
		return nil, fmt.Errorf("metadata database not opened")
	}

	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, project_name, storage_file_name, created_at
		 FROM user_projects WHERE id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&p.ID, &p.UserID, &p.ProjectName, &p.StorageFileName, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects retrieves all projects owned by a user, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	if s.db == nil {
		return nil, fmt.Errorf("metadata database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, project_name, storage_file_name, created_at
		 FROM user_projects WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProjectName, &p.StorageFileName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project record, scoped to its owner.
func (s *Store) DeleteProject(ctx context.Context, userID string, projectID int64) error {
	if s.db == nil {
		return fmt.Errorf("metadata database not opened")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_projects WHERE id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// SaveKaggleCredentials stores (or replaces) a user's sealed credentials.
func (s *Store) SaveKaggleCredentials(ctx context.Context, userID string, ciphertext []byte) error {
	if s.db == nil {
		return fmt.Errorf("metadata database not opened")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kaggle_credentials (user_id, ciphertext, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`,
		userID, ciphertext, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save kaggle credentials: %w", err)
	}
	return nil
}

// KaggleCredentials retrieves a user's sealed credentials.
func (s *Store) KaggleCredentials(ctx context.Context, userID string) ([]byte, error) {
	if s.db == nil {
		return nil, fmt.Errorf("metadata database not opened")
	}

	var ciphertext []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT ciphertext FROM kaggle_credentials WHERE user_id = ?`, userID,
	).Scan(&ciphertext)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kaggle credentials: %w", err)
	}
	return ciphertext, nil
}

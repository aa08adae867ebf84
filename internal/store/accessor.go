// Package store owns access to the shared on-disk DuckDB analytic store.
// All other components acquire a connection through the Accessor instead of
// holding database state of their own.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

type workerKeyType struct{}

var workerKey workerKeyType

// WithWorker tags the context with a worker identity. Connections are cached
// per worker; two requests carrying the same worker id reuse one connection,
// requests on different workers never share one.
func WithWorker(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey, id)
}

// WorkerID returns the worker identity carried by the context, or 0.
func WorkerID(ctx context.Context) int {
	if id, ok := ctx.Value(workerKey).(int); ok {
		return id
	}
	return 0
}

// Accessor lazily opens and caches one DuckDB connection per worker identity.
// The zero worker is used when the context carries no identity, so
// single-threaded callers (tests, CLI) never need to tag their contexts.
type Accessor struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	conns map[int]*sql.Conn
}

// Open opens the analytic store file and verifies the connection.
// Use ":memory:" as the path for an in-memory store.
func Open(path string, logger *slog.Logger) (*Accessor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb store: %w", err)
	}

	logger.Debug("analytic store opened", "path", path)

	return &Accessor{
		db:     db,
		path:   path,
		logger: logger,
		conns:  make(map[int]*sql.Conn),
	}, nil
}

// Conn returns the connection bound to the context's worker identity,
// opening and caching it on first use.
func (a *Accessor) Conn(ctx context.Context) (*sql.Conn, error) {
	id := WorkerID(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if conn, ok := a.conns[id]; ok {
		return conn, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store connection: %w", err)
	}

	a.logger.Debug("store connection opened", "worker", id)
	a.conns[id] = conn
	return conn, nil
}

// Path returns the on-disk location of the store file.
func (a *Accessor) Path() string {
	return a.path
}

// Close releases all cached connections and the underlying database handle.
func (a *Accessor) Close() error {
	a.mu.Lock()
	for id, conn := range a.conns {
		_ = conn.Close()
		delete(a.conns, id)
	}
	a.mu.Unlock()

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close duckdb store: %w", err)
	}
	return nil
}

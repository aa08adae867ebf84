package store

import (
	"errors"
	"strings"
)

// ErrTableNotFound marks a reference to a table (or column) that does not
// exist in the analytic store. Callers map this to a not-found response.
var ErrTableNotFound = errors.New("table does not exist")

// NotFound reports whether err is the not-found taxonomy class, either the
// sentinel itself or a DuckDB catalog error carrying a "does not exist"
// style message.
func NotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTableNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}

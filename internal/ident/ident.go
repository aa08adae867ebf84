// Package ident validates and normalizes identifier fragments (table and
// column names) before they are interpolated into generated SQL.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// validName is the strict allow-list for caller-supplied identifiers.
	validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	camelBoundary = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerToUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// reservedWords are SQL keywords that must not appear bare as identifiers.
var reservedWords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "insert": {}, "update": {},
	"delete": {}, "drop": {}, "create": {}, "alter": {}, "table": {},
	"join": {}, "union": {}, "group": {}, "order": {}, "by": {},
	"having": {}, "limit": {}, "distinct": {}, "values": {}, "set": {},
	"into": {}, "and": {}, "or": {}, "not": {}, "null": {}, "as": {},
}

// Validate checks a caller-supplied identifier against the strict allow-list:
// non-empty, leading letter or underscore, alphanumeric and underscore only,
// and not a reserved word. Mutating operations reject rather than transform.
func Validate(raw string) error {
	if raw == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if !validName.MatchString(raw) {
		return fmt.Errorf("invalid identifier %q: only letters, digits and underscores are allowed", raw)
	}
	if _, ok := reservedWords[strings.ToLower(raw)]; ok {
		return fmt.Errorf("invalid identifier %q: reserved word", raw)
	}
	return nil
}

// Quote prepares an identifier for interpolation into generated SQL.
// Backticks and semicolons are stripped, interior double quotes are doubled,
// and the result is wrapped in double quotes.
func Quote(raw string) string {
	s := strings.NewReplacer("`", "", ";", "").Replace(raw)
	s = strings.ReplaceAll(s, `"`, `""`)
	return `"` + s + `"`
}

// Snake converts a column name to the normalized naming convention used by
// the structural cleaner: case boundaries become underscores, the result is
// lower-cased, and every character outside [A-Za-z0-9_] is removed.
func Snake(raw string) string {
	s := camelBoundary.ReplaceAllString(raw, `${1}_${2}`)
	s = lowerToUpper.ReplaceAllString(s, `${1}_${2}`)
	s = strings.ToLower(s)
	return nonIdentChars.ReplaceAllString(s, "")
}

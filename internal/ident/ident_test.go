package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "customers", false},
		{"underscore prefix", "_private", false},
		{"digits", "project_42", false},
		{"empty", "", true},
		{"leading digit", "1st_column", true},
		{"semicolon", "users; DROP TABLE users", true},
		{"quote", `users"`, true},
		{"space", "first name", true},
		{"reserved word", "select", true},
		{"reserved word upper", "DROP", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"age", `"age"`},
		{"first name", `"first name"`},
		{"drop`table", `"droptable"`},
		{"a;b", `"ab"`},
		{`he said "hi"`, `"he said ""hi"""`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.input), "Quote(%q)", tt.input)
	}
}

func TestSnake(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CustomerName", "customer_name"},
		{"Total Price", "total_price"},
		{"orderID", "order_id"},
		{"already_snake", "already_snake"},
		{"Weird%Chars!", "weird_chars"},
		{"HTTPStatus", "http_status"},
		{"age", "age"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Snake(tt.input), "Snake(%q)", tt.input)
	}
}

// Snake must be a fixed point on its own output so the structural cleaner is
// idempotent.
func TestSnakeIdempotent(t *testing.T) {
	for _, in := range []string{"CustomerName", "Total Price", "orderID", "a1B2c3"} {
		once := Snake(in)
		assert.Equal(t, once, Snake(once))
	}
}

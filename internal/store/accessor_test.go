package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenInMemory(t *testing.T) {
	a, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	defer a.Close()
}

func TestOpenFileBased(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "insightduck.db")

	a, err := Open(path, nil)
	if err != nil {
		t.Fatalf("failed to open file-based store: %v", err)
	}
	defer a.Close()

	if _, err := a.Conn(context.Background()); err != nil {
		t.Fatalf("failed to acquire connection: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("store file was not created")
	}
}

func TestConnCachedPerWorker(t *testing.T) {
	a, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer a.Close()

	ctx1 := WithWorker(context.Background(), 1)
	ctx2 := WithWorker(context.Background(), 2)

	c1, err := a.Conn(ctx1)
	if err != nil {
		t.Fatalf("worker 1 conn: %v", err)
	}
	c1again, err := a.Conn(ctx1)
	if err != nil {
		t.Fatalf("worker 1 conn again: %v", err)
	}
	if c1 != c1again {
		t.Error("same worker should reuse its cached connection")
	}

	c2, err := a.Conn(ctx2)
	if err != nil {
		t.Fatalf("worker 2 conn: %v", err)
	}
	if c1 == c2 {
		t.Error("different workers must not share a connection")
	}
}

func TestConnDefaultWorker(t *testing.T) {
	a, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer a.Close()

	// Untagged contexts all resolve to worker 0.
	c1, err := a.Conn(context.Background())
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	c2, err := a.Conn(context.Background())
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	if c1 != c2 {
		t.Error("untagged contexts should share the default worker connection")
	}
}

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nan", math.NaN(), nil},
		{"pos inf", math.Inf(1), nil},
		{"neg inf", math.Inf(-1), nil},
		{"finite", 1.5, 1.5},
		{"bytes", []byte("abc"), "abc"},
		{"string", "x", "x"},
		{"nil", nil, nil},
		{"int", int64(7), int64(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeValue(tt.in); got != tt.want {
				t.Errorf("SanitizeValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadFirstCSV(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"README.md":      "docs",
		"data/sales.csv": "city,amount\nberlin,10\nparis,20\n",
	})

	var gotPath, gotUser, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotKey, _ = r.BasicAuth()
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	c, err := NewKaggleClient("alice", "secret")
	require.NoError(t, err)
	c.baseURL = srv.URL

	ds, err := c.DownloadFirstCSV(context.Background(), "owner/dataset")
	require.NoError(t, err)

	assert.Equal(t, "/datasets/download/owner/dataset", gotPath)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "secret", gotKey)

	assert.Equal(t, "sales.csv", ds.FileName)
	assert.Equal(t, []string{"city", "amount"}, ds.Header)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"berlin", "10"}, ds.Rows[0])
}

func TestDownloadFirstCSVNoCSVInArchive(t *testing.T) {
	archive := zipArchive(t, map[string]string{"README.md": "docs"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	c, err := NewKaggleClient("alice", "secret")
	require.NoError(t, err)
	c.baseURL = srv.URL

	_, err = c.DownloadFirstCSV(context.Background(), "owner/dataset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no csv")
}

func TestDownloadFirstCSVBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewKaggleClient("alice", "wrong")
	require.NoError(t, err)
	c.baseURL = srv.URL

	_, err = c.DownloadFirstCSV(context.Background(), "owner/dataset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestDownloadFirstCSVBadRef(t *testing.T) {
	c, err := NewKaggleClient("alice", "secret")
	require.NoError(t, err)

	for _, ref := range []string{"", "justowner", "a/b/c"} {
		_, err := c.DownloadFirstCSV(context.Background(), ref)
		assert.Error(t, err, ref)
	}
}

func TestNewKaggleClientRequiresCredentials(t *testing.T) {
	_, err := NewKaggleClient("", "key")
	assert.Error(t, err)
	_, err = NewKaggleClient("user", "")
	assert.Error(t, err)
}

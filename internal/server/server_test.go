package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightduck/insightduck/internal/auth"
	"github.com/insightduck/insightduck/internal/projects"
	"github.com/insightduck/insightduck/internal/secrets"
	"github.com/insightduck/insightduck/internal/store"
	"github.com/insightduck/insightduck/internal/testutil"
)

const testSecretKey = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	accessor, err := store.Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accessor.Close() })

	meta := projects.NewStore()
	require.NoError(t, meta.Open(":memory:"))
	t.Cleanup(func() { _ = meta.Close() })

	box, err := secrets.NewBox(testSecretKey)
	require.NoError(t, err)

	s := NewServer(Config{
		Workers:  2,
		Store:    accessor,
		Meta:     meta,
		Resolver: &auth.StaticResolver{},
		Box:      box,
		Logger:   testutil.NewTestLogger(t),
	})

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-token")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

func uploadCSV(t *testing.T, srv *httptest.Server, projectName, csvContent string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("project_name", projectName))
	fw, err := mw.CreateFormFile("file", projectName+".csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/projects/upload", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	return created
}

func projectID(t *testing.T, created map[string]any) int64 {
	t.Helper()
	project, ok := created["project"].(map[string]any)
	require.True(t, ok)
	return int64(project["id"].(float64))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadAndProfile(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "city,amount\nberlin,10\nparis,20\nberlin,10\n")
	id := projectID(t, created)

	profile, ok := created["profile"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, profile["total_rows"])
	assert.EqualValues(t, 2, profile["total_columns"])
	assert.EqualValues(t, 1, profile["duplicates_count"])

	resp, raw := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/profile", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var prof map[string]any
	require.NoError(t, json.Unmarshal(raw, &prof))
	assert.EqualValues(t, 3, prof["total_rows"])
}

func TestListProjects(t *testing.T) {
	srv := newTestServer(t)

	uploadCSV(t, srv, "first", "a\n1\n")
	uploadCSV(t, srv, "second", "a\n1\n")

	resp, raw := doRequest(t, http.MethodGet, srv.URL+"/api/projects", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Projects []map[string]any `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Projects, 2)
}

func TestUnknownProjectIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/projects/999/profile", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/projects/abc/profile", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversionFlow(t *testing.T) {
	srv := newTestServer(t)

	// The second column keeps the empty age value alive: a blank line in a
	// single-column CSV would be skipped by the reader entirely.
	created := uploadCSV(t, srv, "sales", "age,city\n29,berlin\n31,paris\n,hamburg\n29,berlin\n")
	id := projectID(t, created)

	resp, raw := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/conversion-suggestions", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var suggestions struct {
		Suggestions []struct {
			Column        string  `json:"column_name"`
			SuggestedType string  `json:"suggested_type"`
			Confidence    float64 `json:"confidence"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(raw, &suggestions))
	require.Len(t, suggestions.Suggestions, 1)
	assert.Equal(t, "age", suggestions.Suggestions[0].Column)
	assert.Equal(t, "DOUBLE", suggestions.Suggestions[0].SuggestedType)
	assert.InDelta(t, 1.0, suggestions.Suggestions[0].Confidence, 1e-9)

	body := strings.NewReader(`{"conversions": [{"column_name": "age", "new_type": "DOUBLE"}]}`)
	resp, raw = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%d/conversions", srv.URL, id), body, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var result struct {
		Report struct {
			Status string `json:"status"`
		} `json:"report"`
		Profile struct {
			Schema []struct {
				Name string `json:"column_name"`
				Type string `json:"column_type"`
			} `json:"schema"`
			NullCounts map[string]int64 `json:"null_counts"`
			TotalRows  int64            `json:"total_rows"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "success", result.Report.Status)
	require.Len(t, result.Profile.Schema, 2)
	assert.Equal(t, "age", result.Profile.Schema[0].Name)
	assert.Equal(t, "DOUBLE", result.Profile.Schema[0].Type)
	assert.EqualValues(t, 4, result.Profile.TotalRows)

	// The empty age value became NULL under the new type.
	assert.Equal(t, map[string]int64{"age": 1}, result.Profile.NullCounts)
}

func TestAutoCleanEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "Customer Name,City\n alice ,berlin\nN/A,paris\n")
	id := projectID(t, created)

	resp, raw := doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%d/auto-clean", srv.URL, id), strings.NewReader("{}"), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var result struct {
		Profile struct {
			Schema []struct {
				Name string `json:"column_name"`
			} `json:"schema"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	names := make([]string, 0, len(result.Profile.Schema))
	for _, col := range result.Profile.Schema {
		names = append(names, col.Name)
	}
	assert.Contains(t, names, "customer_name")
	assert.NotContains(t, names, "Customer Name")
}

func TestDuplicatesEndpoints(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "a,b\n1,x\n1,x\n2,y\n")
	id := projectID(t, created)

	resp, raw := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/duplicates", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Exact struct {
			Count int64 `json:"count"`
		} `json:"exact_duplicates"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.EqualValues(t, 1, report.Exact.Count)

	var result struct {
		Report struct {
			Status string `json:"status"`
		} `json:"report"`
		Profile struct {
			TotalRows int64 `json:"total_rows"`
		} `json:"profile"`
	}

	// An unrecognized strategy is reported as skipped and changes nothing.
	body := strings.NewReader(`{"strategy": "remove_exact"}`)
	resp, raw = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%d/duplicates/handle", srv.URL, id), body, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "skipped", result.Report.Status)
	assert.EqualValues(t, 3, result.Profile.TotalRows)

	body = strings.NewReader(`{"strategy": "remove_exact_duplicates"}`)
	resp, raw = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%d/duplicates/handle", srv.URL, id), body, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "success", result.Report.Status)
	assert.EqualValues(t, 2, result.Profile.TotalRows)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "a\n1\n2\n")
	id := projectID(t, created)

	resp, raw := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/export", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "sales.csv")
	assert.Equal(t, "a\n1\n2\n", string(raw))
}

func TestChartDataEndpoint(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "city\nberlin\nberlin\nparis\n")
	id := projectID(t, created)

	resp, raw := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/chart-data?chart_type=bar_chart&x_axis=city", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(raw, &data))
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "berlin", data.Rows[0]["city"])
}

func TestChartSuggestionsUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "a\n1\n")
	id := projectID(t, created)

	resp, _ := doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/chart-suggestions", srv.URL, id), nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestKaggleCredentialsFlow(t *testing.T) {
	srv := newTestServer(t)

	// Import before storing credentials fails with a client error.
	body := strings.NewReader(`{"dataset_ref": "owner/dataset"}`)
	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/projects/kaggle", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = strings.NewReader(`{"username": "alice", "key": "secret"}`)
	resp, raw := doRequest(t, http.MethodPost, srv.URL+"/api/projects/kaggle/credentials", body, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	body = strings.NewReader(`{"username": "", "key": ""}`)
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/projects/kaggle/credentials", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteProject(t *testing.T) {
	srv := newTestServer(t)

	created := uploadCSV(t, srv, "sales", "a\n1\n")
	id := projectID(t, created)

	resp, _ := doRequest(t, http.MethodDelete,
		fmt.Sprintf("%s/api/projects/%d", srv.URL, id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/projects/%d/profile", srv.URL, id), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const defaultKaggleBaseURL = "https://www.kaggle.com/api/v1"

// maxKaggleArchiveBytes bounds how much of a dataset archive is read into
// memory.
const maxKaggleArchiveBytes = 512 << 20

// KaggleClient downloads datasets from the Kaggle v1 API. A client is
// built fresh from explicit per-user credentials; nothing is read from
// the environment or a shared credential file.
type KaggleClient struct {
	username string
	key      string
	baseURL  string
	client   *http.Client
}

// NewKaggleClient creates a client for the given credentials.
func NewKaggleClient(username, key string) (*KaggleClient, error) {
	if username == "" || key == "" {
		return nil, fmt.Errorf("missing Kaggle credentials")
	}
	return &KaggleClient{
		username: username,
		key:      key,
		baseURL:  defaultKaggleBaseURL,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// CSVDataset is the first CSV file found inside a downloaded dataset
// archive.
type CSVDataset struct {
	FileName string
	Header   []string
	Rows     [][]string
}

// DownloadFirstCSV fetches the dataset archive for a "owner/dataset" ref
// and parses the first CSV file it contains.
func (c *KaggleClient) DownloadFirstCSV(ctx context.Context, ref string) (*CSVDataset, error) {
	ref = strings.Trim(ref, "/")
	if strings.Count(ref, "/") != 1 {
		return nil, fmt.Errorf("dataset ref %q must look like owner/dataset", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/datasets/download/"+ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kaggle download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("kaggle rejected the credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kaggle download returned status %d", resp.StatusCode)
	}

	archive, err := io.ReadAll(io.LimitReader(resp.Body, maxKaggleArchiveBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset archive: %w", err)
	}

	return firstCSVFromZip(archive)
}

func firstCSVFromZip(archive []byte) (*CSVDataset, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset archive: %w", err)
	}

	for _, f := range zr.File {
		if strings.ToLower(path.Ext(f.Name)) != ".csv" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		header, rows, err := ReadCSV(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		return &CSVDataset{FileName: path.Base(f.Name), Header: header, Rows: rows}, nil
	}
	return nil, fmt.Errorf("dataset archive contains no csv file")
}

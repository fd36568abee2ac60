package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// APIError is a non-success response from the datasets API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("datasets API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("datasets API returned %d: %s", e.StatusCode, e.Message)
}

type datasetInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	ProjectID           string   `json:"projectId"`
	ReadWriteSnapshotID string   `json:"readWriteSnapshotId"`
	SnapshotIDs         []string `json:"snapshotIds"`
}

type datasetEnvelope struct {
	Dataset datasetInfo `json:"dataset"`
}

type fileRow struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	SizeInBytes  int64     `json:"sizeInBytes"`
	LastModified time.Time `json:"lastModified"`
	IsDirectory  bool      `json:"isDirectory"`
}

type fileRows struct {
	Rows []fileRow `json:"rows"`
}

// APIClientFactory creates clients for the vendor datasets REST API.
type APIClientFactory struct {
	Host string
	// HTTPClient is the base client the bearer transport wraps. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (f *APIClientFactory) NewClient(token string) (DatasetClient, error) {
	host, err := url.Parse(strings.TrimSuffix(f.Host, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse datasets API host")
	}
	if host.Scheme == "" || host.Host == "" {
		return nil, errors.Errorf("datasets API host %q must be an absolute URL", f.Host)
	}

	ctx := context.Background()
	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	return &apiClient{
		host: host,
		http: oauth2.NewClient(ctx, src),
	}, nil
}

type apiClient struct {
	host *url.URL
	http *http.Client
}

func (c *apiClient) GetDataset(ctx context.Context, datasetID string) (Dataset, error) {
	var env datasetEnvelope
	endpoint := "/api/datasetrw/v1/datasets/" + url.PathEscape(datasetID)
	if err := c.getJSON(ctx, endpoint, nil, ErrDatasetNotFound, &env); err != nil {
		return nil, errors.Wrapf(err, "get dataset %q", datasetID)
	}
	if env.Dataset.ID == "" {
		env.Dataset.ID = datasetID
	}
	return &apiDataset{
		client:     c,
		info:       env.Dataset,
		snapshotID: env.Dataset.ReadWriteSnapshotID,
	}, nil
}

// getJSON decodes a successful response into out. A 404 is reported as notFound.
func (c *apiClient) getJSON(ctx context.Context, endpoint string, query url.Values, notFound error, out interface{}) error {
	u := *c.host
	u.Path = strings.TrimSuffix(u.Path, "/") + endpoint
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// readErrorMessage prefers a JSON "message" field and falls back to the raw body.
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

type apiDataset struct {
	client     *apiClient
	info       datasetInfo
	snapshotID string
}

func (d *apiDataset) ID() string         { return d.info.ID }
func (d *apiDataset) SnapshotID() string { return d.snapshotID }

func (d *apiDataset) Update(config DatasetConfig) error {
	if config.SnapshotID == "" {
		d.snapshotID = d.info.ReadWriteSnapshotID
		return nil
	}
	if len(d.info.SnapshotIDs) > 0 && !slices.Contains(d.info.SnapshotIDs, config.SnapshotID) {
		return errors.Wrapf(ErrSnapshotNotFound, "snapshot %q of dataset %q", config.SnapshotID, d.info.ID)
	}
	d.snapshotID = config.SnapshotID
	return nil
}

func (d *apiDataset) ListFiles(ctx context.Context, prefix string) ([]FileEntry, error) {
	if d.snapshotID == "" {
		return nil, errors.Errorf("dataset %q has no read/write snapshot", d.info.ID)
	}

	var files []FileEntry
	visited := make(map[string]bool)
	if err := d.walk(ctx, prefix, visited, &files); err != nil {
		return nil, errors.Wrapf(err, "list files of snapshot %q", d.snapshotID)
	}
	return files, nil
}

// walk lists dir and descends into subdirectories depth first, keeping server order.
func (d *apiDataset) walk(ctx context.Context, dir string, visited map[string]bool, files *[]FileEntry) error {
	if visited[dir] {
		return nil
	}
	visited[dir] = true

	var rows fileRows
	query := url.Values{}
	query.Set("path", dir)
	if err := d.client.getJSON(ctx, "/v4/datasetrw/files/"+url.PathEscape(d.snapshotID), query, ErrSnapshotNotFound, &rows); err != nil {
		return err
	}

	for _, row := range rows.Rows {
		if row.IsDirectory {
			if err := d.walk(ctx, row.Path, visited, files); err != nil {
				return err
			}
			continue
		}
		name := row.Path
		if name == "" {
			name = row.Name
		}
		*files = append(*files, FileEntry{
			Name:         row.Name,
			Path:         row.Path,
			Size:         row.SizeInBytes,
			LastModified: row.LastModified,
			ContentType:  contentTypeFor(name),
		})
	}
	return nil
}

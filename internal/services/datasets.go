package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/pkg/errors"
)

var (
	// ErrDatasetNotFound is returned when the identifier does not name a dataset.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrSnapshotNotFound is returned when a snapshot does not belong to the dataset.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrUnauthorized is returned when the token is rejected upstream.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidDisplayName is returned by FileEntry.DisplayName when the name or path is not valid UTF-8.
	ErrInvalidDisplayName = errors.New("file entry name is not valid UTF-8")
)

func init() {
	// Tabular and text formats commonly stored in datasets, which filetype has no matcher for.
	filetype.AddType("csv", "text/csv")
	filetype.AddType("tsv", "text/tab-separated-values")
	filetype.AddType("json", "application/json")
	filetype.AddType("txt", "text/plain")
	filetype.AddType("parquet", "application/vnd.apache.parquet")
}

// DatasetConfig reconfigures a dataset handle in place.
type DatasetConfig struct {
	// SnapshotID pins the handle to a snapshot. Empty means the read/write snapshot.
	SnapshotID string
}

// FileEntry is one item of a dataset listing, normalised by the backend.
type FileEntry struct {
	Name         string
	Path         string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// DisplayName returns the entry name, falling back to its path and then to
// its string form.
func (f FileEntry) DisplayName() (string, error) {
	name := f.Name
	if name == "" {
		name = f.Path
	}
	if name == "" {
		return f.GoString(), nil
	}
	if !utf8.ValidString(name) {
		return "", errors.Wrapf(ErrInvalidDisplayName, "%q", name)
	}
	return name, nil
}

// GoString is the raw representation shown when display names cannot be derived.
func (f FileEntry) GoString() string {
	return fmt.Sprintf("FileEntry{Name:%q, Path:%q, Size:%d, ContentType:%q}", f.Name, f.Path, f.Size, f.ContentType)
}

// Dataset is a resolved dataset handle.
type Dataset interface {
	ID() string
	SnapshotID() string
	Update(config DatasetConfig) error
	ListFiles(ctx context.Context, prefix string) ([]FileEntry, error)
}

// DatasetClient resolves datasets by identifier.
type DatasetClient interface {
	GetDataset(ctx context.Context, datasetID string) (Dataset, error)
}

// DatasetClientFactory creates clients authenticated with a bearer token.
// Tokens are not validated until the client is used.
type DatasetClientFactory interface {
	NewClient(token string) (DatasetClient, error)
}

// contentTypeFor guesses a MIME type from the file extension.
func contentTypeFor(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return ""
	}
	t := filetype.GetType(strings.ToLower(ext))
	if t == types.Unknown {
		return ""
	}
	return t.MIME.Value
}

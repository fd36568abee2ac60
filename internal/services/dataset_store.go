package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// ObjectLister is the subset of the minio client the object store backend uses
type ObjectLister interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// ObjectStoreFactory serves datasets out of an S3-compatible bucket.
//
// Layout inside the bucket:
//
//	<datasetID>/rw/...                    read/write snapshot
//	<datasetID>/snapshots/<snapshotID>/... pinned snapshots
//
// The bearer token is exchanged for temporary credentials through
// STS AssumeRoleWithWebIdentity.
type ObjectStoreFactory struct {
	Endpoint    string
	Bucket      string
	STSEndpoint string
}

// shouldUseSSL determines if SSL should be used based on the endpoint.
// Returns false for localhost, 127.0.0.1, and docker service names.
func shouldUseSSL(endpoint string) bool {
	if endpoint == "localhost:9000" || endpoint == "127.0.0.1:9000" {
		return false
	}
	// Docker service names (minio:9000, minio1:9000, ...), not domain names like minio.example.com
	if strings.HasPrefix(endpoint, "minio") && !strings.Contains(strings.Split(endpoint, ":")[0], ".") && strings.Contains(endpoint, ":9000") {
		return false
	}
	return true
}

func (f *ObjectStoreFactory) stsEndpoint() string {
	if f.STSEndpoint != "" {
		return f.STSEndpoint
	}
	if shouldUseSSL(f.Endpoint) {
		return "https://" + f.Endpoint
	}
	return "http://" + f.Endpoint
}

func (f *ObjectStoreFactory) NewClient(token string) (DatasetClient, error) {
	creds, err := credentials.NewSTSWebIdentity(f.stsEndpoint(), func() (*credentials.WebIdentityToken, error) {
		return &credentials.WebIdentityToken{Token: token}, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create web identity credentials")
	}

	client, err := minio.New(f.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: shouldUseSSL(f.Endpoint),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create object store client")
	}
	return NewObjectStoreClient(client, f.Bucket), nil
}

// NewObjectStoreClient returns a DatasetClient listing datasets from bucket.
func NewObjectStoreClient(lister ObjectLister, bucket string) DatasetClient {
	return &objectStoreClient{lister: lister, bucket: bucket}
}

type objectStoreClient struct {
	lister ObjectLister
	bucket string
}

func (c *objectStoreClient) GetDataset(ctx context.Context, datasetID string) (Dataset, error) {
	if !validSegment(datasetID) {
		return nil, errors.Wrapf(ErrDatasetNotFound, "invalid dataset id %q", datasetID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := false
	for obj := range c.lister.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    datasetID + "/",
		Recursive: true,
		MaxKeys:   1,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(mapStoreError(obj.Err), "get dataset %q", datasetID)
		}
		found = true
		break
	}
	if !found {
		return nil, errors.Wrapf(ErrDatasetNotFound, "get dataset %q", datasetID)
	}

	return &objectStoreDataset{client: c, id: datasetID}, nil
}

type objectStoreDataset struct {
	client     *objectStoreClient
	id         string
	snapshotID string
}

func (d *objectStoreDataset) ID() string         { return d.id }
func (d *objectStoreDataset) SnapshotID() string { return d.snapshotID }

func (d *objectStoreDataset) Update(config DatasetConfig) error {
	if config.SnapshotID != "" && !validSegment(config.SnapshotID) {
		return errors.Wrapf(ErrSnapshotNotFound, "invalid snapshot id %q", config.SnapshotID)
	}
	d.snapshotID = config.SnapshotID
	return nil
}

// root is the key prefix of the snapshot the handle points at.
func (d *objectStoreDataset) root() string {
	if d.snapshotID == "" {
		return d.id + "/rw/"
	}
	return d.id + "/snapshots/" + d.snapshotID + "/"
}

func (d *objectStoreDataset) ListFiles(ctx context.Context, prefix string) ([]FileEntry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	root := d.root()
	var files []FileEntry
	for obj := range d.client.lister.ListObjects(ctx, d.client.bucket, minio.ListObjectsOptions{
		Prefix:    root + prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(mapStoreError(obj.Err), "list files under %q", root+prefix)
		}
		// Folder markers
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		contentType := obj.ContentType
		if contentType == "" {
			contentType = contentTypeFor(obj.Key)
		}
		files = append(files, FileEntry{
			Name:         strings.TrimPrefix(obj.Key, root),
			Path:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  contentType,
		})
	}
	return files, nil
}

// mapStoreError translates S3 error codes into the package sentinels.
func mapStoreError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return withMessage(ErrDatasetNotFound, resp.Message)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return withMessage(ErrUnauthorized, resp.Message)
	}
	return err
}

func withMessage(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return errors.WithMessage(sentinel, msg)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.Contains(s, "/")
}

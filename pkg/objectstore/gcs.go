package objectstore

import (
	"context"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// GCSUploader streams files into a Cloud Storage bucket
type GCSUploader struct {
	loc    Location
	client *storage.Client
	bucket *storage.BucketHandle
	logger *zap.Logger
}

// NewGCSUploader creates a storage client with application default
// credentials unless opts.CredentialsFile is set
func NewGCSUploader(ctx context.Context, loc Location, opts Options) (*GCSUploader, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSUploader{
		loc:    loc,
		client: client,
		bucket: client.Bucket(loc.Bucket),
		logger: logger.With(zap.String("component", "gcs_uploader"), zap.String("bucket", loc.Bucket)),
	}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, localPath, name string, meta map[string]string) (string, error) {
	start := time.Now()
	f, err := os.Open(localPath) //nolint:gosec // path is produced by the sink
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open output for upload").WithDetail("path", localPath)
	}
	defer f.Close()

	key := u.loc.Key(name)
	w := u.bucket.Object(key).NewWriter(ctx)
	w.ContentType = ContentType(name)
	w.Metadata = meta

	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to write to GCS").WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to close GCS writer").WithDetail("key", key)
	}

	u.logger.Info("output uploaded",
		zap.String("object", key),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))
	return u.loc.URL(name), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}

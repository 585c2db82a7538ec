// Package objectstore uploads sealed output files to S3 or Google Cloud
// Storage. Credentials come from each SDK's default chain.
package objectstore

import (
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// Uploader copies a local file to an object store
type Uploader interface {
	// Upload stores the file at localPath under name and returns its URL
	Upload(ctx context.Context, localPath, name string, meta map[string]string) (string, error)
	Close() error
}

// Options tune the clients. Zero values use the SDK defaults.
type Options struct {
	// Region is the S3 region
	Region string
	// Endpoint overrides the service endpoint, for S3-compatible stores
	Endpoint string
	// CredentialsFile is a GCS service account key file
	CredentialsFile string
	PartSize        int64
	Concurrency     int
	Logger          *zap.Logger
}

// Location is a parsed s3:// or gs:// URL
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseLocation splits an object store URL into bucket and key prefix
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid upload URL").WithDetail("url", raw)
	}
	switch u.Scheme {
	case "s3", "gs":
	default:
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported upload scheme %q", u.Scheme).WithDetail("url", raw)
	}
	if u.Host == "" {
		return Location{}, errors.New(errors.ErrorTypeConfig, "upload URL has no bucket").WithDetail("url", raw)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key joins the prefix and name into an object key
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// URL renders the object URL of name
func (l Location) URL(name string) string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key(name)
}

// Open creates the uploader for an s3:// or gs:// URL
func Open(ctx context.Context, raw string, opts Options) (Uploader, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if loc.Scheme == "s3" {
		return NewS3Uploader(ctx, loc, opts)
	}
	return NewGCSUploader(ctx, loc, opts)
}

// ContentType guesses the content type from the object name
func ContentType(name string) string {
	switch {
	case strings.Contains(name, ".jsonl"):
		return "application/x-ndjson"
	case strings.HasSuffix(name, ".arrow"):
		return "application/vnd.apache.arrow.file"
	case strings.HasSuffix(name, ".avro"):
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}

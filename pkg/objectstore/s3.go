package objectstore

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

const (
	defaultUploadPartSize = 5 * 1024 * 1024
	defaultConcurrency    = 4
)

// S3Uploader uploads with the S3 transfer manager
type S3Uploader struct {
	loc      Location
	client   *s3.Client
	uploader *manager.Uploader
	logger   *zap.Logger
}

// NewS3Uploader loads the default AWS configuration for opts.Region
func NewS3Uploader(ctx context.Context, loc Location, opts Options) (*S3Uploader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	return NewS3UploaderFromConfig(cfg, loc, opts), nil
}

// NewS3UploaderFromConfig builds the client from an explicit AWS config
func NewS3UploaderFromConfig(cfg aws.Config, loc Location, opts Options) *S3Uploader {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		// S3-compatible stores often reject trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	partSize, concurrency := opts.PartSize, opts.Concurrency
	if partSize <= 0 {
		partSize = defaultUploadPartSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Uploader{
		loc:    loc,
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = concurrency
		}),
		logger: logger.With(zap.String("component", "s3_uploader"), zap.String("bucket", loc.Bucket)),
	}
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, name string, meta map[string]string) (string, error) {
	start := time.Now()
	f, err := os.Open(localPath) //nolint:gosec // path is produced by the sink
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to open output for upload").WithDetail("path", localPath)
	}
	defer f.Close()

	key := u.loc.Key(name)
	result, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.loc.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(name)),
		Metadata:    meta,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").WithDetail("key", key)
	}

	u.logger.Info("output uploaded",
		zap.String("key", key),
		zap.String("location", result.Location),
		zap.Duration("duration", time.Since(start)))
	return u.loc.URL(name), nil
}

func (u *S3Uploader) Close() error { return nil }

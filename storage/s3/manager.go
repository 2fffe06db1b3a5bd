// Package s3 implements the storage.Manager interface against a
// bucket-scoped object store using the AWS SDK. It is also used for
// S3-compatible servers such as MinIO via a custom endpoint.
package s3

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ckptstore/ckptstore/config"
	"github.com/ckptstore/ckptstore/internal/randguard"
	"github.com/ckptstore/ckptstore/storage"
)

const backendType = "s3"

// deleteBatchLimit is the maximum number of keys S3 accepts in one
// DeleteObjects request.
const deleteBatchLimit = 1000

// objectAPI is the slice of the S3 client the adapter calls directly.
type objectAPI interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	DeleteObjectsWithContext(ctx aws.Context, input *s3.DeleteObjectsInput, opts ...request.Option) (*s3.DeleteObjectsOutput, error)
}

// uploadAPI matches the s3manager uploader.
type uploadAPI interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// downloadAPI matches the s3manager downloader.
type downloadAPI interface {
	DownloadWithContext(ctx aws.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*s3manager.Downloader)) (int64, error)
}

// Manager implements the storage.Manager interface for S3 object storage
type Manager struct {
	client     objectAPI
	uploader   uploadAPI
	downloader downloadAPI
	bucket     string
	staging    storage.Staging
	guard      *randguard.Guard
	limiter    *rate.Limiter

	// minioWorkaround skips empty directory markers: some MinIO builds
	// return listings for zero-byte "directory" keys that SDK clients
	// mis-parse.
	minioWorkaround bool

	logger *zap.Logger
}

// NewManager creates a new S3 storage manager
func NewManager(cfg config.StorageConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3.Region),
	}

	if cfg.S3.AccessKey != "" || cfg.S3.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)
	}

	// Set custom endpoint if provided (for MinIO compatibility)
	if cfg.S3.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true) // Required for MinIO
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)

	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), 1)
	}

	return &Manager{
		client:          client,
		uploader:        s3manager.NewUploaderWithClient(client),
		downloader:      s3manager.NewDownloaderWithClient(client),
		bucket:          cfg.S3.Bucket,
		staging:         storage.NewStaging(cfg.BasePath, logger),
		guard:           randguard.Default(),
		limiter:         limiter,
		minioWorkaround: detectMinio(cfg.S3.Endpoint, logger),
		logger:          logger,
	}, nil
}

// detectMinio probes a custom endpoint once and inspects the Server response
// header. Any probe failure leaves the workaround disabled.
func detectMinio(endpoint string, logger *zap.Logger) bool {
	if endpoint == "" {
		return false
	}

	resp, err := http.Get(endpoint)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if !strings.EqualFold(resp.Header.Get("Server"), "minio") {
		return false
	}

	logger.Info("MinIO backend detected; empty directory markers will not be uploaded",
		zap.String("endpoint", endpoint))
	return true
}

// Close closes any resources used by the S3 manager
func (m *Manager) Close() error {
	// No resources to close for S3
	return nil
}

// key computes the object key for one resource of a checkpoint
func (m *Manager) key(storageID, rel string) string {
	return storageID + "/" + rel
}

// wait applies the configured request rate limit, if any
func (m *Manager) wait(ctx aws.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

package s3

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/ckptstore/ckptstore/internal/pathutil"
	"github.com/ckptstore/ckptstore/metrics"
	"github.com/ckptstore/ckptstore/storage"
)

// StorePath uploads every resource in md from storageDir and then removes
// the staging subdirectory for the checkpoint, whether or not the upload
// succeeded. Partially uploaded remote state is not rolled back.
func (m *Manager) StorePath(ctx context.Context, storageID string, storageDir string, md storage.Metadata) error {
	m.logger.Info("Uploading checkpoint to S3",
		zap.String("storage_id", storageID),
		zap.String("bucket", m.bucket))

	err := m.upload(ctx, md, storageDir)
	metrics.StagingCleanupsTotal.WithLabelValues(backendType).Inc()
	return m.staging.Cleanup(md.StorageID, err)
}

// RestorePath downloads the checkpoint into a fresh staging subdirectory,
// hands its path to fn, and removes it when fn returns.
func (m *Manager) RestorePath(ctx context.Context, md storage.Metadata, fn func(path string) error) error {
	m.logger.Info("Downloading checkpoint from S3",
		zap.String("storage_id", md.StorageID),
		zap.String("bucket", m.bucket))

	return storage.RestoreScope(m.staging, md, func(dir string) error {
		return m.Download(ctx, md, dir)
	}, fn)
}

func (m *Manager) upload(ctx context.Context, md storage.Metadata, storageDir string) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "upload", time.Since(start).Seconds(), err)
	}()

	return m.guard.Preserve(func() error {
		for _, rel := range md.SortedResources() {
			key := m.key(md.StorageID, rel)

			m.logger.Debug("Uploading resource",
				zap.String("key", key),
				zap.String("bucket", m.bucket))

			if storage.IsDirMarker(rel) {
				// Create empty keys for each empty subdirectory to mimic
				// what the S3 console does to represent directories.
				if m.minioWorkaround {
					continue
				}
				if err := m.wait(ctx); err != nil {
					return err
				}
				_, err := m.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
					Bucket: aws.String(m.bucket),
					Key:    aws.String(key),
					Body:   bytes.NewReader(nil),
				})
				if err != nil {
					return fmt.Errorf("failed to upload directory marker %s: %w", key, err)
				}
				continue
			}

			absPath, err := pathutil.SafeJoin(storageDir, rel)
			if err != nil {
				return fmt.Errorf("invalid resource path %s: %w", rel, err)
			}

			f, err := os.Open(absPath)
			if err != nil {
				return fmt.Errorf("failed to open resource %s: %w", rel, err)
			}

			if err := m.wait(ctx); err != nil {
				f.Close()
				return err
			}

			_, err = m.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
				Bucket: aws.String(m.bucket),
				Key:    aws.String(key),
				Body:   f,
			})
			f.Close()
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", key, err)
			}

			metrics.BytesTransferredTotal.WithLabelValues(backendType, "upload").
				Add(float64(md.Resources[rel]))
		}
		return nil
	})
}

// Download fetches every resource in md into storageDir. If storageDir is
// empty the staging subdirectory for md.StorageID is used. Directory markers
// become empty local directories; no cleanup responsibility is taken.
func (m *Manager) Download(ctx context.Context, md storage.Metadata, storageDir string) (err error) {
	if storageDir == "" {
		storageDir = m.staging.Path(md.StorageID)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "download", time.Since(start).Seconds(), err)
	}()

	return m.guard.Preserve(func() error {
		for _, rel := range md.SortedResources() {
			absPath, err := pathutil.SafeJoin(storageDir, rel)
			if err != nil {
				return fmt.Errorf("invalid resource path %s: %w", rel, err)
			}

			// Directory markers are never fetched; recreate them as empty
			// local directories. See upload for why they may be absent
			// remotely.
			if storage.IsDirMarker(rel) {
				if err := os.MkdirAll(absPath, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", rel, err)
				}
				continue
			}

			if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory for %s: %w", rel, err)
			}

			key := m.key(md.StorageID, rel)
			m.logger.Debug("Downloading resource",
				zap.String("key", key),
				zap.String("bucket", m.bucket))

			if err := m.wait(ctx); err != nil {
				return err
			}

			f, err := os.Create(absPath)
			if err != nil {
				return fmt.Errorf("failed to create local file %s: %w", rel, err)
			}

			n, err := m.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
				Bucket: aws.String(m.bucket),
				Key:    aws.String(key),
			})
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", key, err)
			}

			metrics.BytesTransferredTotal.WithLabelValues(backendType, "download").
				Add(float64(n))
		}
		return nil
	})
}

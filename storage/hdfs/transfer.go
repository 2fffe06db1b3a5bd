package hdfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ckptstore/ckptstore/metrics"
	"github.com/ckptstore/ckptstore/storage"
)

// StorePath uploads the checkpoint directory tree to HDFS and then removes
// the staging subdirectory, whether or not the upload succeeded.
func (m *Manager) StorePath(ctx context.Context, storageID string, storageDir string, md storage.Metadata) error {
	m.logger.Info("Uploading checkpoint to HDFS",
		zap.String("storage_id", storageID),
		zap.String("remote_path", m.remotePath(storageID)))

	err := m.upload(ctx, md, storageDir)
	metrics.StagingCleanupsTotal.WithLabelValues(backendType).Inc()
	return m.staging.Cleanup(md.StorageID, err)
}

// RestorePath downloads the checkpoint into a fresh staging subdirectory,
// hands its path to fn, and removes it when fn returns.
func (m *Manager) RestorePath(ctx context.Context, md storage.Metadata, fn func(path string) error) error {
	m.logger.Info("Downloading checkpoint from HDFS",
		zap.String("storage_id", md.StorageID),
		zap.String("remote_path", m.remotePath(md.StorageID)))

	return storage.RestoreScope(m.staging, md, func(dir string) error {
		return m.Download(ctx, md, dir)
	}, fn)
}

// upload mirrors the local checkpoint directory onto HDFS. The backend
// preserves directory structure, so empty directories survive without
// marker objects.
func (m *Manager) upload(ctx context.Context, md storage.Metadata, storageDir string) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "upload", time.Since(start).Seconds(), err)
	}()

	remoteRoot := m.remotePath(md.StorageID)

	return m.guard.Preserve(func() error {
		if err := m.client.MkdirAll(remoteRoot, 0755); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", remoteRoot, err)
		}

		return filepath.WalkDir(storageDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == storageDir {
				return nil
			}

			rel, err := filepath.Rel(storageDir, p)
			if err != nil {
				return err
			}
			remote := path.Join(remoteRoot, filepath.ToSlash(rel))

			if d.IsDir() {
				if err := m.client.MkdirAll(remote, 0755); err != nil {
					return fmt.Errorf("failed to create remote directory %s: %w", remote, err)
				}
				return nil
			}

			m.logger.Debug("Uploading resource", zap.String("remote", remote))

			if err := m.wait(ctx); err != nil {
				return err
			}
			if err := m.client.CopyToRemote(p, remote); err != nil {
				return fmt.Errorf("failed to upload %s: %w", remote, err)
			}

			if info, ierr := d.Info(); ierr == nil {
				metrics.BytesTransferredTotal.WithLabelValues(backendType, "upload").
					Add(float64(info.Size()))
			}
			return nil
		})
	})
}

// Download mirrors the remote checkpoint tree into storageDir, overwriting
// existing local files. If storageDir is empty the staging subdirectory for
// md.StorageID is used.
func (m *Manager) Download(ctx context.Context, md storage.Metadata, storageDir string) (err error) {
	if storageDir == "" {
		storageDir = m.staging.Path(md.StorageID)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "download", time.Since(start).Seconds(), err)
	}()

	remoteRoot := m.remotePath(md.StorageID)

	return m.guard.Preserve(func() error {
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create local directory %s: %w", storageDir, err)
		}

		return m.client.Walk(remoteRoot, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			rel := strings.TrimPrefix(strings.TrimPrefix(p, remoteRoot), "/")
			if rel == "" {
				return nil
			}
			local := filepath.Join(storageDir, filepath.FromSlash(rel))

			if info.IsDir() {
				return os.MkdirAll(local, 0755)
			}

			if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory for %s: %w", rel, err)
			}

			m.logger.Debug("Downloading resource", zap.String("remote", p))

			if err := m.wait(ctx); err != nil {
				return err
			}

			// Replace any existing local file so restores overwrite stale
			// content.
			if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to replace local file %s: %w", rel, err)
			}
			if err := m.client.CopyToLocal(p, local); err != nil {
				return fmt.Errorf("failed to download %s: %w", p, err)
			}

			metrics.BytesTransferredTotal.WithLabelValues(backendType, "download").
				Add(float64(info.Size()))
			return nil
		})
	})
}

// Delete recursively removes the checkpoint from HDFS. A checkpoint that is
// already gone is not an error.
func (m *Manager) Delete(ctx context.Context, md storage.Metadata) (err error) {
	m.logger.Info("Deleting checkpoint from HDFS",
		zap.String("storage_id", md.StorageID),
		zap.String("remote_path", m.remotePath(md.StorageID)))

	start := time.Now()
	defer func() {
		metrics.ObserveOp(backendType, "delete", time.Since(start).Seconds(), err)
	}()

	return m.guard.Preserve(func() error {
		if err := m.wait(ctx); err != nil {
			return err
		}
		if err := m.client.RemoveAll(m.remotePath(md.StorageID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete checkpoint %s: %w", md.StorageID, err)
		}
		return nil
	})
}

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Staging manages the local staging area shared by all checkpoints of one
// adapter. Each checkpoint occupies <base>/<storageID>, exclusively owned by
// the in-flight call operating on it.
type Staging struct {
	basePath string
	logger   *zap.Logger
}

// NewStaging creates a staging area rooted at basePath. An empty basePath
// falls back to the system temporary directory.
func NewStaging(basePath string, logger *zap.Logger) Staging {
	if basePath == "" {
		basePath = os.TempDir()
	}
	return Staging{basePath: basePath, logger: logger}
}

// BasePath returns the staging base directory.
func (s Staging) BasePath() string {
	return s.basePath
}

// Path returns the staging subdirectory for a storage ID.
func (s Staging) Path(storageID string) string {
	return filepath.Join(s.basePath, storageID)
}

// Create makes the staging subdirectory for a storage ID, returning its
// absolute path.
func (s Staging) Create(storageID string) (string, error) {
	dir := s.Path(storageID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory %s: %w", dir, err)
	}
	return dir, nil
}

// Remove recursively deletes the staging subdirectory for a storage ID.
// Removing a subdirectory that does not exist is not an error.
func (s Staging) Remove(storageID string) error {
	dir := s.Path(storageID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove staging directory %s: %w", dir, err)
	}
	s.logger.Debug("Removed staging directory", zap.String("dir", dir))
	return nil
}

// Cleanup removes the staging subdirectory after a transfer attempt. The
// transfer error, if any, takes priority over a removal error so the caller
// sees the root cause.
func (s Staging) Cleanup(storageID string, transferErr error) error {
	rerr := s.Remove(storageID)
	if transferErr != nil {
		if rerr != nil {
			s.logger.Error("Staging cleanup failed after transfer error",
				zap.String("storage_id", storageID),
				zap.Error(rerr))
		}
		return transferErr
	}
	return rerr
}

// RestoreScope creates the staging subdirectory for md, fills it via
// download, hands its absolute path to fn, and removes it on all exit paths,
// including an error from fn.
func RestoreScope(st Staging, md Metadata, download func(dir string) error, fn func(path string) error) (err error) {
	dir, err := st.Create(md.StorageID)
	if err != nil {
		return err
	}
	defer func() {
		err = st.Cleanup(md.StorageID, err)
	}()

	if err := download(dir); err != nil {
		return err
	}
	return fn(dir)
}

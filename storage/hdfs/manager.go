// Package hdfs implements the storage.Manager interface against a remote
// HDFS cluster. The backend preserves directory trees natively, so transfers
// walk the checkpoint directory recursively instead of iterating the
// resource map per key.
package hdfs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	gohdfs "github.com/colinmarc/hdfs/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ckptstore/ckptstore/config"
	"github.com/ckptstore/ckptstore/internal/randguard"
	"github.com/ckptstore/ckptstore/storage"
)

const backendType = "hdfs"

// fsClient is the slice of the HDFS client the adapter uses.
type fsClient interface {
	MkdirAll(dirname string, perm os.FileMode) error
	CopyToRemote(src string, dst string) error
	CopyToLocal(src string, dst string) error
	Walk(root string, walkFn filepath.WalkFunc) error
	RemoveAll(name string) error
	Close() error
}

// Manager implements the storage.Manager interface for HDFS
type Manager struct {
	client   fsClient
	rootPath string
	staging  storage.Staging
	guard    *randguard.Guard
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewManager creates a new HDFS storage manager
func NewManager(cfg config.StorageConfig, logger *zap.Logger) (*Manager, error) {
	if len(cfg.HDFS.Addresses) == 0 {
		return nil, fmt.Errorf("HDFS namenode addresses are required")
	}
	if cfg.HDFS.Path == "" {
		return nil, fmt.Errorf("HDFS root path is required")
	}

	client, err := gohdfs.NewClient(gohdfs.ClientOptions{
		Addresses: cfg.HDFS.Addresses,
		User:      cfg.HDFS.User,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to HDFS: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), 1)
	}

	return &Manager{
		client:   client,
		rootPath: cfg.HDFS.Path,
		staging:  storage.NewStaging(cfg.BasePath, logger),
		guard:    randguard.Default(),
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Close closes the HDFS client connection
func (m *Manager) Close() error {
	return m.client.Close()
}

// remotePath returns the backend path for a checkpoint
func (m *Manager) remotePath(storageID string) string {
	return path.Join(m.rootPath, storageID)
}

// wait applies the configured request rate limit, if any
func (m *Manager) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

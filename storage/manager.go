// Package storage defines the checkpoint storage manager contract and the
// local staging lifecycle shared by all backend adapters. It includes
// implementations for S3 object storage, HDFS, and others under storage/...
package storage

import (
	"context"
)

// Manager defines the interface for checkpoint storage operations.
// This interface abstracts artifact transfer across different remote backends.
// Callers hold a Manager, never a concrete adapter.
type Manager interface {
	// StorePath uploads every resource in md from storageDir to the backend
	// and then removes the local staging subdirectory for md.StorageID,
	// whether or not the upload succeeded. Partially uploaded remote state
	// is not rolled back.
	StorePath(ctx context.Context, storageID string, storageDir string, md Metadata) error

	// RestorePath downloads every resource in md into a freshly created
	// staging subdirectory, invokes fn with its absolute path, and removes
	// the subdirectory on all exit paths, including an error from fn.
	RestorePath(ctx context.Context, md Metadata, fn func(path string) error) error

	// Download transfers backend content into storageDir without taking any
	// cleanup responsibility. If storageDir is empty the staging
	// subdirectory for md.StorageID is used. Used by RestorePath and
	// directly by callers needing a persistent local copy.
	Download(ctx context.Context, md Metadata, storageDir string) error

	// Delete removes every resource for md.StorageID from the backend.
	// Deleting an already-deleted resource is not an error.
	Delete(ctx context.Context, md Metadata) error

	// Close closes any resources used by the storage backend.
	Close() error
}

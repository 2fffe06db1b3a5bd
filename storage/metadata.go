package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metadata describes the resources that constitute one checkpoint: an opaque
// storage ID plus a map from backend-root-relative path to size in bytes.
// A path ending in "/" denotes an empty directory marker rather than a file.
//
// A Metadata handed to a Manager call must not be mutated while the call is
// in flight. A new checkpoint version gets a new storage ID and a new
// Metadata; entries are never updated in place.
type Metadata struct {
	StorageID string           `json:"storage_id"`
	Resources map[string]int64 `json:"resources"`
}

// NewMetadata builds a Metadata from a caller-assembled resource map.
func NewMetadata(storageID string, resources map[string]int64) Metadata {
	return Metadata{
		StorageID: storageID,
		Resources: resources,
	}
}

// NewMetadataFromDirectory walks a populated staging directory and records
// every regular file with its size. Directories that contain no entries are
// recorded as empty directory markers with a trailing separator.
func NewMetadataFromDirectory(storageID string, dir string) (Metadata, error) {
	resources := make(map[string]int64)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				resources[rel+"/"] = 0
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		resources[rel] = info.Size()
		return nil
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	return Metadata{StorageID: storageID, Resources: resources}, nil
}

// SortedResources returns the resource paths in lexical order, giving
// transfers a stable iteration order.
func (m Metadata) SortedResources() []string {
	paths := make([]string, 0, len(m.Resources))
	for rel := range m.Resources {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// IsDirMarker reports whether a resource path denotes an empty directory
// marker rather than a data file.
func IsDirMarker(rel string) bool {
	return strings.HasSuffix(rel, "/")
}

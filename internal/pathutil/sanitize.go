// Package pathutil provides safe handling of resource-map relative paths.
// Resource maps arrive from an external catalog; a crafted entry must not be
// able to address anything outside the staging subdirectory it belongs to.
package pathutil

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsafePath reports a relative path that would escape its root.
var ErrUnsafePath = errors.New("path escapes root directory")

// CleanRel sanitizes a backend-root-relative path. It rejects empty and
// absolute paths and any traversal sequence that would climb above the root.
// A trailing separator (directory marker) is preserved.
func CleanRel(rel string) (string, error) {
	if rel == "" {
		return "", ErrUnsafePath
	}
	if strings.ContainsRune(rel, '\x00') {
		return "", ErrUnsafePath
	}

	marker := strings.HasSuffix(rel, "/")

	slashed := filepath.ToSlash(rel)
	if strings.HasPrefix(slashed, "/") {
		return "", ErrUnsafePath
	}

	// Walk the components to catch ".." sequences that climb above root,
	// independent of how Clean collapses them.
	depth := 0
	for _, part := range strings.Split(slashed, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", ErrUnsafePath
			}
		default:
			depth++
		}
	}

	cleaned := filepath.ToSlash(filepath.Clean(slashed))
	if cleaned == "." {
		return "", ErrUnsafePath
	}
	if marker {
		cleaned += "/"
	}
	return cleaned, nil
}

// SafeJoin joins a root directory with a relative path, ensuring the result
// stays inside root. The returned path uses native separators and drops any
// trailing marker separator.
func SafeJoin(root, rel string) (string, error) {
	cleanRel, err := CleanRel(rel)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(filepath.Clean(root), filepath.FromSlash(strings.TrimSuffix(cleanRel, "/")))

	relPath, err := filepath.Rel(filepath.Clean(root), joined)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}

	return joined, nil
}

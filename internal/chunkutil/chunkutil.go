// Package chunkutil splits large collections of backend operations into
// backend-imposed batch-size limits.
package chunkutil

import "iter"

// Chunks yields order-preserving sub-slices of items, each at most size
// elements long, with the final chunk possibly shorter. The sub-slices alias
// the input; nothing is copied. Panics if size is not positive.
func Chunks[T any](items []T, size int) iter.Seq[[]T] {
	if size <= 0 {
		panic("chunkutil: chunk size must be positive")
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}

// ABOUTME: LRU cache of file sets for completed versions.
// ABOUTME: Completed versions never change, so cached entries need no invalidation.
package store

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FileCache serves VersionFiles for completed versions from memory.
type FileCache struct {
	store *Store
	cache *lru.Cache[string, []File]
}

// NewFileCache wraps s with an LRU of size entries.
func NewFileCache(s *Store, size int) (*FileCache, error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[string, []File](size)
	if err != nil {
		return nil, err
	}
	return &FileCache{store: s, cache: c}, nil
}

// Files returns a copy of the version's files. Only complete versions are
// cached; anything else is read through every time.
func (c *FileCache) Files(ctx context.Context, v Version) ([]File, error) {
	if files, ok := c.cache.Get(v.ID); ok {
		return slices.Clone(files), nil
	}
	files, err := c.store.VersionFiles(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if v.Status == VersionComplete {
		c.cache.Add(v.ID, files)
	}
	return slices.Clone(files), nil
}

// Forget drops a version from the cache.
func (c *FileCache) Forget(versionID string) {
	c.cache.Remove(versionID)
}

// Len reports the number of cached versions.
func (c *FileCache) Len() int {
	return c.cache.Len()
}

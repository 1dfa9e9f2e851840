package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/stencil-dev/stencil/pkg/types"
	"github.com/stencil-dev/stencil/pkg/utils"
)

// Cache holds fetched templates keyed by normalized source identity. It is
// the only resource shared between concurrent pipeline runs, so all access
// goes through a lock. Entries live as directories under the cache root for
// the lifetime of the process index.
type Cache struct {
	mu      sync.RWMutex
	root    string
	entries map[string]cacheEntry
}

type cacheEntry struct {
	path     string
	metadata types.TemplateMetadata
	storedAt time.Time
}

// DefaultCacheDir returns the per-user template cache location.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "stencil", "templates")
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{
		root:    dir,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached template for key if it is younger than ttl and its
// backing directory still exists.
func (c *Cache) Get(key string, ttl time.Duration) (*types.TemplateInfo, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Since(entry.storedAt) > ttl {
		return nil, false
	}
	if info, err := os.Stat(entry.path); err != nil || !info.IsDir() {
		return nil, false
	}

	return &types.TemplateInfo{Path: entry.path, Metadata: entry.metadata}, true
}

// Put copies a staged template into the cache under key, replacing any
// previous entry.
func (c *Cache) Put(key, stagedPath string, meta types.TemplateMetadata) error {
	sum := sha256.Sum256([]byte(key))
	dir := filepath.Join(c.root, hex.EncodeToString(sum[:])[:16])

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := utils.CopyTree(stagedPath, dir); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{path: dir, metadata: meta, storedAt: time.Now()}
	c.mu.Unlock()

	return nil
}

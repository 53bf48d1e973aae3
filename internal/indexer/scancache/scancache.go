// Package scancache remembers the fingerprint of every document seen by the
// last index run of a root, so unchanged documents can be skipped without
// reading them.
package scancache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/keinsell/zkk/internal/fingerprint"
	"github.com/keinsell/zkk/internal/util"
)

const version = 1

type Entry struct {
	ModTime  int64  `json:"mtime"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

type file struct {
	Version int              `json:"version"`
	Root    string           `json:"root"`
	Entries map[string]Entry `json:"entries"`
}

// Cache is safe for concurrent use. A nil *Cache is a valid, always-missing
// cache.
type Cache struct {
	path string
	root string

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// Load opens the cache for root stored under dir. A missing, unreadable or
// foreign cache file yields an empty cache.
func Load(dir, root string) *Cache {
	c := &Cache{
		path:    filepath.Join(dir, "scan-"+util.Digest(root)[:16]+".json"),
		root:    root,
		entries: map[string]Entry{},
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return c
	}
	if f.Version != version || f.Root != root || f.Entries == nil {
		return c
	}
	c.entries = f.Entries
	return c
}

// Lookup returns the cached fingerprint for path when its mtime and size still
// match.
func (c *Cache) Lookup(path string, mtime, size int64) (fingerprint.Fingerprint, bool) {
	if c == nil {
		return fingerprint.Fingerprint{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.ModTime != mtime || e.Size != size || e.Checksum == "" {
		return fingerprint.Fingerprint{}, false
	}
	return fingerprint.Fingerprint{Checksum: e.Checksum, ModTime: e.ModTime}, true
}

func (c *Cache) Put(path string, fp fingerprint.Fingerprint, size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = Entry{ModTime: fp.ModTime, Size: size, Checksum: fp.Checksum}
	c.dirty = true
}

func (c *Cache) Remove(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		delete(c.entries, path)
		c.dirty = true
	}
}

// Save writes the cache if it changed since Load.
func (c *Cache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := json.Marshal(file{Version: version, Root: c.root, Entries: c.entries})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	c.dirty = false
	return nil
}

// Package geocache persists geocoded coordinates keyed by normalized address
// so reruns skip the network.
package geocache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aea-online/shopmap/internal/export"
	"github.com/aea-online/shopmap/internal/model"
)

// Cache is an in-memory address -> coordinates map. It is not safe for
// concurrent use.
type Cache struct {
	entries map[string]model.Coordinates
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]model.Coordinates)}
}

// FullAddress builds the one-line query "address, city, state zip", trimmed.
func FullAddress(address, city, state, zip string) string {
	return strings.TrimSpace(address + ", " + city + ", " + state + " " + zip)
}

// Key returns the cache key for a full address.
func Key(fullAddress string) string {
	return strings.ToLower(strings.TrimSpace(fullAddress))
}

// Load reads the cache file at path. A missing file yields an empty cache and
// no error. An unreadable or corrupt file yields an empty cache and an error
// the caller is expected to log and continue past.
func Load(path string) (*Cache, error) {
	c := New()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, eris.Wrapf(err, "geocache: read %s", path)
	}

	entries := make(map[string]model.Coordinates)
	if err := json.Unmarshal(data, &entries); err != nil {
		return c, eris.Wrapf(err, "geocache: parse %s", path)
	}
	c.entries = entries
	return c, nil
}

// Get returns the coordinates stored under key.
func (c *Cache) Get(key string) (model.Coordinates, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Put stores coordinates under key, replacing any previous value.
func (c *Cache) Put(key string, v model.Coordinates) {
	c.entries[key] = v
}

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.entries) }

// Save writes the whole cache to path as indented JSON with sorted keys. The
// file is replaced atomically.
func (c *Cache) Save(path string) error {
	// encoding/json sorts map keys.
	data, err := export.MarshalJSON(c.entries)
	if err != nil {
		return eris.Wrap(err, "geocache: marshal")
	}
	return export.WriteFileAtomic(path, data)
}

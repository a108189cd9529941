package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/pgzip"

	"attune/internal/fileutil"
	"attune/internal/media"
)

// Export writes the current mapping as gzip-compressed JSON, one
// self-describing record per item. Missing fields default to zero on
// import, so the format tolerates future field additions.
func (c *Cache) Export(path string) error {
	items := c.Snapshot()
	return fileutil.ReplaceFileAtomic(path, func(dst *os.File) error {
		zw := pgzip.NewWriter(dst)
		enc := json.NewEncoder(zw)
		for _, it := range items {
			if err := enc.Encode(it); err != nil {
				return fmt.Errorf("encode item %s: %w", it.Path, err)
			}
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("flush gzip stream: %w", err)
		}
		return nil
	})
}

// Import replaces the mapping with records from an export file and
// persists the result.
func (c *Cache) Import(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("read gzip stream: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	var items []media.Item
	for dec.More() {
		var it media.Item
		if err := dec.Decode(&it); err != nil {
			return 0, fmt.Errorf("decode item record: %w", err)
		}
		if it.Path == "" {
			continue
		}
		items = append(items, it)
	}

	c.mu.Lock()
	c.items = make(map[string]media.Item, len(items))
	for _, it := range items {
		c.items[it.Path] = it
	}
	c.mu.Unlock()

	if err := c.Save(ctx); err != nil {
		return 0, err
	}
	return len(items), nil
}

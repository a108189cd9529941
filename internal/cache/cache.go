package cache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"attune/internal/logging"
	"attune/internal/media"
)

// Cache is the in-memory path→item mapping. Mutations are serialized
// through the owning library actor; the mutex only guards read access
// from other goroutines (snapshots, lookups).
type Cache struct {
	mu     sync.RWMutex
	items  map[string]media.Item
	store  *Store
	logger *slog.Logger
}

// New creates an empty cache backed by store.
func New(store *Store, logger *slog.Logger) *Cache {
	return &Cache{
		items:  make(map[string]media.Item),
		store:  store,
		logger: logging.NewComponentLogger(logger, "cache"),
	}
}

// Load replaces the in-memory mapping with the persisted one. A corrupt
// store yields an empty mapping, never an error.
func (c *Cache) Load(ctx context.Context) {
	items := c.store.LoadItems(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]media.Item, len(items))
	for _, it := range items {
		c.items[it.Path] = it
	}
	c.logger.Info("cache loaded", logging.Int("items", len(items)))
}

// Save persists the current mapping.
func (c *Cache) Save(ctx context.Context) error {
	return c.store.SaveItems(ctx, c.Snapshot())
}

// Get returns the cached item for path.
func (c *Cache) Get(path string) (media.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[path]
	return it, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ApplyBatch inserts or replaces each record by path. Overwriting a
// non-empty track id with an empty one is logged as probable metadata
// loss but still proceeds; avoiding it is the caller's decision.
func (c *Cache) ApplyBatch(items []media.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		if prior, ok := c.items[it.Path]; ok {
			if prior.MBTrackID != "" && it.MBTrackID == "" {
				c.logger.Warn("track id lost in update",
					logging.String(logging.FieldPath, it.Path),
					logging.String("prior_track_id", prior.MBTrackID))
			}
		}
		c.items[it.Path] = it
	}
}

// Reconcile removes entries whose containing root is no longer watched
// and soft-deletes entries whose file has disappeared: they are marked
// missing but retained, so history survives a remounted volume.
func (c *Cache) Reconcile(watchedRoots []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, marked := 0, 0
	for path, it := range c.items {
		watched := false
		for _, root := range watchedRoots {
			if underRoot(root, path) {
				watched = true
				break
			}
		}
		if !watched {
			delete(c.items, path)
			removed++
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if !it.Missing {
				it.Missing = true
				c.items[path] = it
				marked++
			}
		} else if it.Missing {
			it.Missing = false
			c.items[path] = it
		}
	}
	if removed > 0 || marked > 0 {
		c.logger.Info("cache reconciled",
			logging.Int("removed", removed), logging.Int("marked_missing", marked))
	}
}

// MarkRootUnreachable marks every entry under root as missing without
// removing anything.
func (c *Cache) MarkRootUnreachable(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for path, it := range c.items {
		if underRoot(root, path) && !it.Missing {
			it.Missing = true
			c.items[path] = it
			count++
		}
	}
	if count > 0 {
		c.logger.Info("root unreachable",
			logging.String(logging.FieldRoot, root), logging.Int("marked_missing", count))
	}
}

// Snapshot returns all entries ordered by path.
func (c *Cache) Snapshot() []media.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]media.Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func underRoot(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

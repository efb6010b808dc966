package inmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/AnishMulay/hdfswindow/internal/log_service"
	"github.com/AnishMulay/hdfswindow/internal/status_cache"
)

type InMemoryStatusCache struct {
	mu       sync.RWMutex
	listings map[string]file_status.DirectoryListing
	lister   status_cache.Lister
	ls       log_service.LogService
	now      func() time.Time

	// gens and epoch change on every invalidation. A fetch only stores its
	// result when neither moved while it ran.
	gens  map[string]uint64
	epoch uint64
}

type cacheGen struct {
	epoch, key uint64
}

func NewInMemoryStatusCache(lister status_cache.Lister, ls log_service.LogService) *InMemoryStatusCache {
	return &InMemoryStatusCache{
		listings: make(map[string]file_status.DirectoryListing),
		gens:     make(map[string]uint64),
		lister:   lister,
		ls:       ls,
		now:      time.Now,
	}
}

// Get returns the cached listing for path, fetching and storing it on a miss.
// Concurrent misses may both fetch; the last store wins. A fetch that was
// overtaken by an invalidation of path is returned but not stored.
func (c *InMemoryStatusCache) Get(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	key := file_status.NormalizePath(path)

	c.mu.RLock()
	listing, ok := c.listings[key]
	gen := c.generation(key)
	c.mu.RUnlock()
	if ok {
		return listing.Clone(), nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Status cache miss",
		Metadata: map[string]any{"path": key},
	})
	entries, err := c.lister.ListStatus(ctx, key)
	if err != nil {
		c.ls.Warn(log_service.LogEvent{
			Message:  "Directory fetch failed",
			Metadata: map[string]any{"path": key, "error": err.Error()},
		})
		return file_status.DirectoryListing{}, err
	}

	listing = file_status.NewDirectoryListing(key, entries, c.now())
	c.mu.Lock()
	current := c.generation(key) == gen
	if current {
		c.listings[key] = listing
	}
	c.mu.Unlock()

	if !current {
		c.ls.Debug(log_service.LogEvent{
			Message:  "Discarding listing invalidated during fetch",
			Metadata: map[string]any{"path": key},
		})
	}
	return listing.Clone(), nil
}

// generation must be called with mu held.
func (c *InMemoryStatusCache) generation(key string) cacheGen {
	return cacheGen{epoch: c.epoch, key: c.gens[key]}
}

func (c *InMemoryStatusCache) Peek(path string) (file_status.DirectoryListing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	listing, ok := c.listings[file_status.NormalizePath(path)]
	if !ok {
		return file_status.DirectoryListing{}, false
	}
	return listing.Clone(), true
}

func (c *InMemoryStatusCache) Invalidate(path string) {
	key := file_status.NormalizePath(path)
	c.mu.Lock()
	delete(c.listings, key)
	c.gens[key]++
	c.mu.Unlock()

	c.ls.Debug(log_service.LogEvent{
		Message:  "Status cache entry invalidated",
		Metadata: map[string]any{"path": key},
	})
}

func (c *InMemoryStatusCache) InvalidateTree(path string) {
	key := file_status.NormalizePath(path)
	prefix := strings.TrimSuffix(key, "/") + "/"

	c.mu.Lock()
	// fetches in flight below path have no entry to find, so move the epoch
	c.epoch++
	dropped := 0
	for p := range c.listings {
		if p == key || strings.HasPrefix(p, prefix) {
			delete(c.listings, p)
			dropped++
		}
	}
	c.mu.Unlock()

	c.ls.Debug(log_service.LogEvent{
		Message:  "Status cache subtree invalidated",
		Metadata: map[string]any{"path": key, "dropped": dropped},
	})
}

func (c *InMemoryStatusCache) Clear() {
	c.mu.Lock()
	n := len(c.listings)
	c.listings = make(map[string]file_status.DirectoryListing)
	c.gens = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()

	c.ls.Info(log_service.LogEvent{
		Message:  "Status cache cleared",
		Metadata: map[string]any{"dropped": n},
	})
}

func (c *InMemoryStatusCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}

var _ status_cache.StatusCache = (*InMemoryStatusCache)(nil)

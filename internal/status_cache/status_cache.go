package status_cache

import (
	"context"
	"errors"
	"sync"

	"github.com/AnishMulay/hdfswindow/internal/file_status"
)

var ErrSuperseded = errors.New("navigation superseded by a newer request")

// Lister is the part of the protocol client the cache fills itself from.
type Lister interface {
	ListStatus(ctx context.Context, path string) ([]file_status.FileStatus, error)
}

// StatusCache holds directory listings keyed by normalized remote path.
// Entries live until invalidated; failed fetches are never stored.
type StatusCache interface {
	Get(ctx context.Context, path string) (file_status.DirectoryListing, error)
	Peek(path string) (file_status.DirectoryListing, bool)
	Invalidate(path string)
	// InvalidateTree drops path and every cached listing below it.
	InvalidateTree(path string)
	Clear()
}

// Navigator serializes "show me this directory" requests. Starting a new
// navigation cancels the previous one, whose result is then discarded.
type Navigator struct {
	cache StatusCache

	mu      sync.Mutex
	seq     uint64
	current string
	cancel  context.CancelFunc
}

func NewNavigator(cache StatusCache) *Navigator {
	return &Navigator{cache: cache}
}

func (n *Navigator) Navigate(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	path = file_status.NormalizePath(path)

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.seq++
	mine := n.seq
	navCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()
	defer cancel()

	listing, err := n.cache.Get(navCtx, path)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seq != mine {
		return file_status.DirectoryListing{}, ErrSuperseded
	}
	n.cancel = nil
	if err != nil {
		return file_status.DirectoryListing{}, err
	}
	n.current = path
	return listing, nil
}

// Current is the path of the last navigation that completed successfully.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == "" {
		return "/"
	}
	return n.current
}

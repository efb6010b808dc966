package status_cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/file_status"
)

// gatedCache blocks Get for paths registered in gates until the gate closes
// or the context is cancelled.
type gatedCache struct {
	gates   map[string]chan struct{}
	started chan string
}

func (g *gatedCache) Get(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	if g.started != nil {
		g.started <- path
	}
	if gate, ok := g.gates[path]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return file_status.DirectoryListing{}, ctx.Err()
		}
	}
	return file_status.NewDirectoryListing(path, []file_status.FileStatus{{Name: "entry"}}, time.Now()), nil
}

func (g *gatedCache) Peek(string) (file_status.DirectoryListing, bool) {
	return file_status.DirectoryListing{}, false
}
func (g *gatedCache) Invalidate(string)     {}
func (g *gatedCache) InvalidateTree(string) {}
func (g *gatedCache) Clear()                {}

func TestNavigator_NewerNavigationSupersedes(t *testing.T) {
	cache := &gatedCache{
		gates:   map[string]chan struct{}{"/slow": make(chan struct{})},
		started: make(chan string, 2),
	}
	nav := NewNavigator(cache)

	slowDone := make(chan error, 1)
	go func() {
		_, err := nav.Navigate(context.Background(), "/slow")
		slowDone <- err
	}()
	<-cache.started

	listing, err := nav.Navigate(context.Background(), "/fast")
	if err != nil {
		t.Fatalf("Navigate(/fast) error = %v", err)
	}
	if listing.Path != "/fast" {
		t.Errorf("Navigate(/fast) path = %q", listing.Path)
	}

	select {
	case err := <-slowDone:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("superseded navigation error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded navigation was not cancelled")
	}

	if got := nav.Current(); got != "/fast" {
		t.Errorf("Current() = %q, want /fast", got)
	}
}

func TestNavigator_ResultAfterSupersedeIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	cache := &gatedCache{
		gates:   map[string]chan struct{}{"/first": gate},
		started: make(chan string, 2),
	}
	nav := NewNavigator(cache)

	firstDone := make(chan error, 1)
	go func() {
		_, err := nav.Navigate(context.Background(), "/first")
		firstDone <- err
	}()
	<-cache.started

	if _, err := nav.Navigate(context.Background(), "/second"); err != nil {
		t.Fatalf("Navigate(/second) error = %v", err)
	}
	close(gate)

	if err := <-firstDone; !errors.Is(err, ErrSuperseded) {
		t.Errorf("first navigation error = %v, want ErrSuperseded", err)
	}
	if got := nav.Current(); got != "/second" {
		t.Errorf("Current() = %q, want /second", got)
	}
}

func TestNavigator_DefaultsToRoot(t *testing.T) {
	nav := NewNavigator(&gatedCache{})
	if got := nav.Current(); got != "/" {
		t.Errorf("Current() = %q, want /", got)
	}
	if _, err := nav.Navigate(context.Background(), ""); err != nil {
		t.Fatalf("Navigate(\"\") error = %v", err)
	}
	if got := nav.Current(); got != "/" {
		t.Errorf("Current() = %q, want /", got)
	}
}

// Package workspace keeps the per-sign-in state of the console: one product
// list view and one edit controller for each signed-in administrator.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/product"
	"github.com/xenking/catalog-admin/internal/editor"
	"github.com/xenking/catalog-admin/internal/listing"
)

// Workspace is the state owned by one signed-in administrator.
type Workspace struct {
	List   *listing.View
	Editor *editor.Controller

	// expires is guarded by Registry.mu.
	expires time.Time
}

// Registry maps workspace keys to workspaces and drops them once their
// credential has expired.
type Registry struct {
	catalog product.Repository
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewRegistry returns an empty registry whose workspaces use catalog.
func NewRegistry(catalog product.Repository) *Registry {
	return &Registry{
		catalog: catalog,
		now:     time.Now,
		items:   make(map[string]*Workspace),
	}
}

// Get returns the workspace for key, creating it on first use. expires is
// the expiry of the credential that owns it.
func (r *Registry) Get(key string, expires time.Time) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.items[key]
	if !ok {
		ws = &Workspace{
			List:   listing.New(r.catalog),
			Editor: editor.New(r.catalog),
		}
		r.items[key] = ws
	}
	if expires.After(ws.expires) {
		ws.expires = expires
	}
	return ws
}

// Drop discards the workspace for key, if any.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// evict removes workspaces whose credential expired before now.
func (r *Registry) evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, ws := range r.items {
		if !now.Before(ws.expires) {
			delete(r.items, key)
			n++
		}
	}
	return n
}

// StartEviction launches a background goroutine that evicts expired
// workspaces every interval. It stops when ctx is cancelled.
func (r *Registry) StartEviction(ctx context.Context, interval time.Duration) {
	lg := zctx.From(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.evict(r.now()); n > 0 {
					lg.Debug("Evicted expired workspaces", zap.Int("count", n))
				}
			}
		}
	}()
}

// Package listing is the read-only product table with a detail pane for one
// inspected record.
package listing

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

// Lister fetches the product collection.
type Lister interface {
	List(ctx context.Context, cred auth.Credential) ([]product.Product, error)
}

// Snapshot is what the list page renders.
type Snapshot struct {
	Products  []product.Product
	Inspected *product.Product
}

// View holds the products fetched on the last mount and the inspected one.
type View struct {
	catalog Lister

	mu        sync.Mutex
	products  []product.Product
	inspected *product.Product
}

// New returns an empty view.
func New(catalog Lister) *View {
	return &View{catalog: catalog, products: []product.Product{}}
}

// Mount fetches the collection once for a page load. On failure the error is
// logged and returned, and the previously fetched products stay in place.
func (v *View) Mount(ctx context.Context, cred auth.Credential) error {
	products, err := v.catalog.List(ctx, cred)
	if err != nil {
		zctx.From(ctx).Warn("Fetch products failed", zap.Error(err))
		return errors.Wrap(err, "mount product list")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.products = products
	if v.inspected != nil {
		// Keep the detail pane in step with the fresh data.
		if p, ok := product.Find(products, v.inspected.ID); ok {
			v.inspected = &p
		}
	}
	return nil
}

// Inspect selects the record shown in the detail pane. An unknown id leaves
// the selection unchanged.
func (v *View) Inspect(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := product.Find(v.products, id)
	if !ok {
		return false
	}
	v.inspected = &p
	return true
}

// Snapshot returns a copy of the view state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{Products: make([]product.Product, len(v.products))}
	for i, p := range v.products {
		s.Products[i] = p.Clone()
	}
	if v.inspected != nil {
		p := v.inspected.Clone()
		s.Inspected = &p
	}
	return s
}

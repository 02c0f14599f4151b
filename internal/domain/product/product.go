package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/auth"
)

// MaxImages is the maximum number of secondary image URLs a product holds.
const MaxImages = 5

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog record as stored by the remote catalog service.
type Product struct {
	// ID is empty for a record that has not been created yet.
	ID          string
	Title       string
	Category    string
	OriginPrice decimal.Decimal
	Price       decimal.Decimal
	Unit        string
	Description string
	Content     string
	Enabled     bool
	// ImageURL is the primary image, possibly empty.
	ImageURL string
	// ImagesURL holds up to MaxImages secondary image URLs.
	ImagesURL []string
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	p.ImagesURL = slices.Clone(p.ImagesURL)
	return p
}

// Find returns the product with the given id from products.
func Find(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return Product{}, false
}

// Repository defines the catalog operations available to an authenticated
// administrator. Every call presents the caller's credential.
type Repository interface {
	List(ctx context.Context, cred auth.Credential) ([]Product, error)
	Create(ctx context.Context, cred auth.Credential, p Product) error
	Update(ctx context.Context, cred auth.Credential, p Product) error
	Delete(ctx context.Context, cred auth.Credential, id string) error
}

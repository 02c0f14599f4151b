// Package editor holds the product edit dialog of one administrator: the
// product collection it was opened over, the draft being edited and the
// create, update and delete calls issued on submit.
package editor

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

var (
	// ErrSubmitInFlight is returned when Submit is called while an earlier
	// submit is still waiting for the catalog service.
	ErrSubmitInFlight = errors.New("submit already in flight")
	// ErrDialogClosed is returned by draft operations while no dialog is open.
	ErrDialogClosed = errors.New("dialog is closed")
	// ErrSourceRequired is returned when edit or delete is opened without a record.
	ErrSourceRequired = errors.New("source record required")
)

// View is an immutable snapshot of a Controller for rendering.
type View struct {
	Products []product.Product
	Draft    product.Draft
	Mode     Mode
	Open     bool
	// Submitting is set while a write is in flight.
	Submitting bool
	// Alert is a message the administrator must see, set by a failed delete.
	Alert string
	// FormError describes a draft value that could not be submitted.
	FormError   string
	CanAddImage bool
}

// Controller is the edit dialog state machine. Its methods are safe for
// concurrent use; the lock is never held across calls to the catalog.
type Controller struct {
	catalog product.Repository

	mu         sync.Mutex
	products   []product.Product
	draft      product.Draft
	mode       Mode
	open       bool
	submitting bool
	alert      string
	formErr    string
	// session numbers the edit sessions; Open and reset start a new one.
	session uint64
}

// New returns a closed controller with an empty product list.
func New(catalog product.Repository) *Controller {
	return &Controller{
		catalog:  catalog,
		products: []product.Product{},
		draft:    product.NewDraft(nil),
	}
}

// Refresh replaces the product list with the catalog's current contents. On
// failure the previous list is kept and the error is returned.
func (c *Controller) Refresh(ctx context.Context, cred auth.Credential) error {
	products, err := c.catalog.List(ctx, cred)
	if err != nil {
		zctx.From(ctx).Warn("Refresh products failed, keeping previous list", zap.Error(err))
		return errors.Wrap(err, "refresh products")
	}

	c.mu.Lock()
	c.products = products
	c.mu.Unlock()
	return nil
}

// Open opens the dialog in mode. Edit and delete copy source into a fresh
// draft; create starts from the empty template and ignores source. An open
// dialog is overwritten.
func (c *Controller) Open(mode Mode, source *product.Product) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if mode.NeedsSource() && source == nil {
		return errors.Wrapf(ErrSourceRequired, "open %s", mode)
	}
	draft := product.NewDraft(nil)
	if mode.NeedsSource() {
		draft = product.NewDraft(source)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = draft
	c.mode = mode
	c.open = true
	c.alert = ""
	c.formErr = ""
	c.session++
	return nil
}

// OpenByID is Open with the source looked up in the current product list.
func (c *Controller) OpenByID(mode Mode, id string) error {
	if !mode.NeedsSource() {
		return c.Open(mode, nil)
	}
	c.mu.Lock()
	src, ok := product.Find(c.products, id)
	c.mu.Unlock()
	if !ok {
		return errors.Wrapf(product.ErrNotFound, "open %s %q", mode, id)
	}
	return c.Open(mode, &src)
}

// Close hides the dialog. The draft and mode are kept. Closing a closed
// dialog does nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Cancel closes the dialog and discards the draft.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// UpdateField assigns one scalar field of the draft. Values are not
// validated until Submit.
func (c *Controller) UpdateField(u product.FieldUpdate) error {
	return c.edit(func(d *product.Draft) error { return d.Apply(u) })
}

// UpdateImageAt writes one secondary image slot, growing or shrinking the
// slot list so it stays one empty slot ahead of the last filled one.
func (c *Controller) UpdateImageAt(index int, value string) error {
	return c.edit(func(d *product.Draft) error { return d.SetImage(index, value) })
}

// AddImageSlot appends an empty secondary image slot.
func (c *Controller) AddImageSlot() error {
	return c.edit(func(d *product.Draft) error { return d.AddImageSlot() })
}

// RemoveImageSlot drops the last secondary image slot, if any.
func (c *Controller) RemoveImageSlot() error {
	return c.edit(func(d *product.Draft) error {
		d.RemoveImageSlot()
		return nil
	})
}

func (c *Controller) edit(fn func(d *product.Draft) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrDialogClosed
	}
	return fn(&c.draft)
}

// Submit issues the write for the current mode: create, update by draft id,
// or delete by draft id. On success the dialog is closed, the draft reset
// and the list refreshed. On failure the dialog stays open with the draft
// intact, and a failed delete sets the alert. Nothing is retried.
func (c *Controller) Submit(ctx context.Context, cred auth.Credential) error {
	lg := zctx.From(ctx)

	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrDialogClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	mode, draft, session := c.mode, c.draft.Clone(), c.session

	var payload product.Product
	if mode != ModeDelete {
		p, err := draft.Payload()
		if err != nil {
			c.formErr = err.Error()
			c.mu.Unlock()
			lg.Info("Draft rejected", zap.Stringer("mode", mode), zap.Error(err))
			return errors.Wrap(err, "build payload")
		}
		payload = p
	}
	c.submitting = true
	c.alert = ""
	c.formErr = ""
	c.mu.Unlock()

	err := c.write(ctx, cred, mode, draft.ID, payload)

	c.mu.Lock()
	c.submitting = false
	// The administrator may have cancelled and opened another dialog while
	// the write was in flight; that dialog is left alone.
	current := c.session == session
	if err != nil {
		if mode == ModeDelete {
			c.alert = "Delete product failed: " + err.Error()
		}
		c.mu.Unlock()
		lg.Error("Submit failed",
			zap.Stringer("mode", mode),
			zap.String("product_id", draft.ID),
			zap.Error(err),
		)
		return errors.Wrapf(err, "%s product", mode)
	}
	if current {
		c.reset()
	}
	c.mu.Unlock()

	lg.Info("Submit succeeded", zap.Stringer("mode", mode), zap.String("product_id", draft.ID))

	// The write went through; a failed refresh only leaves the list stale.
	_ = c.Refresh(ctx, cred)
	return nil
}

func (c *Controller) write(ctx context.Context, cred auth.Credential, mode Mode, id string, p product.Product) error {
	switch mode {
	case ModeCreate:
		return c.catalog.Create(ctx, cred, p)
	case ModeEdit:
		p.ID = id
		return c.catalog.Update(ctx, cred, p)
	case ModeDelete:
		return c.catalog.Delete(ctx, cred, id)
	default:
		return errors.Wrapf(ErrInvalidMode, "submit in mode %s", mode)
	}
}

// reset must be called with c.mu held.
func (c *Controller) reset() {
	c.open = false
	c.mode = ModeClosed
	c.draft = product.NewDraft(nil)
	c.formErr = ""
	c.session++
}

// DismissAlert clears the alert.
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alert = ""
}

// View returns a snapshot of the controller state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		Products:    c.cloneProducts(),
		Draft:       c.draft.Clone(),
		Mode:        c.mode,
		Open:        c.open,
		Submitting:  c.submitting,
		Alert:       c.alert,
		FormError:   c.formErr,
		CanAddImage: c.open && c.draft.CanAddImage(),
	}
}

// Products returns a copy of the current product list.
func (c *Controller) Products() []product.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cloneProducts()
}

func (c *Controller) cloneProducts() []product.Product {
	products := make([]product.Product, len(c.products))
	for i, p := range c.products {
		products[i] = p.Clone()
	}
	return products
}

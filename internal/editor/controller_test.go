package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

// --- Mock implementations ---

type mockCatalog struct {
	mu       sync.Mutex
	products []product.Product
	listErr  error
	writeErr error

	lists   int
	created []product.Product
	updated []product.Product
	deleted []string

	// block, when set, holds every write until it is closed. entered is
	// signalled once per write that reached the catalog.
	block   chan struct{}
	entered chan struct{}
}

func (m *mockCatalog) List(_ context.Context, _ auth.Credential) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]product.Product, len(m.products))
	for i, p := range m.products {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *mockCatalog) wait() {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
}

func (m *mockCatalog) Create(_ context.Context, _ auth.Credential, p product.Product) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, p)
	if m.writeErr != nil {
		return m.writeErr
	}
	p.ID = "new"
	m.products = append(m.products, p)
	return nil
}

func (m *mockCatalog) Update(_ context.Context, _ auth.Credential, p product.Product) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, p)
	return m.writeErr
}

func (m *mockCatalog) Delete(_ context.Context, _ auth.Credential, id string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	if m.writeErr != nil {
		return m.writeErr
	}
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			break
		}
	}
	return nil
}

// --- Helpers ---

var cred = auth.Credential{Token: "tok", Expires: time.Now().Add(time.Hour)}

func rose() product.Product {
	return product.Product{
		ID:          "7",
		Title:       "Rose",
		Category:    "flower",
		OriginPrice: decimal.NewFromInt(120),
		Price:       decimal.NewFromInt(99),
		Enabled:     true,
		ImagesURL:   []string{"a.jpg"},
	}
}

func newLoaded(t *testing.T, m *mockCatalog) *Controller {
	t.Helper()
	c := New(m)
	require.NoError(t, c.Refresh(context.Background(), cred))
	m.mu.Lock()
	m.lists = 0
	m.mu.Unlock()
	return c
}

// --- Tests ---

func TestOpenEditThenCancel_LeavesProducts(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)
	before := c.Products()

	src := rose()
	require.NoError(t, c.Open(ModeEdit, &src))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldTitle, Value: "Changed"}))
	require.NoError(t, c.UpdateImageAt(0, "z.jpg"))

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, ModeEdit, view.Mode)
	assert.Equal(t, "Changed", view.Draft.Title)

	c.Cancel()

	assert.Equal(t, before, c.Products())
	assert.Equal(t, "a.jpg", src.ImagesURL[0], "source record is not aliased")

	view = c.View()
	assert.False(t, view.Open)
	assert.Equal(t, ModeClosed, view.Mode)
	assert.Equal(t, product.NewDraft(nil), view.Draft)
}

func TestSubmitCreate(t *testing.T) {
	m := &mockCatalog{}
	c := newLoaded(t, m)

	require.NoError(t, c.Open(ModeCreate, nil))
	for _, u := range []product.FieldUpdate{
		{Field: product.FieldTitle, Value: "Tulip"},
		{Field: product.FieldOriginPrice, Value: "100"},
		{Field: product.FieldPrice, Value: "80"},
		{Field: product.FieldEnabled, Checked: true},
	} {
		require.NoError(t, c.UpdateField(u))
	}
	require.NoError(t, c.UpdateImageAt(0, "x"))
	assert.Equal(t, []string{"x", ""}, c.View().Draft.Images)

	require.NoError(t, c.Submit(context.Background(), cred))

	require.Len(t, m.created, 1)
	assert.Equal(t, 1, m.lists)
	assert.Empty(t, m.updated)
	assert.Empty(t, m.deleted)

	got := m.created[0]
	assert.Equal(t, "Tulip", got.Title)
	assert.True(t, got.OriginPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.Price.Equal(decimal.NewFromInt(80)))
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{"x"}, got.ImagesURL)

	view := c.View()
	assert.False(t, view.Open)
	assert.Equal(t, ModeClosed, view.Mode)
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Tulip", view.Products[0].Title)
}

func TestSubmitEdit(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeEdit, "7"))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldPrice, Value: " 95.50 "}))
	require.NoError(t, c.Submit(context.Background(), cred))

	require.Len(t, m.updated, 1)
	assert.Equal(t, "7", m.updated[0].ID)
	assert.Equal(t, "Rose", m.updated[0].Title)
	assert.True(t, m.updated[0].Price.Equal(decimal.RequireFromString("95.5")))
	assert.Equal(t, []string{"a.jpg"}, m.updated[0].ImagesURL)
	assert.Equal(t, 1, m.lists)
	assert.False(t, c.View().Open)
}

func TestSubmitDelete(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeDelete, "7"))
	// Delete needs no payload, so a broken price does not matter.
	c.mu.Lock()
	c.draft.Price = "not a number"
	c.mu.Unlock()

	require.NoError(t, c.Submit(context.Background(), cred))

	assert.Equal(t, []string{"7"}, m.deleted)
	assert.Equal(t, 1, m.lists)
	assert.Empty(t, m.created)
	assert.Empty(t, m.updated)

	view := c.View()
	assert.False(t, view.Open)
	assert.Empty(t, view.Products)
}

func TestSubmitDelete_Failure(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}, writeErr: errors.New("backend down")}
	c := newLoaded(t, m)
	before := c.Products()

	require.NoError(t, c.OpenByID(ModeDelete, "7"))
	err := c.Submit(context.Background(), cred)
	require.Error(t, err)

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, ModeDelete, view.Mode)
	assert.Equal(t, "7", view.Draft.ID)
	assert.Contains(t, view.Alert, "backend down")
	assert.Equal(t, before, view.Products)
	assert.Zero(t, m.lists, "no refresh after a failed write")

	c.DismissAlert()
	assert.Empty(t, c.View().Alert)
}

func TestSubmitUpdate_FailureKeepsDraftWithoutAlert(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}, writeErr: errors.New("conflict")}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeEdit, "7"))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldTitle, Value: "Rosa"}))
	require.Error(t, c.Submit(context.Background(), cred))

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, "Rosa", view.Draft.Title)
	assert.Empty(t, view.Alert)
	assert.False(t, view.Submitting)

	// Retry succeeds once the backend recovers.
	m.mu.Lock()
	m.writeErr = nil
	m.mu.Unlock()
	require.NoError(t, c.Submit(context.Background(), cred))
	assert.Len(t, m.updated, 2)
	assert.False(t, c.View().Open)
}

func TestSubmit_InvalidPriceKeepsDialogOpen(t *testing.T) {
	m := &mockCatalog{}
	c := newLoaded(t, m)

	require.NoError(t, c.Open(ModeCreate, nil))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldOriginPrice, Value: "-3"}))

	err := c.Submit(context.Background(), cred)
	var fe *product.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, product.FieldOriginPrice, fe.Field)

	view := c.View()
	assert.True(t, view.Open)
	assert.NotEmpty(t, view.FormError)
	assert.Empty(t, m.created)
	assert.Zero(t, m.lists)
}

func TestSubmit_DoubleSubmitIssuesOneRequest(t *testing.T) {
	m := &mockCatalog{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := newLoaded(t, m)
	require.NoError(t, c.Open(ModeCreate, nil))

	first := make(chan error, 1)
	go func() { first <- c.Submit(context.Background(), cred) }()

	<-m.entered
	assert.True(t, c.View().Submitting)
	require.ErrorIs(t, c.Submit(context.Background(), cred), ErrSubmitInFlight)

	close(m.block)
	require.NoError(t, <-first)

	assert.Len(t, m.created, 1)
	assert.Equal(t, 1, m.lists)
}

func TestSubmit_LateSuccessLeavesNewDialog(t *testing.T) {
	m := &mockCatalog{
		products: []product.Product{rose()},
		block:    make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	c := newLoaded(t, m)
	require.NoError(t, c.OpenByID(ModeEdit, "7"))

	first := make(chan error, 1)
	go func() { first <- c.Submit(context.Background(), cred) }()
	<-m.entered

	c.Cancel()
	require.NoError(t, c.OpenByID(ModeDelete, "7"))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldTitle, Value: "typed"}))

	close(m.block)
	require.NoError(t, <-first)

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, ModeDelete, view.Mode)
	assert.Equal(t, "typed", view.Draft.Title)
	assert.False(t, view.Submitting)
	assert.Len(t, m.updated, 1)
	assert.Equal(t, 1, m.lists, "the list is still refreshed")
}

func TestSubmit_LateFailureLeavesNewDialog(t *testing.T) {
	m := &mockCatalog{
		products: []product.Product{rose()},
		writeErr: errors.New("boom"),
		block:    make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	c := newLoaded(t, m)
	require.NoError(t, c.OpenByID(ModeEdit, "7"))

	first := make(chan error, 1)
	go func() { first <- c.Submit(context.Background(), cred) }()
	<-m.entered

	c.Cancel()
	require.NoError(t, c.Open(ModeCreate, nil))
	require.NoError(t, c.UpdateField(product.FieldUpdate{Field: product.FieldTitle, Value: "Lily"}))

	close(m.block)
	require.Error(t, <-first)

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, ModeCreate, view.Mode)
	assert.Equal(t, "Lily", view.Draft.Title)
}

func TestSubmit_ClosedDialog(t *testing.T) {
	m := &mockCatalog{}
	c := newLoaded(t, m)

	require.ErrorIs(t, c.Submit(context.Background(), cred), ErrDialogClosed)
	assert.Empty(t, m.created)
}

func TestRefresh_FailureKeepsPreviousList(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	m.mu.Lock()
	m.listErr = errors.New("timeout")
	m.mu.Unlock()

	require.Error(t, c.Refresh(context.Background(), cred))
	require.Len(t, c.Products(), 1)
	assert.Equal(t, "Rose", c.Products()[0].Title)
}

func TestSubmit_RefreshFailureStillSucceeds(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeEdit, "7"))
	m.mu.Lock()
	m.listErr = errors.New("timeout")
	m.mu.Unlock()

	require.NoError(t, c.Submit(context.Background(), cred))
	assert.False(t, c.View().Open)
	assert.Len(t, c.Products(), 1)
}

func TestOpen_Validation(t *testing.T) {
	c := New(&mockCatalog{})

	require.ErrorIs(t, c.Open(ModeEdit, nil), ErrSourceRequired)
	require.ErrorIs(t, c.Open(ModeDelete, nil), ErrSourceRequired)
	require.ErrorIs(t, c.Open(Mode("archive"), nil), ErrInvalidMode)
	require.ErrorIs(t, c.Open(ModeClosed, nil), ErrInvalidMode)
	require.ErrorIs(t, c.OpenByID(ModeEdit, "missing"), product.ErrNotFound)
	assert.False(t, c.View().Open)
}

func TestOpen_OverwritesDraft(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeEdit, "7"))
	require.NoError(t, c.Open(ModeCreate, nil))

	view := c.View()
	assert.Equal(t, ModeCreate, view.Mode)
	assert.Empty(t, view.Draft.ID)
	assert.Empty(t, view.Draft.Title)
}

func TestClose_KeepsDraftAndIsIdempotent(t *testing.T) {
	m := &mockCatalog{products: []product.Product{rose()}}
	c := newLoaded(t, m)

	require.NoError(t, c.OpenByID(ModeEdit, "7"))
	c.Close()
	c.Close()

	view := c.View()
	assert.False(t, view.Open)
	assert.Equal(t, ModeEdit, view.Mode)
	assert.Equal(t, "Rose", view.Draft.Title)
	assert.False(t, view.CanAddImage)

	require.ErrorIs(t, c.UpdateField(product.FieldUpdate{Field: product.FieldTitle, Value: "x"}), ErrDialogClosed)
	require.ErrorIs(t, c.UpdateImageAt(0, "x"), ErrDialogClosed)
	require.ErrorIs(t, c.AddImageSlot(), ErrDialogClosed)
	require.ErrorIs(t, c.RemoveImageSlot(), ErrDialogClosed)
}

func TestImageSlots(t *testing.T) {
	c := New(&mockCatalog{})
	require.NoError(t, c.Open(ModeCreate, nil))

	assert.True(t, c.View().CanAddImage)
	require.NoError(t, c.AddImageSlot())
	assert.False(t, c.View().CanAddImage)
	require.ErrorIs(t, c.AddImageSlot(), product.ErrImageSlotUnavailable)

	for i, u := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.UpdateImageAt(i, u))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, c.View().Draft.Images)
	require.NoError(t, c.UpdateImageAt(4, "x"))
	assert.Len(t, c.View().Draft.Images, product.MaxImages)

	require.NoError(t, c.RemoveImageSlot())
	assert.Equal(t, []string{"a", "b", "c", "d"}, c.View().Draft.Images)

	require.ErrorIs(t, c.UpdateField(product.FieldUpdate{Field: "imagesUrl"}), product.ErrUnknownField)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"create", "edit", "delete"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}
	_, err := ParseMode("")
	require.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, "closed", ModeClosed.String())
}

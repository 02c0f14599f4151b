package console

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/product"
	"github.com/xenking/catalog-admin/internal/editor"
)

const manageURL = "/products/manage"

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	s := fromContext(r.Context())
	if err := s.ws.List.Mount(r.Context(), s.Credential); err != nil && h.handleAuth(w, r, err) {
		return
	}
	if id := r.URL.Query().Get("detail"); id != "" && !s.ws.List.Inspect(id) {
		zctx.From(r.Context()).Debug("Inspect unknown product", zap.String("product_id", id))
	}
	h.render(w, r, http.StatusOK, pageProducts, layout{
		Nav:  navigation("/products"),
		Page: s.ws.List.Snapshot(),
	})
}

type managePage struct {
	View    editor.View
	Heading string
	// Accent is the bootstrap colour of the dialog header.
	Accent string
}

func dialogChrome(m editor.Mode) (heading, accent string) {
	switch m {
	case editor.ModeDelete:
		return "Delete product", "danger"
	case editor.ModeEdit:
		return "Edit product", "warning"
	default:
		return "Create product", "primary"
	}
}

// managePage renders the maintenance page. A plain load refreshes the
// product list; the redirect after a dialog action carries keep=1 and shows
// the list as it is. The alert is shown once.
func (h *Handler) managePage(w http.ResponseWriter, r *http.Request) {
	s := fromContext(r.Context())
	ed := s.ws.Editor
	if r.URL.Query().Get("keep") == "" {
		if err := ed.Refresh(r.Context(), s.Credential); err != nil && h.handleAuth(w, r, err) {
			return
		}
	}

	view := ed.View()
	if view.Alert != "" {
		ed.DismissAlert()
	}
	heading, accent := dialogChrome(view.Mode)
	h.render(w, r, http.StatusOK, pageManage, layout{
		Nav:   navigation(manageURL),
		Alert: view.Alert,
		Page:  managePage{View: view, Heading: heading, Accent: accent},
	})
}

func backToManage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, manageURL+"?keep=1", http.StatusSeeOther)
}

func (h *Handler) openDialog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	mode, err := editor.ParseMode(r.PostForm.Get("mode"))
	if err == nil {
		err = fromContext(r.Context()).ws.Editor.OpenByID(mode, r.PostForm.Get("id"))
	}
	if err != nil {
		h.formFailed(w, r, err)
		return
	}
	backToManage(w, r)
}

// submitForm applies the dialog form to the draft, then performs the button
// action: save, add-image, remove-image or cancel. A post without an action
// saves.
func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	s := fromContext(r.Context())
	ed := s.ws.Editor

	action := r.PostForm.Get("action")
	if action == "cancel" {
		ed.Cancel()
		backToManage(w, r)
		return
	}
	if err := applyForm(ed, r); err != nil {
		h.formFailed(w, r, err)
		return
	}

	var err error
	switch action {
	case "save", "":
		if err = ed.Submit(r.Context(), s.Credential); err != nil && h.handleAuth(w, r, err) {
			return
		}
		// Other failures are on the page: the dialog stays open with the
		// draft, an alert or a form error.
		err = nil
	case "add-image":
		err = ed.AddImageSlot()
	case "remove-image":
		err = ed.RemoveImageSlot()
	default:
		err = errors.Errorf("unknown form action %q", action)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.formFailed(w, r, err)
		return
	}
	backToManage(w, r)
}

// applyForm copies posted values into the draft. Image slots are only
// touched when their value changed, so that an untouched trailing empty
// slot survives the round trip.
func applyForm(ed *editor.Controller, r *http.Request) error {
	if !r.PostForm.Has(string(product.FieldTitle)) {
		return nil
	}
	for _, f := range product.Fields {
		u := product.FieldUpdate{Field: f}
		if f == product.FieldEnabled {
			u.Checked = r.PostForm.Has(string(f))
		} else {
			if !r.PostForm.Has(string(f)) {
				continue
			}
			u.Value = r.PostForm.Get(string(f))
		}
		if err := ed.UpdateField(u); err != nil {
			return err
		}
	}

	n, err := strconv.Atoi(r.PostForm.Get("image_count"))
	if err != nil || n < 0 {
		return nil
	}
	for i := range min(n, product.MaxImages) {
		value := r.PostForm.Get("image_" + strconv.Itoa(i))
		current := ed.View().Draft.Images
		if i < len(current) && current[i] == value {
			continue
		}
		if i >= len(current) && value == "" {
			continue
		}
		if err := ed.UpdateImageAt(i, value); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) closeDialog(w http.ResponseWriter, r *http.Request) {
	fromContext(r.Context()).ws.Editor.Close()
	backToManage(w, r)
}

// submitDialog submits without form values, used by the delete
// confirmation.
func (h *Handler) submitDialog(w http.ResponseWriter, r *http.Request) {
	s := fromContext(r.Context())
	if err := s.ws.Editor.Submit(r.Context(), s.Credential); err != nil {
		if h.handleAuth(w, r, err) {
			return
		}
		if errors.Is(err, editor.ErrDialogClosed) {
			h.formFailed(w, r, err)
			return
		}
	}
	backToManage(w, r)
}

func (h *Handler) formFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	zctx.From(r.Context()).Info("Dialog action rejected", zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}

// errorStatus maps dialog and draft errors to HTTP statuses.
func errorStatus(err error) int {
	var fieldErr *product.FieldError
	switch {
	case errors.Is(err, product.ErrUnknownField),
		errors.Is(err, product.ErrImageIndex),
		errors.Is(err, editor.ErrInvalidMode),
		errors.Is(err, editor.ErrSourceRequired):
		return http.StatusBadRequest
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrDialogClosed),
		errors.Is(err, editor.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, product.ErrImageSlotUnavailable),
		errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

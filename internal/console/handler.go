// Package console serves the administrator web console: sign-in, the
// product list and the product maintenance page with its edit dialog.
package console

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/catalog"
	"github.com/xenking/catalog-admin/internal/domain/auth"
	"github.com/xenking/catalog-admin/internal/session"
	"github.com/xenking/catalog-admin/internal/workspace"
	"github.com/xenking/catalog-admin/pkg/httpmiddleware"
)

const (
	alertSignInFailed   = "Sign-in failed. Check that your username and password are correct."
	alertSessionExpired = "Sign-in failed or session expired. Please sign in again."
)

// Options holds the dependencies of the console router.
type Options struct {
	Auth       auth.Authenticator
	Sessions   *session.Store
	Workspaces *workspace.Registry
	// SignInThrottle guards POST /login. Nil disables throttling.
	SignInThrottle httpmiddleware.Middleware
	// Middlewares run inside the router, where the matched route pattern
	// is known.
	Middlewares []httpmiddleware.Middleware
	Now         func() time.Time
}

// Handler serves the console pages and the dialog JSON API.
type Handler struct {
	auth       auth.Authenticator
	sessions   *session.Store
	workspaces *workspace.Registry
	pages      pages
	validate   *validator.Validate
	now        func() time.Time
}

// NewRouter builds the console routes.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Auth == nil || opts.Sessions == nil || opts.Workspaces == nil {
		return nil, errors.New("console: auth, sessions and workspaces are required")
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		auth:       opts.Auth,
		sessions:   opts.Sessions,
		workspaces: opts.Workspaces,
		pages:      p,
		validate:   validator.New(),
		now:        opts.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}

	throttle := opts.SignInThrottle
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	for _, mw := range opts.Middlewares {
		r.Use(mw)
	}

	r.Get("/login", h.loginPage)
	r.With(throttle).Post("/login", h.signIn)
	r.Post("/logout", h.signOut)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/", h.home)
		r.Get("/products", h.listProducts)

		r.Route("/products/manage", func(r chi.Router) {
			r.Get("/", h.managePage)
			r.Post("/open", h.openDialog)
			r.Post("/form", h.submitForm)
			r.Post("/close", h.closeDialog)
			r.Post("/submit", h.submitDialog)
		})

		r.Route("/api/dialog", func(r chi.Router) {
			r.Get("/", h.getDialog)
			r.Post("/field", h.updateField)
			r.Post("/image", h.updateImage)
		})
	})

	return r, nil
}

// RoutePattern returns the chi route pattern matched for r, or the path when
// the request did not go through a chi router.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

type sessionKey struct{}

type signedIn struct {
	session.Session
	ws *workspace.Workspace
}

func fromContext(ctx context.Context) signedIn {
	s, _ := ctx.Value(sessionKey{}).(signedIn)
	return s
}

// requireSession loads the session cookie and the workspace it names.
// Browsers without one are sent to the sign-in page, API callers get 401.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Load(r)
		if err != nil {
			zctx.From(r.Context()).Debug("No session", zap.Error(err))
			h.unauthorized(w, r)
			return
		}
		ws := h.workspaces.Get(s.Workspace, s.Credential.Expires)
		ctx := context.WithValue(r.Context(), sessionKey{}, signedIn{Session: s, ws: ws})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// expire forgets the signed-in state after the catalog service rejected the
// credential.
func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	s := fromContext(r.Context())
	if s.Workspace != "" {
		h.workspaces.Drop(s.Workspace)
	}
	if err := h.sessions.Clear(w, r); err != nil {
		zctx.From(r.Context()).Warn("Clear session failed", zap.Error(err))
	}
	if isAPI(r) {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	http.Redirect(w, r, "/login?expired=1", http.StatusSeeOther)
}

// handleAuth reports whether err was an authentication failure, in which
// case the session is already cleared and the response written.
func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, catalog.ErrUnauthorized) {
		return false
	}
	zctx.From(r.Context()).Info("Catalog rejected credential", zap.Error(err))
	h.expire(w, r)
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data layout) {
	data.Now = h.now()
	if err := h.pages.render(w, status, name, data); err != nil {
		zctx.From(r.Context()).Error("Render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

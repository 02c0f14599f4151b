package console

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/catalog"
)

type signInForm struct {
	Username string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPage struct {
	Username string
	Problems []string
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Load(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := layout{Page: loginPage{}}
	if r.URL.Query().Get("expired") != "" {
		data.Alert = alertSessionExpired
	}
	h.render(w, r, http.StatusOK, pageLogin, data)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	form := signInForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := h.validate.Struct(form); err != nil {
		page := loginPage{Username: form.Username, Problems: problems(err)}
		h.render(w, r, http.StatusUnprocessableEntity, pageLogin, layout{Page: page})
		return
	}

	cred, err := h.auth.SignIn(ctx, form.Username, form.Password)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, catalog.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		lg.Info("Sign-in failed", zap.String("username", form.Username), zap.Error(err))
		h.render(w, r, status, pageLogin, layout{
			Alert: alertSignInFailed,
			Page:  loginPage{Username: form.Username},
		})
		return
	}

	// A new sign-in on the same browser starts a fresh workspace.
	if prev, err := h.sessions.Load(r); err == nil {
		h.workspaces.Drop(prev.Workspace)
	}
	if _, err := h.sessions.Save(w, r, cred); err != nil {
		lg.Error("Save session failed", zap.Error(err))
		h.render(w, r, http.StatusInternalServerError, pageLogin, layout{
			Alert: alertSignInFailed,
			Page:  loginPage{Username: form.Username},
		})
		return
	}
	lg.Info("Signed in", zap.String("username", form.Username), zap.Time("expires", cred.Expires))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if s, err := h.sessions.Load(r); err == nil {
		h.workspaces.Drop(s.Workspace)
	}
	if err := h.sessions.Clear(w, r); err != nil {
		zctx.From(r.Context()).Warn("Clear session failed", zap.Error(err))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// home verifies the session with the catalog service on every entry. Any
// failure signs the administrator out.
func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	s := fromContext(r.Context())
	if err := h.auth.CheckSession(r.Context(), s.Credential); err != nil {
		zctx.From(r.Context()).Info("Session check failed", zap.Error(err))
		h.expire(w, r)
		return
	}
	h.render(w, r, http.StatusOK, pageHome, layout{Nav: navigation("/")})
}

// problems turns validation errors into one line per field.
func problems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out = append(out, fe.Field()+" is required")
		case "email":
			out = append(out, fe.Field()+" must be an email address")
		default:
			out = append(out, fe.Field()+" is invalid")
		}
	}
	return out
}

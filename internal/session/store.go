// Package session keeps the administrator's catalog credential in a signed
// browser cookie.
package session

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/xenking/catalog-admin/internal/domain/auth"
)

// CookieName is the browser cookie holding the session.
const CookieName = "hexToken"

const (
	keyToken     = "token"
	keyExpires   = "expires"
	keyWorkspace = "workspace"
)

// ErrNoSession is returned by Load when the request carries no usable
// session: no cookie, a tampered cookie or an expired credential.
var ErrNoSession = errors.New("no session")

// Session is what a request carries once signed in.
type Session struct {
	Credential auth.Credential
	// Workspace identifies the server-side workspace of this sign-in.
	Workspace string
}

// Config configures Store.
type Config struct {
	// HashKey authenticates the cookie. At least 32 bytes; a random key is
	// generated when empty, which invalidates sessions on restart.
	HashKey []byte
	// BlockKey encrypts the cookie when set (16, 24 or 32 bytes).
	BlockKey []byte
	Secure   bool
}

// Store saves and loads sessions using a gorilla cookie store.
type Store struct {
	cookies *sessions.CookieStore
	now     func() time.Time
}

// NewStore builds a Store from cfg.
func NewStore(cfg Config) (*Store, error) {
	hashKey := cfg.HashKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
		if hashKey == nil {
			return nil, errors.New("generate session hash key")
		}
	}
	if len(hashKey) < 32 {
		return nil, errors.Errorf("session hash key must be at least 32 bytes, got %d", len(hashKey))
	}
	keys := [][]byte{hashKey}
	if len(cfg.BlockKey) > 0 {
		switch len(cfg.BlockKey) {
		case 16, 24, 32:
		default:
			return nil, errors.Errorf("session block key must be 16, 24 or 32 bytes, got %d", len(cfg.BlockKey))
		}
		keys = append(keys, cfg.BlockKey)
	}

	cookies := sessions.NewCookieStore(keys...)
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{cookies: cookies, now: time.Now}, nil
}

// Save starts a new session for cred. The cookie lives until the credential
// expires. A fresh workspace key is issued on every save.
func (s *Store) Save(w http.ResponseWriter, r *http.Request, cred auth.Credential) (Session, error) {
	now := s.now()
	if cred.Expired(now) {
		return Session{}, errors.New("credential already expired")
	}

	sess := sessions.NewSession(s.cookies, CookieName)
	opts := *s.cookies.Options
	opts.MaxAge = int(cred.Expires.Sub(now) / time.Second)
	if opts.MaxAge < 1 {
		opts.MaxAge = 1
	}
	sess.Options = &opts
	sess.IsNew = true

	out := Session{Credential: cred, Workspace: uuid.NewString()}
	sess.Values[keyToken] = cred.Token
	sess.Values[keyExpires] = cred.Expires.UnixMilli()
	sess.Values[keyWorkspace] = out.Workspace

	if err := sess.Save(r, w); err != nil {
		return Session{}, errors.Wrap(err, "save session")
	}
	return out, nil
}

// Load returns the session carried by r.
func (s *Store) Load(r *http.Request) (Session, error) {
	sess, err := s.cookies.New(r, CookieName)
	if err != nil {
		return Session{}, errors.Wrap(ErrNoSession, err.Error())
	}
	if sess.IsNew {
		return Session{}, ErrNoSession
	}

	token, _ := sess.Values[keyToken].(string)
	expires, _ := sess.Values[keyExpires].(int64)
	workspace, _ := sess.Values[keyWorkspace].(string)
	out := Session{
		Credential: auth.Credential{Token: token, Expires: time.UnixMilli(expires)},
		Workspace:  workspace,
	}
	if out.Credential.Expired(s.now()) {
		return Session{}, errors.Wrap(ErrNoSession, "credential expired")
	}
	if out.Workspace == "" {
		return Session{}, errors.Wrap(ErrNoSession, "missing workspace")
	}
	return out, nil
}

// Clear expires the session cookie.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	sess := sessions.NewSession(s.cookies, CookieName)
	opts := *s.cookies.Options
	opts.MaxAge = -1
	sess.Options = &opts
	if err := sess.Save(r, w); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}

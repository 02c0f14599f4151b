package auth

import (
	"context"
	"time"
)

// Credential is the admin token issued by the catalog service at sign-in.
type Credential struct {
	Token   string
	Expires time.Time
}

// Expired reports whether the credential can no longer be presented at now.
// A credential without a token is always expired.
func (c Credential) Expired(now time.Time) bool {
	return c.Token == "" || !now.Before(c.Expires)
}

// Authenticator signs administrators in and verifies issued credentials.
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (Credential, error)
	CheckSession(ctx context.Context, cred Credential) error
}

package catalog

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when the catalog service rejects the presented
// credential, or refuses a sign-in.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-success response from the catalog service.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

// Unwrap maps authentication statuses to ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

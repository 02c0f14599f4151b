// Package httpmiddleware contains the net/http middleware chain of the
// console server.
package httpmiddleware

import "net/http"

// Middleware decorates an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost one
// and sees the request first.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder names the route that served r, e.g. "/products/{id}". It is
// called after the wrapped handler returned, so router state is available.
type RouteFinder func(r *http.Request) string

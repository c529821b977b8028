// Package httpx provides the small HTTP plumbing shared by gateway
// handlers: middleware chaining, JSON responses and rate limiting.
package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h in reverse order, so the first middleware
// listed is the outermost one at request time.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Package middleware provides the HTTP middleware shared by the service
// modules: CORS, request logging, and bearer-token authentication.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Stack is an ordered list of middleware. The first entry is outermost.
type Stack struct {
	chain chi.Middlewares
}

// Use appends mw to the stack.
func (s *Stack) Use(mw ...func(http.Handler) http.Handler) {
	s.chain = append(s.chain, mw...)
}

// Len reports the number of middleware in the stack.
func (s *Stack) Len() int {
	return len(s.chain)
}

// Apply wraps handler with every middleware in the stack.
func (s *Stack) Apply(handler http.Handler) http.Handler {
	if len(s.chain) == 0 {
		return handler
	}
	return s.chain.Handler(handler)
}

// Package module mounts self-contained HTTP sub-applications, each with its
// own middleware stack, under path prefixes of a shared router.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/docintel/pkg/middleware"
)

// Module is a handler served under a fixed path prefix. The handler sees
// paths relative to the prefix when it is a chi router.
type Module struct {
	prefix     string
	handler    http.Handler
	middleware middleware.Stack
}

// New creates a Module served under prefix, e.g. "/api" or "/mcp".
func New(prefix string, handler http.Handler) (*Module, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Module{prefix: prefix, handler: handler}, nil
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module's stack.
func (m *Module) Use(mw ...func(http.Handler) http.Handler) {
	m.middleware.Use(mw...)
}

// Handler returns the module handler wrapped with its middleware.
func (m *Module) Handler() http.Handler {
	return m.middleware.Apply(m.handler)
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case prefix == "/" || strings.HasSuffix(prefix, "/"):
		return fmt.Errorf("module prefix must not end with /: %s", prefix)
	case strings.ContainsAny(prefix, "{}*"):
		return fmt.Errorf("module prefix must be a literal path: %s", prefix)
	}
	return nil
}

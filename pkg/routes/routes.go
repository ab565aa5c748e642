// Package routes lets a handler describe its endpoints as data so the
// module that owns the router can register them.
package routes

import (
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
)

// Route is one method and chi pattern, relative to its Group.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group shares Prefix across Routes and nested Children.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds every route in groups to r.
func Register(r chi.Router, groups ...Group) {
	for _, g := range groups {
		g.register(r, "")
	}
}

func (g Group) register(r chi.Router, parent string) {
	prefix := parent + g.Prefix
	for _, rt := range g.Routes {
		r.MethodFunc(rt.Method, pattern(prefix, rt.Pattern), rt.Handler)
	}
	for _, child := range g.Children {
		child.register(r, prefix)
	}
}

func pattern(prefix, rel string) string {
	p := prefix + rel
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	if len(p) > 1 && p[len(p)-1] == '/' {
		p = path.Clean(p)
	}
	return p
}

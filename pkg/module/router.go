package module

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Router is the process-wide HTTP entry point. Modules mount under their
// prefixes and probes or other native routes register directly. Request IDs,
// real client addresses, trailing-slash cleanup and panic recovery apply to
// every request.
type Router struct {
	mux      *chi.Mux
	prefixes map[string]bool
}

// NewRouter creates a Router with the shared middleware installed.
func NewRouter() *Router {
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.StripSlashes, chimw.Recoverer)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})
	return &Router{mux: mux, prefixes: make(map[string]bool)}
}

// HandleNative registers a handler for method and pattern outside any module.
func (r *Router) HandleNative(method, pattern string, handler http.HandlerFunc) {
	r.mux.MethodFunc(method, pattern, handler)
}

// Mount serves m under its prefix. Mounting two modules on one prefix is a
// programming error and panics.
func (r *Router) Mount(m *Module) {
	if r.prefixes[m.prefix] {
		panic(fmt.Sprintf("module already mounted at %s", m.prefix))
	}
	r.prefixes[m.prefix] = true
	r.mux.Mount(m.prefix, m.Handler())
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/JaimeStill/docintel/pkg/middleware"
	"github.com/JaimeStill/docintel/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// With auth enabled, the issuer is discovered before the module is built.
func NewModule(runtime *Runtime, domain *Domain) (*module.Module, error) {
	r := chi.NewRouter()
	registerRoutes(r, runtime, domain)

	m, err := module.New(runtime.Config.API.BasePath, r)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.CORS(&runtime.Config.API.CORS), middleware.Logger(runtime.Logger))

	if auth := &runtime.Config.API.Auth; auth.Enabled {
		verifier, err := middleware.NewVerifier(runtime.Lifecycle.Context(), auth)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		m.Use(middleware.Auth(verifier, runtime.Logger))
	}

	return m, nil
}

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/JaimeStill/docintel/pkg/routes"
)

func registerRoutes(r chi.Router, runtime *Runtime, domain *Domain) {
	routes.Register(
		r,
		domain.Runs.Handler(domain.Pipeline, runtime.Storage).Routes(),
		domain.Prompts.Handler().Routes(),
	)
}

package main

import (
	"net/http"

	"github.com/JaimeStill/docintel/internal/api"
	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/trigger"
	"github.com/JaimeStill/docintel/pkg/handlers"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
	"github.com/JaimeStill/docintel/pkg/middleware"
	"github.com/JaimeStill/docintel/pkg/module"
)

// Modules are the prefixed handlers mounted on the root router. MCP is
// nil unless an MCP path is configured.
type Modules struct {
	API *module.Module
	MCP *module.Module
}

func NewModules(runtime *api.Runtime, domain *api.Domain, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(runtime, domain)
	if err != nil {
		return nil, err
	}
	mods := &Modules{API: apiModule}

	if cfg.API.MCPPath == "" {
		return mods, nil
	}

	srv := trigger.NewMCPServer(domain.Pipeline, runtime.Storage.Container(), cfg.Version)
	mods.MCP, err = module.New(cfg.API.MCPPath, srv.Handler())
	if err != nil {
		return nil, err
	}
	mods.MCP.Use(middleware.Logger(runtime.Logger))
	return mods, nil
}

func (m *Modules) Mount(router *module.Router) {
	for _, mod := range []*module.Module{m.API, m.MCP} {
		if mod != nil {
			router.Mount(mod)
		}
	}
}

type probe struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// buildRouter serves liveness at /healthz and readiness at /readyz.
// Readiness fails until every startup hook has succeeded and again once
// shutdown begins.
func buildRouter(lc lifecycle.ReadinessChecker, version string) *module.Router {
	router := module.NewRouter()

	router.HandleNative(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, probe{Status: "ok", Version: version})
	})

	router.HandleNative(http.MethodGet, "/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !lc.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, probe{Status: "not ready"})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, probe{Status: "ready", Version: version})
	})

	return router
}

package main

import (
	"context"
	"fmt"

	"github.com/JaimeStill/docintel/internal/api"
	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/infrastructure"
	"github.com/JaimeStill/docintel/pkg/database"
)

// app is the service assembled for a single command invocation.
type app struct {
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	domain *api.Domain
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFrom(rootFlags.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == database.DriverSQLite {
		if err := infra.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	domain, err := api.NewDomain(api.NewRuntime(cfg, infra))
	if err != nil {
		return nil, err
	}

	if err := infra.Start(); err != nil {
		return nil, err
	}
	if err := domain.Start(infra.Lifecycle); err != nil {
		return nil, err
	}
	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, err
	}

	return &app{cfg: cfg, infra: infra, domain: domain}, nil
}

// Close drains telemetry and closes the database and storage systems.
func (a *app) Close() error {
	return a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration())
}

package main

import (
	"context"
	"errors"
	"time"

	"github.com/JaimeStill/docintel/internal/api"
	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/infrastructure"
	"github.com/JaimeStill/docintel/internal/trigger"
	"github.com/JaimeStill/docintel/pkg/database"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// starter registers hooks or workers with the coordinator.
type starter interface {
	Start(lc *lifecycle.Coordinator) error
}

type Server struct {
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	domain *api.Domain

	// started in order after infrastructure
	parts []starter
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	runtime := api.NewRuntime(cfg, infra)
	domain, err := api.NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	mods, err := NewModules(runtime, domain, cfg)
	if err != nil {
		return nil, err
	}
	router := buildRouter(infra.Lifecycle, cfg.Version)
	mods.Mount(router)

	parts := []starter{domain, newHTTPServer(&cfg.Server, router, infra.Logger)}
	triggers, err := newTriggers(cfg, infra, domain)
	if err != nil {
		return nil, err
	}
	parts = append(parts, triggers...)

	infra.Logger.Info("server initialized",
		"addr", cfg.Server.Addr(),
		"env", cfg.Env(),
		"storage", cfg.Storage.Backend,
		"database", cfg.Database.Driver,
		"triggers", len(triggers),
	)

	return &Server{cfg: cfg, infra: infra, domain: domain, parts: parts}, nil
}

// newTriggers builds the enabled event sources. The watcher reads the
// storage directory directly, so it needs the filesystem backend.
func newTriggers(cfg *config.Config, infra *infrastructure.Infrastructure, domain *api.Domain) ([]starter, error) {
	var out []starter

	if cfg.Trigger.Kafka.Enabled {
		out = append(out, trigger.NewKafkaConsumer(&cfg.Trigger.Kafka, domain.Pipeline, infra.Logger))
	}

	if cfg.Trigger.Watcher.Enabled {
		dir, ok := infra.StorageDir()
		if !ok {
			return nil, errors.New("watcher requires the filesystem storage backend")
		}
		out = append(out, trigger.NewWatcher(
			&cfg.Trigger.Watcher, dir, infra.Storage.Container(), domain.Pipeline, infra.Logger,
		))
	}

	return out, nil
}

// Start migrates an embedded SQLite ledger, registers every part with the
// coordinator and returns. Readiness is reported asynchronously.
func (s *Server) Start() error {
	lc := s.infra.Lifecycle

	if s.cfg.Database.Driver == database.DriverSQLite {
		if err := s.infra.Migrate(context.Background()); err != nil {
			return err
		}
	}

	if err := s.infra.Start(); err != nil {
		return err
	}
	for _, p := range s.parts {
		if err := p.Start(lc); err != nil {
			return err
		}
	}

	go func() {
		if err := lc.WaitForStartup(); err != nil {
			s.infra.Logger.Error("service not ready", "error", err)
			return
		}
		s.infra.Logger.Info("service ready")
	}()
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("shutting down", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}

package api

import (
	"github.com/JaimeStill/docintel/internal/config"
	"github.com/JaimeStill/docintel/internal/infrastructure"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
)

// Runtime is what the domain systems and the API module are built from:
// the shared infrastructure with an api-scoped logger, the loaded config,
// and the SQL dialect of the configured database.
type Runtime struct {
	*infrastructure.Infrastructure
	Config     *config.Config
	Pagination pagination.Config
	Dialect    query.Dialect
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Config:         cfg,
		Pagination:     cfg.API.Pagination,
		Dialect:        query.DialectFor(infra.Database.Driver()),
	}
}

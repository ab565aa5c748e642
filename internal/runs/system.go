package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/storage"
)

// System defines the public contract for the run ledger. It records runs
// for the orchestrator and serves them back to operators.
type System interface {
	pipeline.Recorder

	Handler(proc Processor, store storage.System) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Run], error)

	Find(ctx context.Context, id uuid.UUID) (*Run, error)
	Spans(ctx context.Context, id uuid.UUID) ([]Span, error)
	Export(ctx context.Context, filters Filters) ([]byte, error)
}

// Processor runs a trigger through the pipeline.
type Processor interface {
	Run(ctx context.Context, t pipeline.Trigger) (*pipeline.Run, error)
}

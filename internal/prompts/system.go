package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/pkg/pagination"
)

// System is the prompt override store. The reasoning stages read it through
// Source; operators manage it through Store and the HTTP Handler.
type System interface {
	Source
	Store

	Handler() *Handler
}

// Store manages stored overrides. At most one prompt is active for each
// stage and label scope; activating a prompt deactivates its peer.
type Store interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}

package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/query"
	"github.com/JaimeStill/docintel/pkg/repository"
)

const (
	insertPrompt = `INSERT INTO prompts(id, name, stage, label, instructions, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		RETURNING ` + columns

	// Moving an active override to another scope deactivates it, so a
	// scope never ends up with two active prompts.
	updatePrompt = `UPDATE prompts
		SET name = $1, stage = $2, label = $3, instructions = $4, description = $5,
			active = CASE WHEN stage = $2 AND label IS NOT DISTINCT FROM $3 THEN active ELSE false END
		WHERE id = $6
		RETURNING ` + columns

	setActive = `UPDATE prompts SET active = $2 WHERE id = $1 RETURNING ` + columns

	clearScope = `UPDATE prompts SET active = false
		WHERE stage = $1 AND label IS NOT DISTINCT FROM $2 AND active = true`

	activeInScope = `SELECT instructions FROM prompts
		WHERE stage = $1 AND active = true AND label IS NOT DISTINCT FROM $2`
)

type repo struct {
	db         *sql.DB
	dialect    query.Dialect
	file       *FileOverrides
	logger     *slog.Logger
	pagination pagination.Config
}

// New returns the database-backed System. Resolution checks stored
// overrides first, then file overrides, then the built-in defaults.
func New(
	db *sql.DB,
	dialect query.Dialect,
	file *FileOverrides,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		dialect:    dialect,
		file:       file,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// Resolve looks for an active stored override scoped to label, then one
// with no label. A failed lookup is logged and resolution continues with
// the file and default layers.
func (r *repo) Resolve(ctx context.Context, stage Stage, label taxonomy.Label) (string, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return "", err
	}

	var scopes []*taxonomy.Label
	if label != "" {
		scopes = append(scopes, &label)
	}
	scopes = append(scopes, nil)

	for _, scope := range scopes {
		var text string
		err := r.db.QueryRowContext(ctx, activeInScope, string(stage), labelArg(scope)).Scan(&text)
		switch {
		case err == nil:
			return text, nil
		case errors.Is(err, sql.ErrNoRows):
			continue
		}
		r.logger.WarnContext(ctx, "stored prompt lookup failed, falling back",
			"stage", stage, "label", label, "error", err)
		break
	}

	return r.file.Resolve(ctx, stage, label)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := filters.Apply(
		query.NewBuilder(promptsTable, defaultSort).
			WithDialect(r.dialect).
			WhereSearch(page.Search, "Name", "Description"),
	).OrderByFields(page.Sort)

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := r.find(ctx, r.db, id)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) find(ctx context.Context, q repository.Querier, id uuid.UUID) (Prompt, error) {
	s, args := query.NewBuilder(promptsTable).WithDialect(r.dialect).BuildSingle("ID", id)
	return repository.QueryOne(ctx, q, s, args, scanPrompt)
}

// write runs a single RETURNING statement in a transaction and logs the
// affected prompt under event.
func (r *repo) write(ctx context.Context, event, stmt string, args ...any) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, stmt, args, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	r.logger.InfoContext(ctx, event, "id", p.ID, "name", p.Name, "stage", p.Stage, "label", labelArg(p.Label))
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if err := validate(cmd.Name, cmd.Stage, cmd.Label, cmd.Instructions); err != nil {
		return nil, err
	}
	return r.write(ctx, "prompt created", insertPrompt,
		uuid.New(), cmd.Name, string(cmd.Stage), labelArg(cmd.Label), cmd.Instructions, cmd.Description)
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	if err := validate(cmd.Name, cmd.Stage, cmd.Label, cmd.Instructions); err != nil {
		return nil, err
	}
	return r.write(ctx, "prompt updated", updatePrompt,
		cmd.Name, string(cmd.Stage), labelArg(cmd.Label), cmd.Instructions, cmd.Description, id)
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	return r.write(ctx, "prompt deactivated", setActive, id, false)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	r.logger.InfoContext(ctx, "prompt deleted", "id", id)
	return nil
}

// Activate clears whichever prompt is active in the target's scope and
// activates the target, in one transaction.
func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		target, err := r.find(ctx, tx, id)
		if err != nil {
			return Prompt{}, err
		}
		if _, err := tx.ExecContext(ctx, clearScope, string(target.Stage), labelArg(target.Label)); err != nil {
			return Prompt{}, fmt.Errorf("deactivate current: %w", err)
		}
		return repository.QueryOne(ctx, tx, setActive, []any{id, true}, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.InfoContext(ctx, "prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage, "label", labelArg(p.Label))
	return &p, nil
}

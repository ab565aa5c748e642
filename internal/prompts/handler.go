package prompts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/taxonomy"
	"github.com/JaimeStill/docintel/pkg/handlers"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/routes"
)

// Handler serves prompt overrides and the effective instructions of each
// reasoning stage.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest is the body of POST /prompts/search.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// StageContent carries instruction text for a stage, optionally scoped to
// a label.
type StageContent struct {
	Stage   Stage          `json:"stage"`
	Label   taxonomy.Label `json:"label,omitempty"`
	Content string         `json:"content"`
}

func NewHandler(sys System, logger *slog.Logger, cfg pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: cfg,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "", Handler: h.List},
			{Method: http.MethodPost, Pattern: "", Handler: h.Create},
			{Method: http.MethodPost, Pattern: "/search", Handler: h.Search},
			{Method: http.MethodGet, Pattern: "/stages", Handler: h.Stages},
			{Method: http.MethodGet, Pattern: "/{stage}/instructions", Handler: h.Instructions},
			{Method: http.MethodGet, Pattern: "/{stage}/spec", Handler: h.Spec},
			{Method: http.MethodGet, Pattern: "/{id}", Handler: h.Find},
			{Method: http.MethodPut, Pattern: "/{id}", Handler: h.Update},
			{Method: http.MethodDelete, Pattern: "/{id}", Handler: h.Delete},
			{Method: http.MethodPost, Pattern: "/{id}/activate", Handler: h.Activate},
			{Method: http.MethodPost, Pattern: "/{id}/deactivate", Handler: h.Deactivate},
		},
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, chi.URLParam(r, "id"))
	}
	return id, nil
}

// byID runs op against the prompt named in the path and writes the
// resulting prompt.
func (h *Handler) byID(w http.ResponseWriter, r *http.Request, op func(uuid.UUID) (*Prompt, error)) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := op(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}

// List pages through prompts using query parameters for paging and
// filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pagination.PageRequestFromQuery(q, h.pagination)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, FiltersFromQuery(q))
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search is List with paging and filters taken from a JSON body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Stages())
}

// Instructions reports what a stage will actually send: a stored override,
// then the overrides file, then the built-in default. An optional label
// query parameter selects label-scoped extract instructions.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		h.badRequest(w, err)
		return
	}

	var label taxonomy.Label
	if raw := r.URL.Query().Get("label"); raw != "" {
		if label, err = taxonomy.Parse(raw); err != nil {
			h.badRequest(w, ErrInvalidLabel)
			return
		}
	}

	text, err := h.sys.Resolve(r.Context(), stage, label)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Label: label, Content: text})
}

// Spec returns the fixed output contract appended to a stage's
// instructions. It cannot be overridden.
func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		h.badRequest(w, err)
		return
	}

	text, err := Spec(stage)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id uuid.UUID) (*Prompt, error) {
		return h.sys.Find(r.Context(), id)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.badRequest(w, err)
		return
	}

	p, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.badRequest(w, err)
		return
	}

	p, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.sys.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate makes the prompt the only active override in its stage and
// label scope.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id uuid.UUID) (*Prompt, error) {
		return h.sys.Activate(r.Context(), id)
	})
}

// Deactivate clears the active flag so the stage falls back to file or
// default instructions.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id uuid.UUID) (*Prompt, error) {
		return h.sys.Deactivate(r.Context(), id)
	})
}

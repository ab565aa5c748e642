package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/pkg/handlers"
	"github.com/JaimeStill/docintel/pkg/pagination"
	"github.com/JaimeStill/docintel/pkg/routes"
	"github.com/JaimeStill/docintel/pkg/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the run ledger and the synchronous HTTP trigger.
type Handler struct {
	sys        System
	proc       Processor
	store      storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest is the body of POST /runs/search.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler. Without a Processor, POST /runs answers
// 503.
func NewHandler(
	sys System,
	proc Processor,
	store storage.System,
	logger *slog.Logger,
	cfg pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		proc:       proc,
		store:      store,
		logger:     logger.With("handler", "runs"),
		pagination: cfg,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "", Handler: h.List},
			{Method: http.MethodPost, Pattern: "", Handler: h.Process},
			{Method: http.MethodPost, Pattern: "/search", Handler: h.Search},
			{Method: http.MethodGet, Pattern: "/export", Handler: h.Export},
			{Method: http.MethodGet, Pattern: "/{id}", Handler: h.Find},
			{Method: http.MethodGet, Pattern: "/{id}/spans", Handler: h.Spans},
			{Method: http.MethodGet, Pattern: "/{id}/report", Handler: h.Report},
		},
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}

func runID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pagination.PageRequestFromQuery(q, h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.page(w, r, page, FiltersFromQuery(q))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)
	h.page(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, f Filters) {
	result, err := h.sys.List(r.Context(), page, f)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	run, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, run)
}

// Spans lists a run's stage spans in start order.
func (h *Handler) Spans(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	spans, err := h.sys.Spans(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, spans)
}

// Report streams a persisted run's HTML report from storage.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	run, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if run.ReportKey == nil || h.store == nil {
		h.fail(w, ErrNoReport)
		return
	}

	body, err := h.store.Download(r.Context(), *run.ReportKey)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("report stream interrupted", "run_id", id, "error", err)
	}
}

// Export downloads the filtered ledger as a workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.sys.Export(r.Context(), FiltersFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, err)
		return
	}

	name := "runs-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// Process runs a trigger to completion. A persisted run answers 201 and a
// failed run 422, both with the run as the body. A trigger rejected before
// any run exists answers with the mapped error.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	if h.proc == nil {
		h.fail(w, ErrNoPipeline)
		return
	}

	var t pipeline.Trigger
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	run, err := h.proc.Run(r.Context(), t)
	switch {
	case run == nil:
		h.fail(w, err)
	case run.State == pipeline.Failed:
		handlers.RespondJSON(w, http.StatusUnprocessableEntity, run)
	default:
		handlers.RespondJSON(w, http.StatusCreated, run)
	}
}

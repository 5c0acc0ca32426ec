// Package handlers provides HTTP handlers for factor runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/factors"
)

// RunReader reads stored factor runs
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]factors.RunRecord, error)
	GetRun(ctx context.Context, id string) (*factors.RunRecord, error)
	GetLatestRun(ctx context.Context) (*factors.RunRecord, error)
	GetFactorSeries(ctx context.Context, runID string) (factors.Series, factors.Series, error)
	GetPortfolioReturns(ctx context.Context, runID string, month domain.Month) ([]factors.PortfolioReturn, error)
	GetClassification(ctx context.Context, runID string, month domain.Month) (*factors.ClassificationSnapshot, error)
}

// Recomputer triggers a new factor run from a workbook
type Recomputer interface {
	Recompute(ctx context.Context, workbook string) (*factors.RunRecord, error)
}

// RecomputeRequest is the optional body of POST /api/factors/runs. Workbook
// is a file name inside the data directory.
type RecomputeRequest struct {
	Workbook string `json:"workbook" validate:"omitempty,excludesall=/\\,endswith=.xlsx"`
}

// Handler handles factor run HTTP requests
type Handler struct {
	runs       RunReader
	recomputer Recomputer
	dataDir    string
	workbook   string
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewHandler creates a new factor run handler. defaultWorkbook is used when a
// recompute request names no workbook.
func NewHandler(runs RunReader, recomputer Recomputer, dataDir, defaultWorkbook string, log zerolog.Logger) *Handler {
	return &Handler{
		runs:       runs,
		recomputer: recomputer,
		dataDir:    dataDir,
		workbook:   defaultWorkbook,
		validate:   validator.New(),
		log:        log.With().Str("handler", "factors").Logger(),
	}
}

// runDetail is a run with both series and their summaries
type runDetail struct {
	Run           *factors.RunRecord `json:"run"`
	Investment    factors.Series     `json:"investment"`
	Profitability factors.Series     `json:"profitability"`
	Summaries     []factors.Summary  `json:"summaries"`
}

// HandleListRuns handles GET /api/factors/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list factor runs")
		http.Error(w, "Failed to list factor runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []factors.RunRecord{}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}))
}

// HandleGetLatestRun handles GET /api/factors/runs/latest
func (h *Handler) HandleGetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetLatestRun(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest factor run")
		http.Error(w, "Failed to get latest factor run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "No factor runs yet", http.StatusNotFound)
		return
	}
	h.writeRunDetail(w, r, run)
}

// HandleGetRun handles GET /api/factors/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := h.lookupRun(w, r, id)
	if !ok {
		return
	}
	h.writeRunDetail(w, r, run)
}

// HandleGetPortfolios handles GET /api/factors/runs/{id}/portfolios?month=2019-06
func (h *Handler) HandleGetPortfolios(w http.ResponseWriter, r *http.Request, id string) {
	month, ok := h.monthParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.lookupRun(w, r, id); !ok {
		return
	}

	portfolios, err := h.runs.GetPortfolioReturns(r.Context(), id, month)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get portfolio returns")
		http.Error(w, "Failed to get portfolio returns", http.StatusInternalServerError)
		return
	}
	if len(portfolios) == 0 {
		http.Error(w, "Month not in run", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":     id,
		"month":      month,
		"portfolios": portfolios,
	}))
}

// HandleGetClassification handles GET /api/factors/runs/{id}/classification?month=2019-06
func (h *Handler) HandleGetClassification(w http.ResponseWriter, r *http.Request, id string) {
	month, ok := h.monthParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.lookupRun(w, r, id); !ok {
		return
	}

	snap, err := h.runs.GetClassification(r.Context(), id, month)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get classification")
		http.Error(w, "Failed to get classification", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "Month not in run", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":         id,
		"classification": snap,
	}))
}

// HandleRecompute handles POST /api/factors/runs
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid workbook name", http.StatusBadRequest)
		return
	}

	workbook := h.workbook
	if req.Workbook != "" {
		workbook = filepath.Join(h.dataDir, req.Workbook)
	}

	run, err := h.recomputer.Recompute(r.Context(), workbook)
	if errors.Is(err, factors.ErrRecomputeInProgress) {
		http.Error(w, "A factor run is already in progress", http.StatusConflict)
		return
	}
	var alignErr *domain.AlignmentError
	if errors.As(err, &alignErr) {
		http.Error(w, alignErr.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("workbook", workbook).Msg("Factor recompute failed")
		http.Error(w, "Factor recompute failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"run": run,
	}))
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request, id string) (*factors.RunRecord, bool) {
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get factor run")
		http.Error(w, "Failed to get factor run", http.StatusInternalServerError)
		return nil, false
	}
	if run == nil {
		http.Error(w, "Factor run not found", http.StatusNotFound)
		return nil, false
	}
	return run, true
}

func (h *Handler) monthParam(w http.ResponseWriter, r *http.Request) (domain.Month, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		http.Error(w, "month parameter is required", http.StatusBadRequest)
		return domain.Month{}, false
	}
	month, err := domain.ParseMonth(raw)
	if err != nil {
		http.Error(w, "month must look like 2019-06", http.StatusBadRequest)
		return domain.Month{}, false
	}
	return month, true
}

func (h *Handler) writeRunDetail(w http.ResponseWriter, r *http.Request, run *factors.RunRecord) {
	inv, prof, err := h.runs.GetFactorSeries(r.Context(), run.ID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to get factor series")
		http.Error(w, "Failed to get factor series", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(runDetail{
		Run:           run,
		Investment:    inv,
		Profitability: prof,
		Summaries:     []factors.Summary{inv.Summarize(), prof.Summarize()},
	}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

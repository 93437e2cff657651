package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/engine"
	"github.com/wonny/quantrank/internal/joblog"
	"github.com/wonny/quantrank/internal/registry"
	"github.com/wonny/quantrank/pkg/logger"
)

const recomputeTimeout = 30 * time.Minute

// RegistryService is the admin surface of the factor registry.
type RegistryService interface {
	List(ctx context.Context) ([]contracts.Factor, error)
	Create(ctx context.Context, f contracts.Factor) (*contracts.Factor, error)
	Update(ctx context.Context, id int64, f contracts.Factor) (*contracts.Factor, error)
	Delete(ctx context.Context, id int64) error
	Presets(ctx context.Context) ([]contracts.Preset, error)
	ApplyPreset(ctx context.Context, key string) error
}

// Recomputer triggers batch runs.
type Recomputer interface {
	Recompute(ctx context.Context, market string, day contracts.Day) (*engine.RunResult, error)
	RecomputeAll(ctx context.Context, markets []string, day contracts.Day) []engine.MarketRun
}

// JobLogReader reads recorded job runs.
type JobLogReader interface {
	Recent(ctx context.Context, limit int) ([]joblog.Entry, error)
}

// AdminHandler handles the admin API endpoints. Authentication is expected
// to be enforced by the gateway in front of this router.
type AdminHandler struct {
	registry RegistryService
	engine   Recomputer
	jobs     JobLogReader
	markets  []string
	logger   *logger.Logger
}

// NewAdminHandler creates a new admin handler. markets is the set of
// markets "ALL" expands to.
func NewAdminHandler(reg RegistryService, eng Recomputer, jobs JobLogReader, markets []string, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		registry: reg,
		engine:   eng,
		jobs:     jobs,
		markets:  markets,
		logger:   log,
	}
}

// ListFactors returns all live factor definitions.
// GET /api/admin/factors
func (h *AdminHandler) ListFactors(w http.ResponseWriter, r *http.Request) {
	factors, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list factors")
		respondError(w, http.StatusInternalServerError, "failed to list factors")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(factors),
		"factors": factors,
	})
}

// CreateFactor adds a new factor definition.
// POST /api/admin/factors
func (h *AdminHandler) CreateFactor(w http.ResponseWriter, r *http.Request) {
	var f contracts.Factor
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.registry.Create(r.Context(), f)
	if err != nil {
		h.respondRegistryError(w, err, "create factor")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// UpdateFactor replaces a factor definition.
// PUT /api/admin/factors/{id}
func (h *AdminHandler) UpdateFactor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid factor id")
		return
	}

	var f contracts.Factor
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.registry.Update(r.Context(), id, f)
	if err != nil {
		h.respondRegistryError(w, err, "update factor")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteFactor removes a factor logically; history stays intact.
// DELETE /api/admin/factors/{id}
func (h *AdminHandler) DeleteFactor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid factor id")
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.respondRegistryError(w, err, "delete factor")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListPresets returns the preset catalogue.
// GET /api/admin/presets
func (h *AdminHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.registry.Presets(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list presets")
		respondError(w, http.StatusInternalServerError, "failed to list presets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(presets),
		"presets": presets,
	})
}

// ApplyPreset bulk-applies a preset's weight and enabled overrides.
// POST /api/admin/presets/{key}/apply
func (h *AdminHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.registry.ApplyPreset(r.Context(), key); err != nil {
		h.respondRegistryError(w, err, "apply preset")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "applied", "preset": key})
}

type recomputeRequest struct {
	Market string `json:"market"` // market code or ALL
	Day    string `json:"day"`    // YYYY-MM-DD, default today
}

// TriggerRecompute starts a batch run asynchronously and returns 202.
// POST /api/admin/jobs/recompute
func (h *AdminHandler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market := strings.ToUpper(strings.TrimSpace(req.Market))
	if market == "" {
		respondError(w, http.StatusBadRequest, "market is required")
		return
	}

	day := contracts.DayOf(time.Now())
	if req.Day != "" {
		parsed, err := contracts.ParseDay(req.Day)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	markets := []string{market}
	if market == "ALL" {
		markets = h.markets
	} else if !h.knownMarket(market) {
		respondError(w, http.StatusBadRequest, "unknown market")
		return
	}

	// detached from the request: the run outlives the HTTP exchange
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
		defer cancel()

		for _, run := range h.engine.RecomputeAll(ctx, markets, day) {
			if run.Err != nil && !errors.Is(run.Err, engine.ErrAlreadyRunning) {
				h.logger.WithField("market", run.Market).WithError(run.Err).Error("Triggered recompute failed")
			}
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "started",
		"markets": markets,
		"day":     day.String(),
	})
}

// GetJobLogs returns recent job runs, newest first.
// GET /api/admin/jobs/logs?limit=
func (h *AdminHandler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.jobs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load job logs")
		respondError(w, http.StatusInternalServerError, "failed to load job logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(entries),
		"logs":  entries,
	})
}

func (h *AdminHandler) knownMarket(market string) bool {
	for _, m := range h.markets {
		if strings.EqualFold(m, market) {
			return true
		}
	}
	return false
}

// respondRegistryError maps registry sentinels to HTTP status codes.
func (h *AdminHandler) respondRegistryError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, registry.ErrDuplicateKey):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrInvalidWeight), errors.Is(err, registry.ErrInvalidFactorType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrFactorNotFound), errors.Is(err, registry.ErrPresetNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.WithError(err).Errorf("Failed to %s", action)
		respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

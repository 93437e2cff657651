package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/engine"
	"github.com/wonny/quantrank/internal/kpi"
	"github.com/wonny/quantrank/pkg/logger"
	"github.com/wonny/quantrank/pkg/redis"
)

const (
	defaultRankingLimit = 100
	defaultPriceDays    = 120
	kpiPriceLookback    = 260
)

// SnapshotReader reads committed ranking snapshots for the public API.
type SnapshotReader interface {
	LatestDay(ctx context.Context, market string) (contracts.Day, bool, error)
	GetRankings(ctx context.Context, market string, day contracts.Day, limit int) ([]contracts.RankingEntry, error)
	GetBreakdown(ctx context.Context, market, symbol string, day contracts.Day) ([]contracts.FactorScore, error)
	GetFactorScores(ctx context.Context, market string, day contracts.Day) (map[string]map[string]*float64, error)
	GetEntry(ctx context.Context, market, symbol string, day contracts.Day) (*contracts.RankingEntry, error)
}

// PriceReader serves daily bars for the chart and KPI endpoints.
type PriceReader interface {
	PriceHistory(ctx context.Context, market, symbol string, day contracts.Day, limit int) ([]contracts.PriceBar, error)
}

// PublicHandler handles the read-only public API endpoints
type PublicHandler struct {
	snapshots SnapshotReader
	prices    PriceReader
	kpi       *kpi.Calculator
	cache     *redis.Cache
	cacheTTL  time.Duration
	logger    *logger.Logger
}

// NewPublicHandler creates a new public handler. cache may be a disabled
// client's cache; reads then always fall through to Postgres.
func NewPublicHandler(snapshots SnapshotReader, prices PriceReader, cache *redis.Cache, cacheTTL time.Duration, log *logger.Logger) *PublicHandler {
	return &PublicHandler{
		snapshots: snapshots,
		prices:    prices,
		kpi:       kpi.NewCalculator(),
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    log,
	}
}

// RankingItem is one row of the public rankings payload. FactorScores maps
// factor key to the normalized score, nil when not computable.
type RankingItem struct {
	Symbol       string              `json:"symbol"`
	Rank         int                 `json:"rank"`
	DeltaRank    *int                `json:"delta_rank,omitempty"`
	Grade        string              `json:"grade"`
	TotalScore   float64             `json:"total_score"`
	FactorScores map[string]*float64 `json:"factor_scores"`
}

// RankingsResponse is the public rankings payload.
type RankingsResponse struct {
	Market  string        `json:"market"`
	Day     contracts.Day `json:"day"`
	Count   int           `json:"count"`
	Entries []RankingItem `json:"entries"`
}

// GetRankings returns a committed day's ranking summary.
// GET /api/public/rankings/{market}?day=&limit=&include_delta=
func (h *PublicHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	market := strings.ToUpper(mux.Vars(r)["market"])

	limit := defaultRankingLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	includeDelta := true
	if s := r.URL.Query().Get("include_delta"); s != "" {
		includeDelta = s == "true" || s == "1"
	}

	day, usedLatest, ok, err := h.resolveDay(ctx, market, r.URL.Query().Get("day"), w)
	if err != nil || !ok {
		return
	}

	cacheable := usedLatest && limit == defaultRankingLimit
	cacheKey := engine.LatestRankingsCacheKey(market)
	var resp RankingsResponse
	hit := false
	if cacheable {
		if found, err := h.cache.Get(ctx, cacheKey, &resp); err == nil && found {
			hit = true
		}
	}

	if !hit {
		entries, err := h.snapshots.GetRankings(ctx, market, day, limit)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load rankings")
			respondError(w, http.StatusInternalServerError, "failed to load rankings")
			return
		}

		factorScores, err := h.snapshots.GetFactorScores(ctx, market, day)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load factor scores")
			respondError(w, http.StatusInternalServerError, "failed to load rankings")
			return
		}

		resp = RankingsResponse{Market: market, Day: day, Count: len(entries)}
		resp.Entries = make([]RankingItem, 0, len(entries))
		for _, e := range entries {
			resp.Entries = append(resp.Entries, RankingItem{
				Symbol:       e.Symbol,
				Rank:         e.Rank,
				DeltaRank:    e.DeltaRank,
				Grade:        e.Grade,
				TotalScore:   e.TotalScore,
				FactorScores: factorScores[e.Symbol],
			})
		}

		if cacheable {
			if err := h.cache.Set(ctx, cacheKey, resp, h.cacheTTL); err != nil {
				h.logger.WithError(err).Debug("Failed to cache rankings")
			}
		}
	}

	if !includeDelta {
		for i := range resp.Entries {
			resp.Entries[i].DeltaRank = nil
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// StockResponse is the public per-symbol detail payload.
type StockResponse struct {
	Symbol    string                  `json:"symbol"`
	Market    string                  `json:"market"`
	Day       contracts.Day           `json:"day"`
	Ranking   *RankingItem            `json:"ranking"` // nil when unranked that day
	Breakdown []contracts.FactorScore `json:"breakdown"`
}

// GetStock returns one symbol's ranking entry plus its full factor
// breakdown, disabled factors included.
// GET /api/public/stocks/{market}/{symbol}?day=
func (h *PublicHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	market := strings.ToUpper(vars["market"])
	symbol := vars["symbol"]

	day, _, ok, err := h.resolveDay(ctx, market, r.URL.Query().Get("day"), w)
	if err != nil || !ok {
		return
	}

	breakdown, err := h.snapshots.GetBreakdown(ctx, market, symbol, day)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load breakdown")
		respondError(w, http.StatusInternalServerError, "failed to load breakdown")
		return
	}
	if len(breakdown) == 0 {
		respondError(w, http.StatusNotFound, "symbol not found for this day")
		return
	}

	entry, err := h.snapshots.GetEntry(ctx, market, symbol, day)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot entry")
		respondError(w, http.StatusInternalServerError, "failed to load snapshot entry")
		return
	}

	resp := StockResponse{Symbol: symbol, Market: market, Day: day, Breakdown: breakdown}
	if entry != nil {
		resp.Ranking = &RankingItem{
			Symbol:     entry.Symbol,
			Rank:       entry.Rank,
			DeltaRank:  entry.DeltaRank,
			Grade:      entry.Grade,
			TotalScore: entry.TotalScore,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetPrices returns recent daily bars for charting.
// GET /api/public/stocks/{market}/{symbol}/prices?days=
func (h *PublicHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	market := strings.ToUpper(vars["market"])
	symbol := vars["symbol"]

	days := defaultPriceDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	bars, err := h.prices.PriceHistory(ctx, market, symbol, contracts.DayOf(time.Now()), days)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load prices")
		respondError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"market": market,
		"count":  len(bars),
		"prices": bars,
	})
}

// GetKPI returns risk/return KPIs computed over recent closes.
// GET /api/public/stocks/{market}/{symbol}/kpi
func (h *PublicHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	market := strings.ToUpper(vars["market"])
	symbol := vars["symbol"]

	bars, err := h.prices.PriceHistory(ctx, market, symbol, contracts.DayOf(time.Now()), kpiPriceLookback)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load prices for KPI")
		respondError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"market": market,
		"points": len(closes),
		"kpi":    h.kpi.Compute(closes),
	})
}

// resolveDay picks the requested day or falls back to the market's latest
// committed day. It writes the error response itself; callers bail out when
// ok is false or err is non-nil. usedLatest reports whether the fallback
// was taken.
func (h *PublicHandler) resolveDay(ctx context.Context, market, raw string, w http.ResponseWriter) (day contracts.Day, usedLatest, ok bool, err error) {
	if raw != "" {
		day, err = contracts.ParseDay(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
			return contracts.Day{}, false, false, err
		}
		return day, false, true, nil
	}

	day, found, err := h.snapshots.LatestDay(ctx, market)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve latest day")
		respondError(w, http.StatusInternalServerError, "failed to resolve latest day")
		return contracts.Day{}, false, false, err
	}
	if !found {
		respondError(w, http.StatusNotFound, "no rankings committed for this market")
		return contracts.Day{}, false, false, nil
	}
	return day, true, true, nil
}

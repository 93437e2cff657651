package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/api"
	"github.com/wonny/quantrank/internal/api/handlers"
	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/engine"
	"github.com/wonny/quantrank/internal/joblog"
	"github.com/wonny/quantrank/internal/marketdata"
	"github.com/wonny/quantrank/internal/registry"
	"github.com/wonny/quantrank/pkg/config"
	"github.com/wonny/quantrank/pkg/logger"
	"github.com/wonny/quantrank/pkg/redis"
)

var testDay = contracts.NewDay(2024, time.June, 3)

func intp(v int) *int { return &v }

func fp(v float64) *float64 { return &v }

// fakeSnapshots serves one committed day.
type fakeSnapshots struct {
	day       contracts.Day
	entries   []contracts.RankingEntry
	breakdown map[string][]contracts.FactorScore
}

func (f *fakeSnapshots) LatestDay(ctx context.Context, market string) (contracts.Day, bool, error) {
	if len(f.entries) == 0 {
		return contracts.Day{}, false, nil
	}
	return f.day, true, nil
}

func (f *fakeSnapshots) GetRankings(ctx context.Context, market string, day contracts.Day, limit int) ([]contracts.RankingEntry, error) {
	if !day.Equal(f.day) {
		return nil, nil
	}
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeSnapshots) GetBreakdown(ctx context.Context, market, symbol string, day contracts.Day) ([]contracts.FactorScore, error) {
	return f.breakdown[symbol], nil
}

func (f *fakeSnapshots) GetFactorScores(ctx context.Context, market string, day contracts.Day) (map[string]map[string]*float64, error) {
	if !day.Equal(f.day) {
		return nil, nil
	}
	scores := make(map[string]map[string]*float64)
	for symbol, rows := range f.breakdown {
		scores[symbol] = make(map[string]*float64)
		for _, row := range rows {
			scores[symbol][row.FactorKey] = row.Score
		}
	}
	return scores, nil
}

func (f *fakeSnapshots) GetEntry(ctx context.Context, market, symbol string, day contracts.Day) (*contracts.RankingEntry, error) {
	for _, e := range f.entries {
		if e.Symbol == symbol && day.Equal(f.day) {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

type fakeRecomputer struct {
	calls chan []string
}

func (f *fakeRecomputer) Recompute(ctx context.Context, market string, day contracts.Day) (*engine.RunResult, error) {
	return &engine.RunResult{Market: market, Day: day}, nil
}

func (f *fakeRecomputer) RecomputeAll(ctx context.Context, markets []string, day contracts.Day) []engine.MarketRun {
	if f.calls != nil {
		f.calls <- markets
	}
	runs := make([]engine.MarketRun, 0, len(markets))
	for _, m := range markets {
		runs = append(runs, engine.MarketRun{Market: m, Result: &engine.RunResult{Market: m, Day: day}})
	}
	return runs
}

type fakeJobs struct {
	entries []joblog.Entry
	err     error
}

func (f *fakeJobs) Recent(ctx context.Context, limit int) ([]joblog.Entry, error) {
	return f.entries, f.err
}

func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

func newTestServer(t *testing.T, snaps *fakeSnapshots, store *marketdata.MemoryStore, rec *fakeRecomputer, jobs *fakeJobs) *httptest.Server {
	t.Helper()
	log := logger.NewNop()

	if store == nil {
		store = marketdata.NewMemoryStore()
	}
	if rec == nil {
		rec = &fakeRecomputer{}
	}
	if jobs == nil {
		jobs = &fakeJobs{}
	}

	public := handlers.NewPublicHandler(snaps, store, disabledCache(t), time.Minute, log)
	reg := registry.NewService(registry.NewMemoryRepository(), log)
	admin := handlers.NewAdminHandler(reg, rec, jobs, []string{"KR", "US"}, log)

	srv := httptest.NewServer(api.NewRouter(public, admin, log))
	t.Cleanup(srv.Close)
	return srv
}

func rankedSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		day: testDay,
		entries: []contracts.RankingEntry{
			{Symbol: "AAA", Market: "US", Day: testDay, TotalScore: 90, Grade: "A", Rank: 1, DeltaRank: intp(2)},
			{Symbol: "BBB", Market: "US", Day: testDay, TotalScore: 40, Grade: "D", Rank: 2},
		},
		breakdown: map[string][]contracts.FactorScore{
			"AAA": {
				{Symbol: "AAA", FactorKey: "momentum_120d", Score: fp(90), Weight: 1, Enabled: true},
				{Symbol: "AAA", FactorKey: "pe_ratio", Weight: 0.5, Enabled: false},
			},
		},
	}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGetRankingsLatestDay(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	var resp handlers.RankingsResponse
	status := getJSON(t, srv.URL+"/api/public/rankings/us", &resp)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "US", resp.Market)
	assert.Equal(t, testDay.String(), resp.Day.String())
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "AAA", resp.Entries[0].Symbol)
	require.NotNil(t, resp.Entries[0].DeltaRank)
	assert.Equal(t, 2, *resp.Entries[0].DeltaRank)
}

func TestGetRankingsCarriesFactorScores(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	var resp handlers.RankingsResponse
	status := getJSON(t, srv.URL+"/api/public/rankings/US", &resp)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, resp.Entries, 2)
	scores := resp.Entries[0].FactorScores
	require.NotNil(t, scores)
	require.NotNil(t, scores["momentum_120d"])
	assert.Equal(t, 90.0, *scores["momentum_120d"])
	// stored but unscored factors surface as explicit nulls
	val, ok := scores["pe_ratio"]
	assert.True(t, ok)
	assert.Nil(t, val)
}

func TestGetRankingsExcludeDelta(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	var resp handlers.RankingsResponse
	status := getJSON(t, srv.URL+"/api/public/rankings/US?include_delta=false", &resp)
	require.Equal(t, http.StatusOK, status)
	for _, e := range resp.Entries {
		assert.Nil(t, e.DeltaRank)
	}
}

func TestGetRankingsLimit(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	var resp handlers.RankingsResponse
	status := getJSON(t, srv.URL+"/api/public/rankings/US?limit=1", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Entries, 1)
}

func TestGetRankingsNoSnapshots(t *testing.T) {
	srv := newTestServer(t, &fakeSnapshots{}, nil, nil, nil)

	status := getJSON(t, srv.URL+"/api/public/rankings/US", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetRankingsInvalidDay(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	status := getJSON(t, srv.URL+"/api/public/rankings/US?day=junk", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetStockIncludesDisabledFactors(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	var resp handlers.StockResponse
	status := getJSON(t, srv.URL+"/api/public/stocks/US/AAA", &resp)
	require.Equal(t, http.StatusOK, status)

	require.NotNil(t, resp.Ranking)
	assert.Equal(t, 1, resp.Ranking.Rank)
	require.Len(t, resp.Breakdown, 2)
	// the disabled factor still appears in the breakdown
	assert.False(t, resp.Breakdown[1].Enabled)
}

func TestGetStockUnknownSymbol(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	status := getJSON(t, srv.URL+"/api/public/stocks/US/ZZZ", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetPrices(t *testing.T) {
	store := marketdata.NewMemoryStore()
	today := contracts.DayOf(time.Now())
	store.AddPriceBars("US", "AAA", []contracts.PriceBar{
		{Day: today.AddDays(-1), Open: 1, High: 2, Low: 1, Close: 2},
		{Day: today, Open: 2, High: 3, Low: 2, Close: 3},
	})
	srv := newTestServer(t, rankedSnapshots(), store, nil, nil)

	var resp struct {
		Count  int                  `json:"count"`
		Prices []contracts.PriceBar `json:"prices"`
	}
	status := getJSON(t, srv.URL+"/api/public/stocks/US/AAA/prices", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, resp.Count)
}

func TestGetKPIWithSparseHistory(t *testing.T) {
	// below the minimum window the report comes back with null KPIs
	store := marketdata.NewMemoryStore()
	today := contracts.DayOf(time.Now())
	store.AddPriceBars("US", "AAA", []contracts.PriceBar{
		{Day: today, Close: 100},
	})
	srv := newTestServer(t, rankedSnapshots(), store, nil, nil)

	var resp struct {
		Points int                    `json:"points"`
		KPI    map[string]interface{} `json:"kpi"`
	}
	status := getJSON(t, srv.URL+"/api/public/stocks/US/AAA/kpi", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, resp.Points)
	assert.Nil(t, resp.KPI["max_drawdown"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSnapshots{}, nil, nil, nil)

	var resp map[string]interface{}
	status := getJSON(t, srv.URL+"/health", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp["status"])
}

func TestTriggerRecomputeAllExpandsMarkets(t *testing.T) {
	rec := &fakeRecomputer{calls: make(chan []string, 1)}
	srv := newTestServer(t, rankedSnapshots(), nil, rec, nil)

	resp, err := http.Post(srv.URL+"/api/admin/jobs/recompute", "application/json",
		jsonBody(`{"market":"ALL","day":"2024-06-03"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case markets := <-rec.calls:
		assert.Equal(t, []string{"KR", "US"}, markets)
	case <-time.After(2 * time.Second):
		t.Fatal("recompute was never started")
	}
}

func TestTriggerRecomputeUnknownMarket(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, nil)

	resp, err := http.Post(srv.URL+"/api/admin/jobs/recompute", "application/json",
		jsonBody(`{"market":"JP"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobLogsError(t *testing.T) {
	srv := newTestServer(t, rankedSnapshots(), nil, nil, &fakeJobs{err: errors.New("db down")})

	status := getJSON(t, srv.URL+"/api/admin/jobs/logs", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

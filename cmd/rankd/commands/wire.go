package commands

import (
	"fmt"

	"github.com/wonny/quantrank/internal/engine"
	"github.com/wonny/quantrank/internal/ingestion"
	"github.com/wonny/quantrank/internal/joblog"
	"github.com/wonny/quantrank/internal/marketdata"
	"github.com/wonny/quantrank/internal/registry"
	"github.com/wonny/quantrank/internal/scoring"
	"github.com/wonny/quantrank/pkg/config"
	"github.com/wonny/quantrank/pkg/database"
	"github.com/wonny/quantrank/pkg/logger"
	"github.com/wonny/quantrank/pkg/redis"
)

// app bundles the wired components shared by the CLI commands.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	rdb          *redis.Client
	cache        *redis.Cache
	registry     *registry.Service
	marketRepo   *marketdata.Repository
	snapshots    *engine.SnapshotRepository
	jobs         *joblog.Repository
	orchestrator *engine.Orchestrator
}

// buildApp wires the full application graph. Callers must invoke the
// returned close function.
func buildApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	grades, err := loadGrades(cfg)
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}
	grader, err := scoring.NewGrader(grades)
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("build grader: %w", err)
	}

	cache := redis.NewCache(rdb, "quantrank")

	regRepo := registry.NewPostgresRepository(db.Pool)
	regSvc := registry.NewService(regRepo, log)

	marketRepo := marketdata.NewRepository(db.Pool)
	adapter := ingestion.NewLocalAdapter(marketRepo, ingestion.NewCalculators(), log)

	snapshots := engine.NewSnapshotRepository(db.Pool)
	jobs := joblog.NewRepository(db.Pool)

	var locker engine.RunLocker
	if rdb.Enabled() {
		locker = engine.NewRedisLocker(rdb, cfg.Engine.LeaseTTL)
	} else {
		locker = engine.NewMemoryLocker()
	}

	orch := engine.NewOrchestrator(
		regSvc,
		marketRepo,
		adapter,
		engine.NewInvalidatingSnapshots(snapshots, cache),
		grader,
		locker,
		jobs,
		log,
		cfg.Engine.FetchWorkers,
		cfg.Ingestion.FetchTimeout,
	)

	a := &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		rdb:          rdb,
		cache:        cache,
		registry:     regSvc,
		marketRepo:   marketRepo,
		snapshots:    snapshots,
		jobs:         jobs,
		orchestrator: orch,
	}
	closeFn := func() {
		a.db.Close()
		_ = a.rdb.Close()
	}
	return a, closeFn, nil
}

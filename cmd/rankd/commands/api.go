package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantrank/internal/api"
	"github.com/wonny/quantrank/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                                      - Health check
  GET  /api/public/rankings/{market}                - Day ranking summary
  GET  /api/public/stocks/{market}/{symbol}         - Ranking + factor breakdown
  GET  /api/public/stocks/{market}/{symbol}/prices  - Daily bars
  GET  /api/public/stocks/{market}/{symbol}/kpi     - Risk/return KPIs
  GET  /api/admin/factors                           - Factor definitions
  POST /api/admin/jobs/recompute                    - Trigger a batch run

Example:
  go run ./cmd/rankd api
  go run ./cmd/rankd api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp()
	if err != nil {
		return err
	}
	defer closeApp()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	public := handlers.NewPublicHandler(a.snapshots, a.marketRepo, a.cache, a.cfg.Engine.CacheTTL, a.log)
	admin := handlers.NewAdminHandler(a.registry, a.orchestrator, a.jobs, a.cfg.Engine.Markets, a.log)
	router := api.NewRouter(public, admin, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

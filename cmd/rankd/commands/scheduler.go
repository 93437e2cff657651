package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/quantrank/internal/scheduler"
	"github.com/wonny/quantrank/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the recompute scheduler",
	Long: `Starts the scheduler daemon or inspects its jobs.

One recompute job is registered per configured market, each running the
full ranking pipeline on the RECOMPUTE_CRON schedule.

Subcommands:
  start   - Start the scheduler daemon
  list    - List registered jobs
  run     - Run one job immediately
  status  - Show recent job results

Example:
  go run ./cmd/rankd scheduler start
  go run ./cmd/rankd scheduler run recompute_kr`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Long: `Starts the scheduler and registers a recompute job per market.

Jobs run on the RECOMPUTE_CRON schedule (default: weekdays 18:30).
A run already holding the market lease is skipped, not retried.

Stop the scheduler with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show recent job results",
		RunE:  showJobStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, closeApp, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeApp()

	sched.Start()

	fmt.Println("Scheduler started")
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, closeApp, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeApp()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, closeApp, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeApp()

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started, press Ctrl+C to exit")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}

func showJobStatus(cmd *cobra.Command, args []string) error {
	sched, closeApp, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeApp()

	for _, jobName := range sched.GetAllJobs() {
		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return fmt.Errorf("get job history: %w", err)
		}

		fmt.Printf("%s\n", jobName)
		fmt.Printf("  Success rate: %.1f%%\n", history.GetSuccessRate()*100)
		for _, result := range history.GetLatestResults(5) {
			status := "ok"
			if !result.Success {
				status = "failed: " + result.Error
			}
			fmt.Printf("  %s  %s (%s)\n",
				result.StartTime.Format("2006-01-02 15:04:05"), status, result.Duration)
		}
		fmt.Println()
	}

	return nil
}

func initScheduler() (*scheduler.Scheduler, func(), error) {
	a, closeApp, err := buildApp()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)
	for _, market := range a.cfg.Engine.Markets {
		job := jobs.NewRecomputeJob(a.orchestrator, market, a.cfg.Engine.RecomputeCron, a.log)
		if err := sched.AddJob(job); err != nil {
			closeApp()
			return nil, nil, fmt.Errorf("add job: %w", err)
		}
	}

	return sched, closeApp, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run ingestion and enrichment on their cron schedules",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"mailbox", cfg.Mailbox.Type,
		"folder", cfg.Mailbox.Folder,
		"storage", cfg.Storage.Type,
		"ingest", cfg.Schedule.Ingest,
		"enrich", cfg.Schedule.Enrich,
		"workers", cfg.Enrichment.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		logger.Error("failed to set up", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	jobs := daemonJobs(a)
	if len(jobs) == 0 {
		logger.Error("no schedule configured: set schedule.ingest and/or schedule.enrich")
		a.Close()
		os.Exit(1)
	}

	sched := scheduler.NewScheduler(jobs, cfg.Schedule.RunOnStart, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		a.Close()
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

func daemonJobs(a *app) []scheduler.Job {
	cfg := a.cfg
	var jobs []scheduler.Job
	if cfg.Schedule.Ingest != "" {
		jobs = append(jobs, scheduler.Job{
			Name: "ingest",
			Spec: cfg.Schedule.Ingest,
			Run: func(ctx context.Context) error {
				_, err := a.orch.RunIngestion(ctx)
				return err
			},
		})
	}
	if cfg.Schedule.Enrich != "" {
		jobs = append(jobs, scheduler.Job{
			Name: "enrich",
			Spec: cfg.Schedule.Enrich,
			Run: func(ctx context.Context) error {
				_, err := a.orch.RunEnrichment(ctx)
				return err
			},
		})
	}
	if len(jobs) > 0 && cfg.Mailbox.Type == "feed" && a.ledger != nil {
		ledger, retention := a.ledger, cfg.Mailbox.LedgerRetention
		jobs = append(jobs, scheduler.Job{
			Name: "ledger-cleanup",
			Spec: "@daily",
			Run: func(ctx context.Context) error {
				return ledger.Cleanup(ctx, retention)
			},
		})
	}
	return jobs
}

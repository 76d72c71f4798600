package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/report"
)

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion over the mailbox",
	Long: "Attributes every inbound item to a source, creates offers from the recognised ones,\n" +
		"captures samples from unknown senders and archives what was handled.",
	RunE: runIngestCmd,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "extract and report, but write, archive and save nothing")
	rootCmd.AddCommand(ingestCmd)
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, appOptions{dryRun: ingestDryRun})
	if err != nil {
		logger.Error("failed to set up", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	summary, err := a.orch.RunIngestion(ctx)
	if rerr := report.Summary(os.Stdout, summary); rerr != nil {
		logger.Warn("render summary", "error", rerr)
	}
	if err != nil {
		logger.Error("ingestion aborted", "error", err)
		a.Close()
		os.Exit(1)
	}
	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/report"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch the pages of pending offers and advance their status",
	RunE:  runEnrichCmd,
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "maximum number of offers to enrich (default: enrichment.limit)")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrichCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cmd.Flags().Changed("limit") {
		cfg.Enrichment.Limit = enrichLimit
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		logger.Error("failed to set up", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	summary, err := a.orch.RunEnrichment(ctx)
	if rerr := report.Summary(os.Stdout, summary); rerr != nil {
		logger.Warn("render summary", "error", rerr)
	}
	if err != nil {
		logger.Error("enrichment aborted", "error", err)
		a.Close()
		os.Exit(1)
	}
	return nil
}

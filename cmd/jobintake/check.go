package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Fetch one offer page and print what enrichment would extract",
	Long:  "One-shot fetch through the enrichment fetcher stack. Does not write to the store.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rawURL := args[0]
	if u, err := url.Parse(rawURL); err == nil {
		logger.Debug("rate limit", "host", u.Hostname(), "min_delay", cfg.Enrichment.RateLimit.MinDelayFor(strings.ToLower(u.Hostname())))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := newPageFetcher(cfg.Enrichment, &http.Client{Timeout: cfg.Enrichment.RequestTimeout}, logger)
	fields, err := f.FetchOfferContent(ctx, rawURL)
	if err != nil {
		reason := model.ReasonOf(err)
		logger.Error("fetch failed", "url", rawURL, "reason", reason, "error", err)
		os.Exit(1)
	}

	for _, field := range model.MutableFields {
		v := fields[field]
		if v == "" {
			continue
		}
		if field == model.FieldDescriptionText && len(v) > 200 {
			v = v[:200] + "..."
		}
		fmt.Printf("%-17s %s\n", field+":", v)
	}
	return nil
}

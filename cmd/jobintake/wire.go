package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"

	"github.com/amishk599/jobintake/internal/analysis"
	"github.com/amishk599/jobintake/internal/config"
	"github.com/amishk599/jobintake/internal/extractor"
	"github.com/amishk599/jobintake/internal/fetcher"
	"github.com/amishk599/jobintake/internal/inbox"
	"github.com/amishk599/jobintake/internal/lifecycle"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/ratelimit"
	"github.com/amishk599/jobintake/internal/retry"
	"github.com/amishk599/jobintake/internal/run"
	"github.com/amishk599/jobintake/internal/sample"
	"github.com/amishk599/jobintake/internal/store"
	"github.com/amishk599/jobintake/internal/upsert"
)

// app holds the wired collaborators of one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources store.SourceRepository
	offers  store.OfferStore
	ledger  store.ArchiveLedger
	orch    *run.Orchestrator
	closers []func() error
}

type appOptions struct {
	dryRun bool
	// readOnly skips the collaborators an audit never touches: samples,
	// analysis and notifications.
	readOnly bool
}

func (a *app) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything opened by buildApp, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// openStorage opens the offer store, the registry repository and, when the
// backend provides one, the archived-item ledger.
func (a *app) openStorage(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Storage.PostgresURL, a.logger)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		a.addCloser(pg.Close)
		a.offers = pg
		a.sources = pg
	default:
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.addCloser(sq.Close)
		a.offers = sq
		a.sources = sq
		a.ledger = sq
	}
	if cfg.Registry.Type == "file" {
		a.sources = store.NewSourceFile(cfg.Registry.File)
	}
	return nil
}

// openLedger returns the archived-item ledger, opening a local sqlite file
// when the offer store lives in Postgres.
func (a *app) openLedger() (store.ArchiveLedger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	sq, err := store.NewSQLiteStore(a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.addCloser(sq.Close)
	a.ledger = sq
	return sq, nil
}

func (a *app) openReader(ctx context.Context, httpClient *http.Client) (inbox.Reader, error) {
	m := a.cfg.Mailbox
	switch m.Type {
	case "gmail":
		svc, err := inbox.NewGmailService(ctx, m.CredentialsFile)
		if err != nil {
			return nil, &model.TransportError{Op: "gmail client", Err: err}
		}
		return inbox.NewGmailReader(svc, m.User, a.logger), nil
	case "dir":
		return inbox.NewDirReader(m.Root, a.logger), nil
	case "feed":
		ledger, err := a.openLedger()
		if err != nil {
			return nil, err
		}
		return inbox.NewFeedReader(httpClient, m.Feeds, ledger, a.logger), nil
	default:
		return nil, fmt.Errorf("unsupported mailbox type %q", m.Type)
	}
}

func (a *app) openSamples(ctx context.Context) (sample.Sink, error) {
	s := a.cfg.Samples
	switch s.Type {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.addCloser(client.Close)
		return sample.NewGCSSink(client, s.GCSBucket, a.logger), nil
	case "none":
		return nil, nil
	default:
		return sample.NewDirSink(s.Dir), nil
	}
}

func (a *app) openPublisher(ctx context.Context) (analysis.Publisher, error) {
	an := a.cfg.Analysis
	if an.RedisURL == "" {
		return analysis.Nop{}, nil
	}
	rdb, err := analysis.NewRedisClient(ctx, an.RedisURL)
	if err != nil {
		return nil, err
	}
	a.addCloser(rdb.Close)
	a.logger.Info("analysis hand-off enabled", "channel", an.Channel)
	return analysis.NewRedisPublisher(rdb, an.Channel, a.logger), nil
}

// newPageFetcher stacks the page fetcher: routing by host, per-host spacing
// and bounded retries around each spaced attempt.
func newPageFetcher(cfg config.EnrichmentConfig, httpClient *http.Client, logger *slog.Logger) model.PageFetcher {
	limiter := ratelimit.NewHostRateLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.HostOverrides)
	var f model.PageFetcher = fetcher.NewRouter(httpClient)
	f = ratelimit.NewRateLimitedFetcher(f, limiter)
	if cfg.Retries > 0 {
		f = retry.NewRetryFetcher(f, cfg.Retries, cfg.BaseDelay, logger)
	}
	return f
}

// buildApp wires an Orchestrator from cfg. Callers must Close the app.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	cfg := a.cfg
	if err := a.openStorage(ctx); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.Enrichment.RequestTimeout}
	reader, err := a.openReader(ctx, httpClient)
	if err != nil {
		return err
	}

	var backend upsert.Backend = a.offers
	if opts.dryRun {
		a.logger.Info("dry-run mode enabled, nothing will be written")
		backend = store.NewNopStore()
	}

	deps := run.Deps{
		Sources:   a.sources,
		Reader:    reader,
		Extractor: extractor.Default(),
		Upserter:  upsert.New(upsert.NewNarrowingBackend(backend, cfg.Upsert.ExtendSchema, a.logger), a.logger),
		Offers:    a.offers,
		Fetcher:   newPageFetcher(cfg.Enrichment, httpClient, a.logger),
	}
	if !opts.readOnly {
		if deps.Samples, err = a.openSamples(ctx); err != nil {
			return err
		}
		if deps.Publisher, err = a.openPublisher(ctx); err != nil {
			return err
		}
		deps.Notifier = setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, a.logger)
	}

	a.orch = run.New(deps, run.Config{
		Folder:        cfg.Mailbox.Folder,
		ArchiveFolder: cfg.Mailbox.ArchiveFolder,
		SampleCap:     cfg.Samples.Cap,
		Workers:       cfg.Enrichment.Workers,
		EnrichLimit:   cfg.Enrichment.Limit,
		Rule:          lifecycle.Rule{MinOtherFields: cfg.Enrichment.MinOtherFields},
		DryRun:        opts.dryRun,
	}, a.logger)
	return nil
}

// openSourcesOnly wires just the registry repository for the sources commands.
func openSourcesOnly(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if cfg.Registry.Type == "file" {
		a.sources = store.NewSourceFile(cfg.Registry.File)
		return a, nil
	}
	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

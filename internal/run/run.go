// Package run orchestrates the three operator entry points: an audit preview,
// an ingestion run over the mailbox and an enrichment run over pending offers.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobintake/internal/analysis"
	"github.com/amishk599/jobintake/internal/dispatch"
	"github.com/amishk599/jobintake/internal/inbox"
	"github.com/amishk599/jobintake/internal/lifecycle"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
	"github.com/amishk599/jobintake/internal/sample"
	"github.com/amishk599/jobintake/internal/store"
	"github.com/amishk599/jobintake/internal/upsert"
)

// Extractor is the per-source parser registry.
type Extractor interface {
	dispatch.ParserSet
	Extract(name model.SourceName, payload []byte) ([]model.Draft, error)
}

// EligibleLister yields offers awaiting enrichment, excluding the named
// sources before applying limit.
type EligibleLister interface {
	ListEligible(ctx context.Context, limit int, exclude []model.SourceName) ([]model.Offer, error)
}

// Deps are the collaborators of an Orchestrator. Samples, Publisher and
// Notifier may be nil.
type Deps struct {
	Sources   store.SourceRepository
	Reader    inbox.Reader
	Extractor Extractor
	Upserter  *upsert.Upserter
	Offers    EligibleLister
	Fetcher   model.PageFetcher
	Samples   sample.Sink
	Publisher analysis.Publisher
	Notifier  model.Notifier
}

// Config tunes a run.
type Config struct {
	Folder        string
	ArchiveFolder string
	SampleCap     int
	Workers       int
	EnrichLimit   int // zero means every eligible offer
	Rule          lifecycle.Rule
	// DryRun skips archiving and registry writes.
	DryRun bool
}

// Orchestrator runs audits, ingestions and enrichments. Runs are sequential;
// the caller must not start two at once.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if deps.Publisher == nil {
		deps.Publisher = analysis.Nop{}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SampleCap == 0 {
		cfg.SampleCap = dispatch.DefaultSampleCap
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  newRunID,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// loadRegistry reads the registry fresh from its repository. An empty
// repository yields the default registry.
func (o *Orchestrator) loadRegistry(ctx context.Context) (*registry.Registry, error) {
	entries, err := o.deps.Sources.LoadSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	if len(entries) == 0 {
		o.logger.Info("registry empty, using default sources")
		return registry.Default(), nil
	}
	return registry.New(entries), nil
}

func (o *Orchestrator) notify(ctx context.Context, s model.RunSummary) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Notify(ctx, s); err != nil {
		o.logger.Error("run notification failed", "run_id", s.RunID, "error", err)
	}
}

// tally accumulates summary counters from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  model.RunSummary
}

func (t *tally) message(format string, args ...any) {
	t.mu.Lock()
	t.s.Messages = append(t.s.Messages, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

func (t *tally) fail(format string, args ...any) {
	t.mu.Lock()
	t.s.Failed++
	t.s.Messages = append(t.s.Messages, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

func (t *tally) transition(to model.Status) {
	t.mu.Lock()
	if t.s.Transitions == nil {
		t.s.Transitions = make(map[model.Status]int)
	}
	t.s.Transitions[to]++
	t.mu.Unlock()
}

func (t *tally) processed() {
	t.mu.Lock()
	t.s.Processed++
	t.mu.Unlock()
}

func (t *tally) summary() model.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

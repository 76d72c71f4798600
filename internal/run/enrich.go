package run

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobintake/internal/lifecycle"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
)

var errNoURL = errors.New("offer has no url")

// RunEnrichment fetches the page of every eligible offer and applies the
// resulting lifecycle transition. Fetches run on a bounded worker pool; a
// TransportError from the store stops new work and aborts the run.
func (o *Orchestrator) RunEnrichment(ctx context.Context) (model.RunSummary, error) {
	t := &tally{s: model.RunSummary{RunID: o.newID(), Kind: model.RunEnrichment, StartedAt: o.now()}}
	logger := o.logger.With("run_id", t.s.RunID)

	finish := func(err error) (model.RunSummary, error) {
		t.mu.Lock()
		if err != nil {
			t.s.Aborted = err.Error()
			logger.Error("enrichment aborted", "error", err)
		}
		t.s.FinishedAt = o.now()
		t.mu.Unlock()
		s := t.summary()
		o.notify(context.WithoutCancel(ctx), s)
		return s, err
	}

	reg, err := o.loadRegistry(ctx)
	if err != nil {
		return finish(err)
	}
	disabled := enrichmentDisabled(reg)
	offers, err := o.deps.Offers.ListEligible(ctx, o.cfg.EnrichLimit, disabled)
	if err != nil {
		return finish(err)
	}
	logger.Info("enrichment started", "eligible", len(offers), "workers", o.cfg.Workers, "skipped_sources", len(disabled))

	// In-flight offers finish even when ctx is cancelled.
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	var stop atomic.Bool

	for i, offer := range offers {
		if ctx.Err() != nil || stop.Load() {
			t.message("enrichment stopped, %d offers not attempted", len(offers)-i)
			break
		}
		g.Go(func() error {
			if err := o.enrichOne(work, t, reg, offer); err != nil {
				stop.Store(true)
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("enrichment finished",
		"processed", t.s.Processed,
		"failed", t.s.Failed,
	)
	return finish(err)
}

// enrichOne fetches, evaluates and persists a single offer. Only a
// TransportError is returned.
func (o *Orchestrator) enrichOne(ctx context.Context, t *tally, reg *registry.Registry, offer model.Offer) error {
	var out lifecycle.Outcome
	if offer.URL == "" {
		out = lifecycle.Failed(model.FetchOther, errNoURL)
	} else {
		out = lifecycle.OutcomeFromFetch(o.deps.Fetcher.FetchOfferContent(ctx, offer.URL))
	}

	tr := lifecycle.Evaluate(offer, out, o.cfg.Rule)
	t.processed()

	if tr.Changed() {
		if err := o.deps.Upserter.ApplyPatch(ctx, offer.Key, tr.Patch); err != nil {
			if model.IsTransport(err) {
				return err
			}
			t.fail("%s: %v", offer.Key, err)
			return nil
		}
	}
	t.transition(tr.To)
	if tr.Message != "" {
		t.message("%s", tr.Message)
	}
	o.logger.Debug("offer enriched", "offer_key", offer.Key, "from", tr.From, "to", tr.To)

	if tr.To == model.StatusPendingAnalysis && analysisEnabled(reg, offer.SourceRef) {
		offer.Apply(tr.Patch.Fields)
		offer.Status = tr.To
		if err := o.deps.Publisher.PublishReady(ctx, offer); err != nil {
			o.logger.Warn("analysis hand-off failed", "offer_key", offer.Key, "error", err)
			t.message("%s: analysis hand-off: %v", offer.Key, err)
		}
	}
	return nil
}

// enrichmentDisabled names the sources whose offers stay out of the run.
// Sources absent from the registry are enriched.
func enrichmentDisabled(reg *registry.Registry) []model.SourceName {
	var names []model.SourceName
	for _, src := range reg.List() {
		if !src.Capabilities.Enrichment {
			names = append(names, src.Name)
		}
	}
	return names
}

func analysisEnabled(reg *registry.Registry, name model.SourceName) bool {
	src, ok := reg.Get(name)
	return ok && src.Capabilities.Analysis
}

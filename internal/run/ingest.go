package run

import (
	"context"
	"fmt"

	"github.com/amishk599/jobintake/internal/discovery"
	"github.com/amishk599/jobintake/internal/dispatch"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/sample"
)

// RunIngestion reconciles senders, dispatches every item, persists the
// offers of processed items and archives what the dispatch table allows.
// Only a TransportError aborts it; the partial summary is still returned.
func (o *Orchestrator) RunIngestion(ctx context.Context) (model.RunSummary, error) {
	t := &tally{s: model.RunSummary{RunID: o.newID(), Kind: model.RunIngestion, StartedAt: o.now()}}
	logger := o.logger.With("run_id", t.s.RunID)

	finish := func(err error) (model.RunSummary, error) {
		if err != nil {
			t.s.Aborted = err.Error()
			logger.Error("ingestion aborted", "error", err)
		}
		t.s.FinishedAt = o.now()
		s := t.summary()
		o.notify(context.WithoutCancel(ctx), s)
		return s, err
	}

	reg, err := o.loadRegistry(ctx)
	if err != nil {
		return finish(err)
	}
	items, err := o.deps.Reader.ListInboundItems(ctx, o.cfg.Folder)
	if err != nil {
		return finish(err)
	}
	logger.Info("ingestion started", "items", len(items), "folder", o.cfg.Folder)

	observed := make([]string, len(items))
	for i, it := range items {
		observed[i] = it.SenderIdentity
	}
	rep := discovery.Audit(observed, reg)
	t.s.SourcesCreated = discovery.Apply(reg, rep.Creations)
	if t.s.SourcesCreated > 0 {
		if err := o.saveRegistry(ctx, t, reg.List()); err != nil {
			return finish(err)
		}
	}

	var capture dispatch.CaptureFunc
	if o.deps.Samples != nil {
		capture = sample.NewCapturer(o.deps.Samples, t.s.RunID, logger).Capture
	}
	engine := dispatch.NewEngine(reg, o.deps.Extractor, capture, logger, dispatch.WithSampleCap(o.cfg.SampleCap))

	var toArchive []string
	var abort error
	for i, item := range items {
		if ctx.Err() != nil {
			t.message("run cancelled, %d items left undispatched", len(items)-i)
			break
		}

		res := engine.Dispatch(ctx, item)
		succeeded := false
		if res.Decision.Process {
			var err error
			succeeded, err = o.process(ctx, t, res.Source, item)
			if err != nil {
				abort = err
				break
			}
			if succeeded {
				engine.MarkProcessed()
			}
		}

		switch res.Decision.Archive {
		case dispatch.ArchiveAlways:
			toArchive = append(toArchive, item.ID)
		case dispatch.ArchiveOnSuccess:
			if succeeded {
				toArchive = append(toArchive, item.ID)
			}
		}
	}

	// In-flight work is finished even when ctx was cancelled.
	bg := context.WithoutCancel(ctx)
	if len(toArchive) > 0 {
		if o.cfg.DryRun {
			engine.MarkArchived(len(toArchive))
		} else if err := o.deps.Reader.ArchiveItems(bg, toArchive, o.cfg.ArchiveFolder); err != nil {
			t.message("archive %d items: %v", len(toArchive), err)
			if abort == nil && model.IsTransport(err) {
				abort = err
			}
		} else {
			engine.MarkArchived(len(toArchive))
		}
	}

	st := engine.Stats()
	t.s.SourcesCreated += st.SourcesCreated
	t.s.Corrections = st.Corrections
	t.s.Processed = st.Processed
	t.s.Archived = st.Archived
	t.s.Samples = st.Samples
	t.s.Messages = append(t.s.Messages, st.Messages...)

	if len(st.Corrections) > 0 || st.SourcesCreated > 0 {
		if err := o.saveRegistry(bg, t, reg.List()); err != nil && abort == nil {
			abort = err
		}
	}

	logger.Info("ingestion finished",
		"processed", t.s.Processed,
		"archived", t.s.Archived,
		"offers_created", t.s.OffersCreated,
		"failed", t.s.Failed,
	)
	return finish(abort)
}

// process extracts and upserts the offers of one item. It reports whether
// the item was fully handled; the error is only set for a TransportError.
func (o *Orchestrator) process(ctx context.Context, t *tally, source model.SourceName, item model.InboundItem) (bool, error) {
	drafts, err := o.deps.Extractor.Extract(source, item.RawPayload)
	if err != nil {
		t.fail("item %s (%s): %v", item.ID, source, err)
		return false, nil
	}

	res, err := o.deps.Upserter.UpsertOffers(ctx, drafts, source)
	t.mu.Lock()
	t.s.OffersCreated += res.Created
	t.s.OffersAlreadyPresent += res.AlreadyPresent
	t.s.Failed += res.Failed
	t.s.Messages = append(t.s.Messages, res.Messages...)
	t.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("item %s: %w", item.ID, err)
	}

	o.logger.Debug("item processed",
		"item_id", item.ID,
		"source", source,
		"offers", len(drafts),
		"created", res.Created,
	)
	return res.Failed == 0, nil
}

// saveRegistry persists sources. Only a TransportError is returned; other
// failures are recorded as messages.
func (o *Orchestrator) saveRegistry(ctx context.Context, t *tally, sources []model.Source) error {
	if o.cfg.DryRun {
		return nil
	}
	err := o.deps.Sources.SaveSources(ctx, sources)
	if err == nil {
		return nil
	}
	if model.IsTransport(err) {
		return fmt.Errorf("save sources: %w", err)
	}
	t.message("save sources: %v", err)
	return nil
}

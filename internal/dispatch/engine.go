package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobintake/internal/discovery"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
)

// DefaultSampleCap bounds sample captures per distinct sender in one run.
const DefaultSampleCap = 3

// ParserSet reports which sources have a working extractor at runtime.
type ParserSet interface {
	HasParser(name model.SourceName) bool
}

// CaptureFunc stores a raw payload for manual triage.
type CaptureFunc func(ctx context.Context, sender string, item model.InboundItem) error

// Stats accumulates dispatch outcomes over a run.
type Stats struct {
	SourcesCreated int
	Corrections    []model.Correction
	Processed      int
	Archived       int
	Samples        int
	Messages       []string
}

// Result is the decision taken for one item, after any correction.
type Result struct {
	Sender    string
	Source    model.SourceName
	Decision  Decision
	Corrected bool
	Captured  bool
}

// Engine applies Decide to a stream of items against one registry snapshot.
// The registry is mutated in place by first-sighting provisioning and drift
// correction; the caller persists it afterwards.
type Engine struct {
	reg       *registry.Registry
	parsers   ParserSet
	capture   CaptureFunc
	sampleCap int
	logger    *slog.Logger

	samples map[string]int
	stats   Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithSampleCap overrides DefaultSampleCap. Values below zero are ignored.
func WithSampleCap(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.sampleCap = n
		}
	}
}

// NewEngine creates a dispatch engine for one run. capture may be nil.
func NewEngine(reg *registry.Registry, parsers ParserSet, capture CaptureFunc, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		reg:       reg,
		parsers:   parsers,
		capture:   capture,
		sampleCap: DefaultSampleCap,
		logger:    logger,
		samples:   make(map[string]int),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Dispatch decides what happens to item. Items of one sender must be passed
// in arrival order for the sample cap to keep the first payloads.
func (e *Engine) Dispatch(ctx context.Context, item model.InboundItem) Result {
	sender := registry.NormalizeSender(item.SenderIdentity)
	res := Result{Sender: sender}

	// A blank sender cannot be classified or provisioned. The zero Decision
	// neither processes nor archives it.
	if sender == "" {
		e.logger.Warn("item has no sender identity, left in place", "item_id", item.ID)
		e.stats.Messages = append(e.stats.Messages, fmt.Sprintf("item %s has no sender identity, left in place", item.ID))
		return res
	}

	src, resolved := e.reg.Resolve(sender)
	in := Input{Resolved: resolved, Source: src.Name, CreationEnabled: src.Capabilities.Creation}
	if resolved && !src.Name.IsUnknown() {
		in.ParserAvailable = e.parsers.HasParser(src.Name)
	}
	d := Decide(in)

	if d.Demote {
		prev, _ := e.reg.MoveSender(sender, model.SourceUnknown, model.DiscoveryDefaults())
		c := model.Correction{SenderIdentity: sender, PreviousName: prev, NewName: model.SourceUnknown}
		e.stats.Corrections = append(e.stats.Corrections, c)
		e.logger.Warn("no parser for source, sender demoted to Unknown",
			"sender", sender, "previous", prev)
		res.Corrected = true

		unk, _ := e.reg.Get(model.SourceUnknown)
		src = unk
		d = Decide(Input{Resolved: true, Source: model.SourceUnknown, CreationEnabled: unk.Capabilities.Creation})
	}

	if d.Provision {
		e.reg.AddSender(model.SourceUnknown, sender, discovery.DefaultCapabilities(model.SourceUnknown))
		e.stats.SourcesCreated++
		e.logger.Info("first sighting, sender provisioned as Unknown", "sender", sender)
		src.Name = model.SourceUnknown
	}

	if d.Capture {
		res.Captured = e.captureSample(ctx, sender, item)
	}

	res.Source = src.Name
	res.Decision = d
	return res
}

func (e *Engine) captureSample(ctx context.Context, sender string, item model.InboundItem) bool {
	if e.capture == nil || e.samples[sender] >= e.sampleCap {
		return false
	}
	e.samples[sender]++
	if err := e.capture(ctx, sender, item); err != nil {
		e.logger.Warn("sample capture failed", "sender", sender, "item_id", item.ID, "error", err)
		e.stats.Messages = append(e.stats.Messages, fmt.Sprintf("sample %s from %s: %v", item.ID, sender, err))
		return false
	}
	e.stats.Samples++
	return true
}

// MarkProcessed counts one successful business processing.
func (e *Engine) MarkProcessed() { e.stats.Processed++ }

// MarkArchived counts n archived items.
func (e *Engine) MarkArchived(n int) { e.stats.Archived += n }

// Stats returns a copy of the accumulated counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Corrections = append([]model.Correction(nil), e.stats.Corrections...)
	s.Messages = append([]string(nil), e.stats.Messages...)
	return s
}

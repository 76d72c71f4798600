package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type parserSet map[model.SourceName]bool

func (p parserSet) HasParser(name model.SourceName) bool { return p[name] }

type captured struct {
	sender  string
	payload string
}

type recordingCapture struct {
	calls []captured
	err   error
}

func (r *recordingCapture) capture(_ context.Context, sender string, item model.InboundItem) error {
	r.calls = append(r.calls, captured{sender: sender, payload: string(item.RawPayload)})
	return r.err
}

func item(id, sender string) model.InboundItem {
	return model.InboundItem{ID: id, SenderIdentity: sender, RawPayload: []byte("payload-" + id)}
}

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Decision
	}{
		{"known enabled with parser", Input{Resolved: true, Source: model.SourceIndeed, CreationEnabled: true, ParserAvailable: true}, Decision{Process: true, Archive: ArchiveOnSuccess}},
		{"known enabled without parser", Input{Resolved: true, Source: model.SourceIndeed, CreationEnabled: true}, Decision{Demote: true}},
		{"known disabled with parser", Input{Resolved: true, Source: model.SourceIndeed, ParserAvailable: true}, Decision{Archive: ArchiveNever}},
		{"known disabled without parser", Input{Resolved: true, Source: model.SourceIndeed}, Decision{Archive: ArchiveNever}},
		{"unknown enabled", Input{Resolved: true, Source: model.SourceUnknown, CreationEnabled: true}, Decision{Archive: ArchiveAlways, Capture: true}},
		{"unknown disabled", Input{Resolved: true, Source: model.SourceUnknown}, Decision{Archive: ArchiveNever, Capture: true}},
		{"first sighting", Input{}, Decision{Archive: ArchiveNever, Capture: true, Provision: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

// processed and archived as observed by a caller that treats processing as
// successful whenever it runs.
func outcome(r Result) (processed, archived bool) {
	processed = r.Decision.Process
	switch r.Decision.Archive {
	case ArchiveAlways:
		archived = true
	case ArchiveOnSuccess:
		archived = processed
	}
	return processed, archived
}

func TestEngine_DispatchMatrix(t *testing.T) {
	unknownCaps := func(creation bool) model.Capabilities {
		return model.Capabilities{Creation: creation, Analysis: true}
	}
	tests := []struct {
		name          string
		entries       []model.Source
		parsers       parserSet
		sender        string
		wantProcessed bool
		wantArchived  bool
		wantSource    model.SourceName
	}{
		{
			name:          "known enabled with parser",
			entries:       []model.Source{{Name: model.SourceIndeed, Capabilities: model.AllEnabled(), SenderIdentities: []string{"alert@indeed.com"}}},
			parsers:       parserSet{model.SourceIndeed: true},
			sender:        "Indeed <alert@indeed.com>",
			wantProcessed: true, wantArchived: true,
			wantSource: model.SourceIndeed,
		},
		{
			name: "known enabled without parser follows Unknown path",
			entries: []model.Source{
				{Name: model.SourceIndeed, Capabilities: model.AllEnabled(), SenderIdentities: []string{"alert@indeed.com"}},
				{Name: model.SourceUnknown, Capabilities: unknownCaps(false)},
			},
			parsers:    parserSet{},
			sender:     "alert@indeed.com",
			wantSource: model.SourceUnknown,
		},
		{
			name:       "known disabled",
			entries:    []model.Source{{Name: model.SourceIndeed, Capabilities: model.Capabilities{Enrichment: true}, SenderIdentities: []string{"alert@indeed.com"}}},
			parsers:    parserSet{model.SourceIndeed: true},
			sender:     "alert@indeed.com",
			wantSource: model.SourceIndeed,
		},
		{
			name:         "unknown enabled",
			entries:      []model.Source{{Name: model.SourceUnknown, Capabilities: unknownCaps(true), SenderIdentities: []string{"x@y.com"}}},
			parsers:      parserSet{},
			sender:       "x@y.com",
			wantArchived: true,
			wantSource:   model.SourceUnknown,
		},
		{
			name:       "unknown disabled",
			entries:    []model.Source{{Name: model.SourceUnknown, Capabilities: unknownCaps(false), SenderIdentities: []string{"x@y.com"}}},
			parsers:    parserSet{},
			sender:     "x@y.com",
			wantSource: model.SourceUnknown,
		},
		{
			name:       "first sighting",
			entries:    nil,
			parsers:    parserSet{},
			sender:     "brand-new@sender.io",
			wantSource: model.SourceUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New(tt.entries)
			e := NewEngine(reg, tt.parsers, nil, discardLogger())

			res := e.Dispatch(context.Background(), item("1", tt.sender))

			processed, archived := outcome(res)
			assert.Equal(t, tt.wantProcessed, processed, "processed")
			assert.Equal(t, tt.wantArchived, archived, "archived")
			assert.Equal(t, tt.wantSource, res.Source)
		})
	}
}

func TestEngine_FirstSightingProvisionsUnknown(t *testing.T) {
	reg := registry.New(nil)
	e := NewEngine(reg, parserSet{}, nil, discardLogger())

	e.Dispatch(context.Background(), item("1", "new@sender.io"))
	e.Dispatch(context.Background(), item("2", "new@sender.io"))

	unk, ok := reg.Get(model.SourceUnknown)
	require.True(t, ok)
	assert.Equal(t, []string{"new@sender.io"}, unk.SenderIdentities)
	assert.Equal(t, model.DiscoveryDefaults(), unk.Capabilities)
	assert.Equal(t, 1, e.Stats().SourcesCreated)
}

func TestEngine_BlankSenderIsLeftInPlace(t *testing.T) {
	reg := registry.New(nil)
	rec := &recordingCapture{}
	e := NewEngine(reg, parserSet{}, rec.capture, discardLogger())

	for _, id := range []string{"1", "2", "3"} {
		res := e.Dispatch(context.Background(), item(id, "   "))
		assert.Equal(t, Decision{}, res.Decision)
		assert.Equal(t, ArchiveNever, res.Decision.Archive)
		assert.False(t, res.Captured)
		assert.Empty(t, res.Source)
	}

	stats := e.Stats()
	assert.Zero(t, stats.SourcesCreated)
	assert.Zero(t, stats.Samples)
	assert.Empty(t, stats.Corrections)
	assert.Len(t, stats.Messages, 3)
	assert.Empty(t, rec.calls)
	_, ok := reg.Get(model.SourceUnknown)
	assert.False(t, ok, "registry untouched")
}

func TestEngine_DriftCorrection(t *testing.T) {
	reg := registry.New([]model.Source{
		{Name: model.SourceGlassdoor, Capabilities: model.AllEnabled(), SenderIdentities: []string{"noreply@glassdoor.com"}},
	})
	rec := &recordingCapture{}
	e := NewEngine(reg, parserSet{model.SourceIndeed: true}, rec.capture, discardLogger())

	first := e.Dispatch(context.Background(), item("1", "noreply@glassdoor.com"))
	second := e.Dispatch(context.Background(), item("2", "noreply@glassdoor.com"))

	assert.True(t, first.Corrected)
	assert.False(t, second.Corrected, "already demoted")
	for _, r := range []Result{first, second} {
		assert.False(t, r.Decision.Process)
		assert.Equal(t, ArchiveNever, r.Decision.Archive)
		assert.Equal(t, model.SourceUnknown, r.Source)
	}

	stats := e.Stats()
	assert.Equal(t, []model.Correction{{SenderIdentity: "noreply@glassdoor.com", PreviousName: model.SourceGlassdoor, NewName: model.SourceUnknown}}, stats.Corrections)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 2, stats.Samples)

	g, _ := reg.Get(model.SourceGlassdoor)
	assert.Empty(t, g.SenderIdentities)
	unk, ok := reg.Get(model.SourceUnknown)
	require.True(t, ok)
	assert.Equal(t, []string{"noreply@glassdoor.com"}, unk.SenderIdentities)
}

func TestEngine_SampleCap(t *testing.T) {
	reg := registry.New([]model.Source{
		{Name: model.SourceUnknown, Capabilities: model.DiscoveryDefaults(), SenderIdentities: []string{"x@y.com"}},
	})
	rec := &recordingCapture{}
	e := NewEngine(reg, parserSet{}, rec.capture, discardLogger())

	for _, id := range []string{"a", "b", "c", "d"} {
		e.Dispatch(context.Background(), item(id, "x@y.com"))
	}
	e.Dispatch(context.Background(), item("e", "other@y.com"))

	require.Len(t, rec.calls, 4)
	assert.Equal(t, []captured{
		{"x@y.com", "payload-a"},
		{"x@y.com", "payload-b"},
		{"x@y.com", "payload-c"},
		{"other@y.com", "payload-e"},
	}, rec.calls)
	assert.Equal(t, 4, e.Stats().Samples)
}

func TestEngine_SampleCaptureFailureIsContained(t *testing.T) {
	reg := registry.New(nil)
	rec := &recordingCapture{err: errors.New("bucket unavailable")}
	e := NewEngine(reg, parserSet{}, rec.capture, discardLogger(), WithSampleCap(1))

	res := e.Dispatch(context.Background(), item("1", "x@y.com"))
	e.Dispatch(context.Background(), item("2", "x@y.com"))

	assert.False(t, res.Captured)
	assert.Len(t, rec.calls, 1)
	stats := e.Stats()
	assert.Equal(t, 0, stats.Samples)
	assert.Len(t, stats.Messages, 1)
}

func TestEngine_Counters(t *testing.T) {
	e := NewEngine(registry.New(nil), parserSet{}, nil, discardLogger())
	e.MarkProcessed()
	e.MarkProcessed()
	e.MarkArchived(3)

	stats := e.Stats()
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 3, stats.Archived)
}

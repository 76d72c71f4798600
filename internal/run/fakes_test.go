package run

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/amishk599/jobintake/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memSources struct {
	entries []model.Source
	saves   int
	saveErr error
}

func (m *memSources) LoadSources(context.Context) ([]model.Source, error) {
	out := make([]model.Source, len(m.entries))
	for i, s := range m.entries {
		out[i] = s.Clone()
	}
	return out, nil
}

func (m *memSources) SaveSources(_ context.Context, sources []model.Source) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.entries = sources
	return nil
}

func (m *memSources) find(name model.SourceName) (model.Source, bool) {
	for _, s := range m.entries {
		if s.Name == name {
			return s, true
		}
	}
	return model.Source{}, false
}

// fakeExtractor returns one draft per line of the payload; each line is an
// external id.
type fakeExtractor struct {
	parsers map[model.SourceName]bool
	err     error
}

func (f *fakeExtractor) HasParser(name model.SourceName) bool { return f.parsers[name] }

func (f *fakeExtractor) Extract(name model.SourceName, payload []byte) ([]model.Draft, error) {
	if !f.parsers[name] {
		return nil, model.ErrParserUnavailable
	}
	if f.err != nil {
		return nil, f.err
	}
	var drafts []model.Draft
	for _, id := range strings.Fields(string(payload)) {
		drafts = append(drafts, model.Draft{
			ExternalID: id,
			Fields:     model.Fields{model.FieldTitle: "Offer " + id},
		})
	}
	return drafts, nil
}

// memOffers is an offer store backed by a map.
type memOffers struct {
	mu        sync.Mutex
	offers    map[string]model.Offer
	patchErr  error
	createErr error
}

func newMemOffers(offers ...model.Offer) *memOffers {
	m := &memOffers{offers: make(map[string]model.Offer)}
	for _, o := range offers {
		m.offers[o.Key] = o
	}
	return m
}

func (m *memOffers) FindByKey(_ context.Context, key string) (model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[key]
	if !ok {
		return model.Offer{}, model.ErrNotFound
	}
	return o, nil
}

func (m *memOffers) Create(_ context.Context, o model.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.offers[o.Key] = o
	return nil
}

func (m *memOffers) Patch(_ context.Context, key string, p model.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patchErr != nil {
		return m.patchErr
	}
	o, ok := m.offers[key]
	if !ok {
		return model.ErrNotFound
	}
	o.Apply(p.Fields)
	if p.Status != "" {
		o.Status = p.Status
	}
	m.offers[key] = o
	return nil
}

func (m *memOffers) ListEligible(_ context.Context, limit int, exclude []model.SourceName) ([]model.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Offer
	for _, o := range m.offers {
		if o.Status == model.StatusPendingCompletion && !slices.Contains(exclude, o.SourceRef) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOffers) get(key string) model.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers[key]
}

type urlFetcher struct {
	results map[string]model.Fields
	errs    map[string]error
}

func (f *urlFetcher) FetchOfferContent(_ context.Context, url string) (model.Fields, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	return f.results[url], nil
}

type recordingSink struct {
	mu   sync.Mutex
	keys []string
	data []string
}

func (s *recordingSink) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.data = append(s.data, string(data))
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) PublishReady(_ context.Context, o model.Offer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, o.Key)
	return p.err
}

type recordingNotifier struct {
	summaries []model.RunSummary
}

func (n *recordingNotifier) Notify(_ context.Context, s model.RunSummary) error {
	n.summaries = append(n.summaries, s)
	return nil
}

var errBoom = errors.New("boom")

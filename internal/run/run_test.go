package run

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobintake/internal/inbox"
	"github.com/amishk599/jobintake/internal/lifecycle"
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
	"github.com/amishk599/jobintake/internal/upsert"
)

type harness struct {
	sources   *memSources
	inbox     *inbox.Memory
	extractor *fakeExtractor
	offers    *memOffers
	fetcher   *urlFetcher
	sink      *recordingSink
	publisher *recordingPublisher
	notifier  *recordingNotifier
	cfg       Config
}

func newHarness(items ...model.InboundItem) *harness {
	return &harness{
		sources: &memSources{},
		inbox:   inbox.NewMemory("INBOX", items...),
		extractor: &fakeExtractor{parsers: map[model.SourceName]bool{
			model.SourceLinkedIn:           true,
			model.SourceIndeed:             true,
			model.SourceWelcomeToTheJungle: true,
			model.SourceHelloWork:          true,
		}},
		offers:    newMemOffers(),
		fetcher:   &urlFetcher{},
		sink:      &recordingSink{},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		cfg: Config{
			Folder:        "INBOX",
			ArchiveFolder: "Archive",
			Workers:       2,
			Rule:          lifecycle.DefaultRule(),
		},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	o := New(Deps{
		Sources:   h.sources,
		Reader:    h.inbox,
		Extractor: h.extractor,
		Upserter:  upsert.New(h.offers, discardLogger()),
		Offers:    h.offers,
		Fetcher:   h.fetcher,
		Samples:   h.sink,
		Publisher: h.publisher,
		Notifier:  h.notifier,
	}, h.cfg, discardLogger())
	o.newID = func() string { return "run1" }
	return o
}

func item(id, sender, payload string) model.InboundItem {
	return model.InboundItem{ID: id, SenderIdentity: sender, RawPayload: []byte(payload)}
}

const (
	linkedInSender  = "LinkedIn <jobalerts-noreply@linkedin.com>"
	providerXSender = "Jobs <jobs-noreply@providerx.com>"
)

func TestRunIngestion_ProcessesKnownAndSamplesUnknown(t *testing.T) {
	h := newHarness(
		item("li1", linkedInSender, "101 102"),
		item("px1", providerXSender, "p1"),
		item("px2", providerXSender, "p2"),
		item("li2", "jobalerts-noreply@linkedin.com", "102 103"),
		item("px3", providerXSender, "p3"),
		item("px4", providerXSender, "p4"),
	)

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run1", s.RunID)
	assert.Equal(t, model.RunIngestion, s.Kind)
	assert.Equal(t, 1, s.SourcesCreated)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 2, s.Archived)
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 3, s.OffersCreated)
	assert.Equal(t, 1, s.OffersAlreadyPresent)
	assert.Zero(t, s.Failed)
	assert.Empty(t, s.Corrections)
	assert.Empty(t, s.Aborted)

	assert.Equal(t, []string{"p1", "p2", "p3"}, h.sink.data)
	assert.Equal(t, "samples/jobs-noreply@providerx.com/run1-px1.eml", h.sink.keys[0])

	archived := h.inbox.Items("Archive")
	require.Len(t, archived, 2)
	assert.Equal(t, "li1", archived[0].ID)
	assert.Equal(t, "li2", archived[1].ID)
	assert.Len(t, h.inbox.Items("INBOX"), 4)

	assert.Equal(t, "Offer 103", h.offers.get("LinkedIn:103").Title)
	assert.Equal(t, model.StatusPendingCompletion, h.offers.get("LinkedIn:101").Status)

	unknown, ok := h.sources.find(model.SourceUnknown)
	require.True(t, ok)
	assert.True(t, unknown.HasSender("jobs-noreply@providerx.com"))
	assert.Equal(t, 1, h.sources.saves)

	require.Len(t, h.notifier.summaries, 1)
	assert.Equal(t, s, h.notifier.summaries[0])
}

func TestRunIngestion_SecondRunCreatesNoSources(t *testing.T) {
	h := newHarness(item("px1", providerXSender, "p1"))
	o := h.orchestrator()

	first, err := o.RunIngestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.SourcesCreated)

	second, err := o.RunIngestion(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.SourcesCreated)
}

func TestRunIngestion_DriftCorrection(t *testing.T) {
	h := newHarness(item("w1", "alerts@welcometothejungle.com", "w1"))
	h.sources.entries = registry.Default().List()
	h.extractor.parsers = map[model.SourceName]bool{model.SourceLinkedIn: true}

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.NoError(t, err)

	require.Len(t, s.Corrections, 1)
	assert.Equal(t, model.Correction{
		SenderIdentity: "alerts@welcometothejungle.com",
		PreviousName:   model.SourceWelcomeToTheJungle,
		NewName:        model.SourceUnknown,
	}, s.Corrections[0])
	assert.Zero(t, s.Processed)
	assert.Zero(t, s.Archived)
	assert.Equal(t, 1, s.Samples)

	wttj, _ := h.sources.find(model.SourceWelcomeToTheJungle)
	assert.False(t, wttj.HasSender("alerts@welcometothejungle.com"))
	unknown, _ := h.sources.find(model.SourceUnknown)
	assert.True(t, unknown.HasSender("alerts@welcometothejungle.com"))
}

func TestRunIngestion_ExtractionFailureKeepsItem(t *testing.T) {
	h := newHarness(item("li1", linkedInSender, "101"))
	h.extractor.err = errBoom

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Failed)
	assert.Zero(t, s.Processed)
	assert.Zero(t, s.Archived)
	assert.Len(t, s.Messages, 1)
	assert.Len(t, h.inbox.Items("INBOX"), 1)
}

func TestRunIngestion_StoreTransportErrorAborts(t *testing.T) {
	h := newHarness(
		item("li1", linkedInSender, "101"),
		item("li2", linkedInSender, "102"),
	)
	h.offers.createErr = &model.TransportError{Op: "create offer", Err: errBoom}

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsTransport(err))
	assert.NotEmpty(t, s.Aborted)
	assert.Zero(t, s.Archived)
	assert.Len(t, h.inbox.Items("INBOX"), 2)

	require.Len(t, h.notifier.summaries, 1)
	assert.NotEmpty(t, h.notifier.summaries[0].Aborted)
}

func TestRunIngestion_MailboxUnreachable(t *testing.T) {
	h := newHarness()
	h.inbox.ListErr = &model.TransportError{Op: "gmail list", Err: errBoom}

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsTransport(err))
	assert.NotEmpty(t, s.Aborted)
	assert.Zero(t, h.sources.saves)
}

func TestRunIngestion_DryRunLeavesMailboxAndRegistry(t *testing.T) {
	h := newHarness(
		item("li1", linkedInSender, "101"),
		item("px1", providerXSender, "p1"),
	)
	h.cfg.DryRun = true

	s, err := h.orchestrator().RunIngestion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Archived)
	assert.Equal(t, 1, s.SourcesCreated)
	assert.Len(t, h.inbox.Items("INBOX"), 2)
	assert.Zero(t, h.sources.saves)
}

func TestRunIngestion_CancelledBeforeDispatch(t *testing.T) {
	h := newHarness(item("li1", linkedInSender, "101"))
	ctx, cancel := context.WithCancel(context.Background())

	o := h.orchestrator()
	// Cancel once the items are listed.
	o.deps.Reader = cancelAfterList{Reader: h.inbox, cancel: cancel}

	s, err := o.RunIngestion(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.Processed)
	assert.Contains(t, s.Messages, "run cancelled, 1 items left undispatched")
}

type cancelAfterList struct {
	inbox.Reader
	cancel context.CancelFunc
}

func (c cancelAfterList) ListInboundItems(ctx context.Context, folder string) ([]model.InboundItem, error) {
	items, err := c.Reader.ListInboundItems(ctx, folder)
	c.cancel()
	return items, err
}

func TestRunAudit_IsReadOnly(t *testing.T) {
	h := newHarness(
		item("li1", linkedInSender, "101"),
		item("px1", providerXSender, "p1"),
		item("px2", "jobs-noreply@providerx.com", "p2"),
	)

	rep, err := h.orchestrator().RunAudit(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "jobalerts-noreply@linkedin.com", rep.Rows[0].SenderIdentity)
	assert.Equal(t, model.SourceLinkedIn, rep.Rows[0].SourceName)
	assert.Equal(t, 2, rep.Rows[1].ObservedCount)
	assert.True(t, rep.Rows[1].New)
	require.Len(t, rep.Creations, 1)
	assert.Equal(t, 1, rep.ItemsArchivable)
	assert.Equal(t, 2, rep.ItemsPending)

	assert.Zero(t, h.sources.saves)
	assert.Len(t, h.inbox.Items("INBOX"), 3)
	assert.Empty(t, h.notifier.summaries)
}

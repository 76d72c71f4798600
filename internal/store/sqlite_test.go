package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveThenLoadSourcesPreservesOrderAndDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := []model.Source{
		{Name: model.SourceIndeed, OfficialURL: "https://fr.indeed.com", Capabilities: model.AllEnabled(), SenderIdentities: []string{"alert@indeed.com", "list:indeed"}},
		{Name: model.SourceUnknown, Capabilities: model.DiscoveryDefaults(), SenderIdentities: []string{"x@y.com"}},
		{Name: model.SourceIndeed, Capabilities: model.Capabilities{Analysis: true}},
	}
	if err := s.SaveSources(ctx, in); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}

	got, err := s.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0], in[0]) {
		t.Errorf("row 0 = %+v, want %+v", got[0], in[0])
	}
	if !reflect.DeepEqual(got[1], in[1]) {
		t.Errorf("row 1 = %+v, want %+v", got[1], in[1])
	}
	if got[2].Name != model.SourceIndeed || got[2].SenderIdentities != nil {
		t.Errorf("row 2 = %+v", got[2])
	}
}

func TestSaveSourcesReplacesPreviousList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []model.Source{{Name: model.SourceApec, SenderIdentities: []string{"a@apec.fr"}}}
	second := []model.Source{{Name: model.SourceCadremploi, Capabilities: model.AllEnabled()}}
	if err := s.SaveSources(ctx, first); err != nil {
		t.Fatalf("SaveSources first: %v", err)
	}
	if err := s.SaveSources(ctx, second); err != nil {
		t.Fatalf("SaveSources second: %v", err)
	}

	got, err := s.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(got) != 1 || got[0].Name != model.SourceCadremploi {
		t.Errorf("expected only Cadremploi, got %+v", got)
	}
}

func TestCreateThenFindOffer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	posted := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	offer := model.Offer{
		Key:          "Indeed:42",
		ExternalID:   "42",
		URL:          "https://fr.indeed.com/viewjob?jk=42",
		PostedDate:   &posted,
		Title:        "Go developer",
		Company:      "Acme",
		ContractType: "CDI",
		Status:       model.StatusPendingCompletion,
		SourceRef:    model.SourceIndeed,
	}
	if err := s.Create(ctx, offer); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindByKey(ctx, "Indeed:42")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Title != "Go developer" || got.ContractType != "CDI" || got.SourceRef != model.SourceIndeed {
		t.Errorf("unexpected offer: %+v", got)
	}
	if got.PostedDate == nil || !got.PostedDate.Equal(posted) {
		t.Errorf("PostedDate = %v, want %v", got.PostedDate, posted)
	}
	if got.AddedDate != nil {
		t.Errorf("AddedDate = %v, want nil", got.AddedDate)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestFindByKeyMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByKey(context.Background(), "nope")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPatchOnlyTouchesProvidedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, model.Offer{Key: "k", Title: "X", City: "Lyon", Status: model.StatusPendingCompletion, SourceRef: model.SourceApec}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	patch := model.Patch{
		Fields: model.Fields{model.FieldTitle: "", model.FieldDescriptionText: "Long text", model.FieldPostedDate: "2026-01-15"},
		Status: model.StatusPendingAnalysis,
	}
	if err := s.Patch(ctx, "k", patch); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	got, err := s.FindByKey(ctx, "k")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Title != "X" {
		t.Errorf("Title = %q, want X", got.Title)
	}
	if got.City != "Lyon" || got.DescriptionText != "Long text" {
		t.Errorf("unexpected offer: %+v", got)
	}
	if got.PostedDate == nil || got.PostedDate.Format(model.DateLayout) != "2026-01-15" {
		t.Errorf("PostedDate = %v", got.PostedDate)
	}
	if got.Status != model.StatusPendingAnalysis {
		t.Errorf("Status = %s, want PendingAnalysis", got.Status)
	}
}

func TestPatchSkipsMalformedDates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	posted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Create(ctx, model.Offer{Key: "k", PostedDate: &posted, Status: model.StatusPendingCompletion, SourceRef: model.SourceApec}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	patch := model.Patch{Fields: model.Fields{
		model.FieldPostedDate: "15/01/2026",
		model.FieldAddedDate:  "yesterday",
		model.FieldCity:       "Nantes",
	}}
	if err := s.Patch(ctx, "k", patch); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	var rawPosted string
	var rawAdded sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT posted_date, added_date FROM offers WHERE key = ?", "k").Scan(&rawPosted, &rawAdded); err != nil {
		t.Fatalf("select dates: %v", err)
	}
	if rawPosted != "2026-01-01" {
		t.Errorf("posted_date = %q, want 2026-01-01", rawPosted)
	}
	if rawAdded.Valid {
		t.Errorf("added_date = %q, want NULL", rawAdded.String)
	}

	got, err := s.FindByKey(ctx, "k")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.City != "Nantes" {
		t.Errorf("City = %q, want Nantes", got.City)
	}
}

func TestPatchMissingOfferReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Patch(context.Background(), "ghost", model.Patch{Status: model.StatusIgnored})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUnknownContractTypeIsConflictUntilExtended(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := model.Offer{Key: "k", ContractType: "Portage", Status: model.StatusPendingCompletion, SourceRef: model.SourceHelloWork}

	err := s.Create(ctx, offer)
	ce, ok := model.AsConflict(err)
	if !ok {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Field != model.FieldContractType || ce.Value != "Portage" {
		t.Errorf("unexpected conflict: %+v", ce)
	}

	if err := s.ExtendEnum(ctx, model.FieldContractType, "Portage"); err != nil {
		t.Fatalf("ExtendEnum: %v", err)
	}
	if err := s.Create(ctx, offer); err != nil {
		t.Fatalf("Create after extend: %v", err)
	}
}

func TestListEligibleOnlyPendingCompletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	offers := []model.Offer{
		{Key: "b", AddedDate: &d2, Status: model.StatusPendingCompletion, SourceRef: model.SourceIndeed},
		{Key: "a", AddedDate: &d1, Status: model.StatusPendingCompletion, SourceRef: model.SourceIndeed},
		{Key: "c", AddedDate: &d1, Status: model.StatusExpired, SourceRef: model.SourceIndeed},
		{Key: "d", AddedDate: &d1, Status: model.StatusPendingAnalysis, SourceRef: model.SourceIndeed},
	}
	for _, o := range offers {
		if err := s.Create(ctx, o); err != nil {
			t.Fatalf("Create %s: %v", o.Key, err)
		}
	}

	got, err := s.ListEligible(ctx, 0, nil)
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Errorf("unexpected eligible set: %+v", got)
	}

	limited, err := s.ListEligible(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ListEligible limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 offer with limit, got %d", len(limited))
	}
}

func TestListEligibleExcludesSourcesBeforeLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	offers := []model.Offer{
		{Key: "apec-old", AddedDate: &d1, Status: model.StatusPendingCompletion, SourceRef: model.SourceApec},
		{Key: "hw-old", AddedDate: &d1, Status: model.StatusPendingCompletion, SourceRef: model.SourceHelloWork},
		{Key: "indeed", AddedDate: &d2, Status: model.StatusPendingCompletion, SourceRef: model.SourceIndeed},
		{Key: "linkedin", AddedDate: &d3, Status: model.StatusPendingCompletion, SourceRef: model.SourceLinkedIn},
	}
	for _, o := range offers {
		if err := s.Create(ctx, o); err != nil {
			t.Fatalf("Create %s: %v", o.Key, err)
		}
	}

	got, err := s.ListEligible(ctx, 1, []model.SourceName{model.SourceApec, model.SourceHelloWork})
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(got) != 1 || got[0].Key != "indeed" {
		t.Errorf("expected [indeed], got %+v", got)
	}

	all, err := s.ListEligible(ctx, 0, []model.SourceName{model.SourceApec})
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 offers, got %d", len(all))
	}
}

func TestMarkArchivedThenIsArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.MarkArchived(ctx, []string{"item-1", "item-1", "item-2"}); err != nil {
		t.Fatalf("MarkArchived: %v", err)
	}
	for _, id := range []string{"item-1", "item-2"} {
		ok, err := s.IsArchived(ctx, id)
		if err != nil {
			t.Fatalf("IsArchived: %v", err)
		}
		if !ok {
			t.Errorf("expected %s to be archived", id)
		}
	}
	ok, err := s.IsArchived(ctx, "item-3")
	if err != nil {
		t.Fatalf("IsArchived: %v", err)
	}
	if ok {
		t.Error("expected item-3 not to be archived")
	}
}

func TestCleanupRemovesOldKeepsFresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).UTC().Format(timeLayout)
	if _, err := s.db.Exec("INSERT INTO archived_items (item_id, archived_at) VALUES (?, ?)", "old-item", old); err != nil {
		t.Fatalf("inserting old item: %v", err)
	}
	if err := s.MarkArchived(ctx, []string{"fresh-item"}); err != nil {
		t.Fatalf("MarkArchived: %v", err)
	}

	if err := s.Cleanup(ctx, 24*time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if ok, _ := s.IsArchived(ctx, "old-item"); ok {
		t.Error("expected old item to be removed")
	}
	if ok, _ := s.IsArchived(ctx, "fresh-item"); !ok {
		t.Error("expected fresh item to be kept")
	}
}

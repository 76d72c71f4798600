package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/amishk599/jobintake/internal/model"
)

// newTestPostgres connects to JOBINTAKE_TEST_POSTGRES_URL or skips.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("JOBINTAKE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("JOBINTAKE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE offers, sources"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresOfferLifecycle(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	if err := s.Create(ctx, model.Offer{Key: "pg-1", Title: "X", Status: model.StatusPendingCompletion, SourceRef: model.SourceApec}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Patch(ctx, "pg-1", model.Patch{Fields: model.Fields{model.FieldTitle: "", model.FieldCity: "Rennes"}}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	got, err := s.FindByKey(ctx, "pg-1")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Title != "X" || got.City != "Rennes" {
		t.Errorf("unexpected offer: %+v", got)
	}

	if _, err := s.FindByKey(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	eligible, err := s.ListEligible(ctx, 0, nil)
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(eligible) != 1 {
		t.Errorf("expected 1 eligible offer, got %d", len(eligible))
	}
}

func TestPostgresSourcesRoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	in := []model.Source{
		{Name: model.SourceIndeed, Capabilities: model.AllEnabled(), SenderIdentities: []string{"alert@indeed.com"}},
		{Name: model.SourceUnknown, Capabilities: model.DiscoveryDefaults(), SenderIdentities: []string{}},
	}
	if err := s.SaveSources(ctx, in); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	got, err := s.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(got) != 2 || got[0].SenderIdentities[0] != "alert@indeed.com" {
		t.Errorf("unexpected sources: %+v", got)
	}
}

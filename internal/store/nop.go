package store

import (
	"context"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// NopStore is a no-op offer store and ledger used in dry-run mode. Lookups
// never find anything, so every candidate counts as created.
type NopStore struct{}

var (
	_ OfferStore    = (*NopStore)(nil)
	_ ArchiveLedger = (*NopStore)(nil)
)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) FindByKey(context.Context, string) (model.Offer, error) {
	return model.Offer{}, model.ErrNotFound
}
func (s *NopStore) Create(context.Context, model.Offer) error { return nil }
func (s *NopStore) Patch(context.Context, string, model.Patch) error { return nil }
func (s *NopStore) ListEligible(context.Context, int, []model.SourceName) ([]model.Offer, error) {
	return nil, nil
}
func (s *NopStore) ExtendEnum(context.Context, model.Field, string) error { return nil }
func (s *NopStore) IsArchived(context.Context, string) (bool, error) { return false, nil }
func (s *NopStore) MarkArchived(context.Context, []string) error { return nil }
func (s *NopStore) Cleanup(context.Context, time.Duration) error { return nil }

// Package store persists the source registry, offers and the archived-item
// ledger. SQLite is the local backend, Postgres the remote one; the registry
// can also live in a hand-edited YAML file.
package store

import (
	"context"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// SourceRepository loads and saves the registry as an ordered list.
// LoadSources returns entries as persisted; duplicates are merged by
// registry.New, not here.
type SourceRepository interface {
	LoadSources(ctx context.Context) ([]model.Source, error)
	SaveSources(ctx context.Context, sources []model.Source) error
}

// OfferStore is the offer persistence contract used by the upsert layer
// and the enrichment run.
type OfferStore interface {
	FindByKey(ctx context.Context, key string) (model.Offer, error)
	Create(ctx context.Context, offer model.Offer) error
	Patch(ctx context.Context, key string, patch model.Patch) error
	// ListEligible returns offers awaiting enrichment, oldest first, leaving
	// out offers whose source is in exclude. The limit applies after the
	// exclusion; zero means no limit.
	ListEligible(ctx context.Context, limit int, exclude []model.SourceName) ([]model.Offer, error)
	ExtendEnum(ctx context.Context, field model.Field, value string) error
}

// ArchiveLedger records item ids archived by readers that have no native
// archive operation.
type ArchiveLedger interface {
	IsArchived(ctx context.Context, itemID string) (bool, error)
	MarkArchived(ctx context.Context, itemIDs []string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

func columnValue(o model.Offer, f model.Field) any {
	v := o.Fields()[f]
	if v == "" && (f == model.FieldPostedDate || f == model.FieldAddedDate || f == model.FieldContractType) {
		return nil
	}
	return v
}

// patchValue reports the column value for f in a patch. Empty values and
// dates not in model.DateLayout are skipped, the same way Offer.Apply
// ignores them.
func patchValue(f model.Field, v string) (string, bool) {
	if v == "" {
		return "", false
	}
	if f == model.FieldPostedDate || f == model.FieldAddedDate {
		if _, err := time.Parse(model.DateLayout, v); err != nil {
			return "", false
		}
	}
	return v, true
}

func sourceNames(names []model.SourceName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

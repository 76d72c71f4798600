// Package upsert persists offers by natural key without ever blanking
// fields that are already populated.
package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// Backend is the raw offer persistence contract.
type Backend interface {
	FindByKey(ctx context.Context, key string) (model.Offer, error)
	Create(ctx context.Context, offer model.Offer) error
	Patch(ctx context.Context, key string, patch model.Patch) error
}

// Candidate is one draft offer produced by an extractor.
type Candidate = model.Draft

// Result summarises one UpsertOffers call.
type Result struct {
	Created        int
	AlreadyPresent int
	Failed         int
	Messages       []string
}

// Upserter resolves candidates against a Backend.
type Upserter struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Upserter. Wrap backend with NewNarrowingBackend to tolerate
// unknown categorical values.
func New(backend Backend, logger *slog.Logger) *Upserter {
	return &Upserter{backend: backend, logger: logger, now: time.Now}
}

// UpsertOffers creates absent candidates and patches present ones with their
// non-empty fields only. Per-candidate failures are counted in the result;
// only a model.TransportError aborts the batch.
func (u *Upserter) UpsertOffers(ctx context.Context, candidates []Candidate, source model.SourceName) (Result, error) {
	var res Result
	for _, c := range candidates {
		fields := c.Fields.NonEmpty()
		key := NaturalKey(source, c.ExternalID, fields)

		created, err := u.upsertOne(ctx, key, c.ExternalID, fields, source)
		if err != nil {
			if model.IsTransport(err) {
				return res, err
			}
			res.Failed++
			res.Messages = append(res.Messages, fmt.Sprintf("%s: %v", key, err))
			u.logger.Warn("offer upsert failed", "offer_key", key, "source", source, "error", err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.AlreadyPresent++
		}
	}
	return res, nil
}

func (u *Upserter) upsertOne(ctx context.Context, key, externalID string, fields model.Fields, source model.SourceName) (bool, error) {
	_, err := u.backend.FindByKey(ctx, key)
	switch {
	case errors.Is(err, model.ErrNotFound):
		offer := model.Offer{
			Key:        key,
			ExternalID: externalID,
			Status:     model.StatusPendingCompletion,
			SourceRef:  source,
			UpdatedAt:  u.now().UTC(),
		}
		offer.Apply(fields)
		if offer.AddedDate == nil {
			today := u.now().UTC().Truncate(24 * time.Hour)
			offer.AddedDate = &today
		}
		if err := u.backend.Create(ctx, offer); err != nil {
			return false, fmt.Errorf("create: %w", err)
		}
		u.logger.Debug("offer created", "offer_key", key, "source", source)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup: %w", err)
	}

	if len(fields) == 0 {
		return false, nil
	}
	if err := u.backend.Patch(ctx, key, model.Patch{Fields: fields}); err != nil {
		return false, fmt.Errorf("patch: %w", err)
	}
	u.logger.Debug("offer patched", "offer_key", key, "fields", len(fields))
	return false, nil
}

// ApplyPatch writes the non-empty part of patch to the offer identified by key.
// An empty patch is a no-op.
func (u *Upserter) ApplyPatch(ctx context.Context, key string, patch model.Patch) error {
	p := model.Patch{Fields: patch.Fields.NonEmpty(), Status: patch.Status}
	if p.Empty() {
		return nil
	}
	if err := u.backend.Patch(ctx, key, p); err != nil {
		return fmt.Errorf("patch %s: %w", key, err)
	}
	return nil
}

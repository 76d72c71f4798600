package upsert

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobintake/internal/model"
)

// SchemaExtender is implemented by backends that can learn new categorical
// values at runtime.
type SchemaExtender interface {
	ExtendEnum(ctx context.Context, field model.Field, value string) error
}

// NarrowingBackend retries a write rejected with a model.ConflictError once:
// either after extending the backend schema (when allowed and supported) or
// with the rejected field removed. A second failure is returned as is.
type NarrowingBackend struct {
	inner  Backend
	extend bool
	logger *slog.Logger
}

var _ Backend = (*NarrowingBackend)(nil)

// NewNarrowingBackend wraps inner. When extend is true and inner implements
// SchemaExtender, unknown values are added to the schema before retrying.
func NewNarrowingBackend(inner Backend, extend bool, logger *slog.Logger) *NarrowingBackend {
	return &NarrowingBackend{inner: inner, extend: extend, logger: logger}
}

func (n *NarrowingBackend) FindByKey(ctx context.Context, key string) (model.Offer, error) {
	return n.inner.FindByKey(ctx, key)
}

func (n *NarrowingBackend) Create(ctx context.Context, offer model.Offer) error {
	err := n.inner.Create(ctx, offer)
	ce, ok := model.AsConflict(err)
	if !ok {
		return err
	}
	if n.tryExtend(ctx, ce) {
		return n.inner.Create(ctx, offer)
	}
	n.logger.Warn("retrying create without rejected field", "offer_key", offer.Key, "field", ce.Field, "value", ce.Value)
	offer.Clear(ce.Field)
	return n.inner.Create(ctx, offer)
}

func (n *NarrowingBackend) Patch(ctx context.Context, key string, patch model.Patch) error {
	err := n.inner.Patch(ctx, key, patch)
	ce, ok := model.AsConflict(err)
	if !ok {
		return err
	}
	if n.tryExtend(ctx, ce) {
		return n.inner.Patch(ctx, key, patch)
	}
	n.logger.Warn("retrying patch without rejected field", "offer_key", key, "field", ce.Field, "value", ce.Value)
	narrowed := model.Patch{Fields: patch.Fields.Without(ce.Field), Status: patch.Status}
	if narrowed.Empty() {
		return nil
	}
	return n.inner.Patch(ctx, key, narrowed)
}

func (n *NarrowingBackend) tryExtend(ctx context.Context, ce *model.ConflictError) bool {
	if !n.extend {
		return false
	}
	ext, ok := n.inner.(SchemaExtender)
	if !ok {
		return false
	}
	if err := ext.ExtendEnum(ctx, ce.Field, ce.Value); err != nil {
		n.logger.Warn("schema extension failed, narrowing instead", "field", ce.Field, "value", ce.Value, "error", err)
		return false
	}
	n.logger.Info("schema extended", "field", ce.Field, "value", ce.Value)
	return true
}

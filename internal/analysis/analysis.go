// Package analysis hands offers that reached PendingAnalysis to the
// downstream analysis service.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobintake/internal/model"
)

// CommandAnalyzeOffer is both the command type and the default channel.
const CommandAnalyzeOffer = "CMD_ANALYZE_OFFER"

// Publisher announces that an offer is ready for analysis.
type Publisher interface {
	PublishReady(ctx context.Context, offer model.Offer) error
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, &model.TransportError{Op: "redis ping", Err: err}
	}
	return rdb, nil
}

// RedisPublisher publishes a JSON command per offer on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(rdb *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = CommandAnalyzeOffer
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

func (p *RedisPublisher) PublishReady(ctx context.Context, offer model.Offer) error {
	event, err := commandFor(offer)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, event).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", CommandAnalyzeOffer, err)
	}
	p.logger.Debug("analysis requested", "offer_key", offer.Key, "channel", p.channel)
	return nil
}

func commandFor(offer model.Offer) ([]byte, error) {
	event, err := json.Marshal(map[string]string{
		"type":     CommandAnalyzeOffer,
		"offerKey": offer.Key,
		"source":   string(offer.SourceRef),
		"url":      offer.URL,
		"title":    offer.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis command: %w", err)
	}
	return event, nil
}

// Nop drops every command. It is used when no analysis backend is configured.
type Nop struct{}

func (Nop) PublishReady(context.Context, model.Offer) error { return nil }

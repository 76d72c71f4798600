// Package sample stores raw payloads from unclassified senders so that an
// operator can write a parser for them later.
package sample

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"github.com/amishk599/jobintake/internal/model"
)

// Sink persists one captured sample under key.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Key builds samples/<sender>/<runID>-<itemID>.eml with path-unsafe
// characters replaced.
func Key(sender, runID, itemID string) string {
	return fmt.Sprintf("samples/%s/%s-%s.eml", safe(sender), safe(runID), safe(itemID))
}

// safe turns s into a single path segment. A leading dot is replaced so
// that "." and ".." cannot climb out of the samples tree.
func safe(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '<', '>', ' ', '"', '|', '?', '*':
			return '_'
		}
		return r
	}, s)
	if s == "" || s[0] == '.' {
		s = "_" + strings.TrimPrefix(s, ".")
	}
	return s
}

// Capturer adapts a Sink to dispatch's capture callback for one run.
type Capturer struct {
	sink   Sink
	runID  string
	logger *slog.Logger
}

func NewCapturer(sink Sink, runID string, logger *slog.Logger) *Capturer {
	return &Capturer{sink: sink, runID: runID, logger: logger}
}

// Capture stores item's raw payload under the sample key for sender.
func (c *Capturer) Capture(ctx context.Context, sender string, item model.InboundItem) error {
	key := Key(sender, c.runID, item.ID)
	if err := c.sink.Put(ctx, key, item.RawPayload); err != nil {
		return fmt.Errorf("capture sample %s: %w", key, err)
	}
	c.logger.Info("sample captured", "sender", sender, "key", key)
	return nil
}

// DirSink writes samples below a local directory.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink {
	return &DirSink{root: root}
}

func (d *DirSink) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sample dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// GCSSink writes samples to a Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

func NewGCSSink(client *storage.Client, bucket string, logger *slog.Logger) *GCSSink {
	return &GCSSink{client: client, bucket: bucket, logger: logger}
}

func (g *GCSSink) Put(ctx context.Context, key string, data []byte) error {
	return retry.Do(
		func() error {
			w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "message/rfc822"
			if _, err := w.Write(data); err != nil {
				w.Close()
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("retrying sample upload", "key", key, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, storage.ErrBucketNotExist)
		}),
	)
}

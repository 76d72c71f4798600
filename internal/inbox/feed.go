package inbox

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/amishk599/jobintake/internal/model"
)

// Ledger remembers archived feed entries, since feeds cannot be mutated.
type Ledger interface {
	IsArchived(ctx context.Context, itemID string) (bool, error)
	MarkArchived(ctx context.Context, itemIDs []string) error
}

// FeedReader turns RSS/Atom job feeds into inbound items sent by
// "feed:<host>". Each entry is rendered as a small HTML document so the
// anchor extractors can read it.
type FeedReader struct {
	client *http.Client
	feeds  map[string][]string // folder -> feed URLs
	ledger Ledger
	logger *slog.Logger
}

var _ Reader = (*FeedReader)(nil)

// NewFeedReader creates a reader over feeds grouped by folder name.
func NewFeedReader(client *http.Client, feeds map[string][]string, ledger Ledger, logger *slog.Logger) *FeedReader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &FeedReader{client: client, feeds: feeds, ledger: ledger, logger: logger}
}

// ListInboundItems fetches every feed in folder and returns entries not yet
// archived. It fails with a TransportError only when no feed could be read.
func (f *FeedReader) ListInboundItems(ctx context.Context, folder string) ([]model.InboundItem, error) {
	urls := f.feeds[folder]
	parser := gofeed.NewParser()

	var items []model.InboundItem
	var lastErr error
	reached := 0
	for _, feedURL := range urls {
		feed, err := f.fetch(ctx, parser, feedURL)
		if err != nil {
			f.logger.Warn("feed unreachable", "feed", feedURL, "error", err)
			lastErr = err
			continue
		}
		reached++

		host := feedHost(feedURL)
		// Feeds list newest first.
		for i := len(feed.Items) - 1; i >= 0; i-- {
			it := feed.Items[i]
			id := feedItemID(host, it)
			if id == "" {
				continue
			}
			archived, err := f.ledger.IsArchived(ctx, id)
			if err != nil {
				return nil, &model.TransportError{Op: "archive ledger", Err: err}
			}
			if archived {
				continue
			}
			items = append(items, model.InboundItem{
				ID:             id,
				SenderIdentity: "feed:" + host,
				RawPayload:     renderFeedItem(it),
				ReceivedAt:     feedItemTime(it),
			})
		}
	}

	if reached == 0 && lastErr != nil {
		return nil, &model.TransportError{Op: "read feeds " + folder, Err: lastErr}
	}
	return items, nil
}

// ArchiveItems records ids in the ledger; archiveFolder is not used.
func (f *FeedReader) ArchiveItems(ctx context.Context, ids []string, _ string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := f.ledger.MarkArchived(ctx, ids); err != nil {
		return &model.TransportError{Op: "archive ledger", Err: err}
	}
	return nil
}

func (f *FeedReader) fetch(ctx context.Context, parser *gofeed.Parser, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{StatusCode: resp.StatusCode}
	}
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func feedHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return strings.ToLower(feedURL)
	}
	return strings.ToLower(u.Hostname())
}

func feedItemID(host string, it *gofeed.Item) string {
	key := strings.TrimSpace(it.GUID)
	if key == "" {
		key = strings.TrimSpace(it.Link)
	}
	if key == "" {
		return ""
	}
	return host + "/" + key
}

func feedItemTime(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}

func renderFeedItem(it *gofeed.Item) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(strings.TrimSpace(it.Link)), html.EscapeString(strings.TrimSpace(it.Title)))
	if it.Description != "" {
		fmt.Fprintf(&b, "<div>%s</div>", it.Description)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

package inbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/amishk599/jobintake/internal/model"
)

// GmailReader reads alert emails under a Gmail label. Archiving swaps the
// label a message was listed under for the archive label.
type GmailReader struct {
	service *gmail.Service
	user    string
	logger  *slog.Logger

	mu     sync.Mutex
	listed map[string]string // message id -> label id it was listed under
}

var _ Reader = (*GmailReader)(nil)

// NewGmailService builds a Gmail client from a service-account or OAuth
// credentials file. An empty path uses application default credentials.
func NewGmailService(ctx context.Context, credentialsFile string) (*gmail.Service, error) {
	if credentialsFile == "" {
		return gmail.NewService(ctx)
	}
	return gmail.NewService(ctx, option.WithCredentialsFile(credentialsFile))
}

// NewGmailReader creates a reader for the given mailbox user ("me" for the
// authenticated account).
func NewGmailReader(service *gmail.Service, user string, logger *slog.Logger) *GmailReader {
	if user == "" {
		user = "me"
	}
	return &GmailReader{service: service, user: user, logger: logger, listed: make(map[string]string)}
}

// ListInboundItems returns the raw messages carrying the folder label.
func (g *GmailReader) ListInboundItems(ctx context.Context, folder string) ([]model.InboundItem, error) {
	labelID, err := g.labelID(ctx, folder, false)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = g.withRetry(ctx, "list messages", func() error {
		ids = ids[:0]
		return g.service.Users.Messages.List(g.user).LabelIds(labelID).Context(ctx).
			Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
				for _, m := range resp.Messages {
					ids = append(ids, m.Id)
				}
				return nil
			})
	})
	if err != nil {
		return nil, &model.TransportError{Op: "gmail list " + folder, Err: err}
	}

	g.mu.Lock()
	for _, id := range ids {
		g.listed[id] = labelID
	}
	g.mu.Unlock()

	items := make([]model.InboundItem, 0, len(ids))
	for _, id := range ids {
		var msg *gmail.Message
		err := g.withRetry(ctx, "get message", func() error {
			var err error
			msg, err = g.service.Users.Messages.Get(g.user, id).Format("raw").Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, &model.TransportError{Op: "gmail get " + id, Err: err}
		}
		item, err := decodeGmailMessage(msg)
		if err != nil {
			g.logger.Warn("skipping undecodable message", "item_id", id, "error", err)
			continue
		}
		items = append(items, item)
	}

	// Gmail lists newest first; runs traverse items in arrival order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	g.logger.Debug("gmail items listed", "folder", folder, "count", len(items))
	return items, nil
}

// ArchiveItems moves ids from the label they were listed under to
// archiveFolder, creating the label when needed. Ids this reader never
// listed lose the INBOX label.
func (g *GmailReader) ArchiveItems(ctx context.Context, ids []string, archiveFolder string) error {
	if len(ids) == 0 {
		return nil
	}
	labelID, err := g.labelID(ctx, archiveFolder, true)
	if err != nil {
		return err
	}

	var sources []string
	bySource := make(map[string][]string)
	g.mu.Lock()
	for _, id := range ids {
		src, ok := g.listed[id]
		if !ok {
			src = "INBOX"
		}
		if _, seen := bySource[src]; !seen {
			sources = append(sources, src)
		}
		bySource[src] = append(bySource[src], id)
	}
	g.mu.Unlock()

	for _, src := range sources {
		batch := bySource[src]
		err := g.withRetry(ctx, "archive messages", func() error {
			return g.service.Users.Messages.BatchModify(g.user, &gmail.BatchModifyMessagesRequest{
				Ids:            batch,
				AddLabelIds:    []string{labelID},
				RemoveLabelIds: []string{src},
			}).Context(ctx).Do()
		})
		if err != nil {
			return &model.TransportError{Op: "gmail archive", Err: err}
		}
		g.mu.Lock()
		for _, id := range batch {
			delete(g.listed, id)
		}
		g.mu.Unlock()
	}
	return nil
}

func (g *GmailReader) labelID(ctx context.Context, name string, create bool) (string, error) {
	var labels *gmail.ListLabelsResponse
	err := g.withRetry(ctx, "list labels", func() error {
		var err error
		labels, err = g.service.Users.Labels.List(g.user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", &model.TransportError{Op: "gmail labels", Err: err}
	}
	for _, l := range labels.Labels {
		if strings.EqualFold(l.Name, name) || l.Id == name {
			return l.Id, nil
		}
	}
	if !create {
		return "", fmt.Errorf("gmail label %q not found", name)
	}

	label, err := g.service.Users.Labels.Create(g.user, &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", &model.TransportError{Op: "gmail create label " + name, Err: err}
	}
	g.logger.Info("gmail label created", "label", name)
	return label.Id, nil
}

func (g *GmailReader) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("retrying gmail request", "op", op, "attempt", n, "error", err)
		}),
	)
}

func decodeGmailMessage(msg *gmail.Message) (model.InboundItem, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(msg.Raw, "="))
	if err != nil {
		return model.InboundItem{}, fmt.Errorf("decode raw payload: %w", err)
	}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return model.InboundItem{}, fmt.Errorf("parse headers: %w", err)
	}
	return model.InboundItem{
		ID:             msg.Id,
		SenderIdentity: parsed.Header.Get("From"),
		RawPayload:     raw,
		ReceivedAt:     time.UnixMilli(msg.InternalDate).UTC(),
	}, nil
}

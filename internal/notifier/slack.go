package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// maxMessages caps the message lines posted to Slack.
const maxMessages = 10

// SlackNotifier posts run summaries to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each summary to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends the summary as one Block Kit message. A 429 is retried once
// after Retry-After.
func (s *SlackNotifier) Notify(ctx context.Context, summary model.RunSummary) error {
	body, err := json.Marshal(buildPayload(summary))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack summary sent", "run_id", summary.RunID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack summary sent", "run_id", summary.RunID)
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a dummy summary to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	now := time.Now()
	return n.Notify(ctx, model.RunSummary{
		RunID:      "test",
		Kind:       model.RunIngestion,
		StartedAt:  now,
		FinishedAt: now,
		Messages:   []string{"integration verified"},
	})
}

func field(label string, v int) slackText {
	return slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%d", label, v)}
}

func buildPayload(s model.RunSummary) slackPayload {
	title := fmt.Sprintf("jobintake %s run", s.Kind)
	if s.Aborted != "" {
		title += " (aborted)"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: title},
		},
	}

	switch s.Kind {
	case model.RunEnrichment:
		blocks = append(blocks, slackBlock{
			Type: "section",
			Fields: []slackText{
				field("Ready for analysis", s.Transitions[model.StatusPendingAnalysis]),
				field("Still pending", s.Transitions[model.StatusPendingCompletion]),
				field("Expired", s.Transitions[model.StatusExpired]),
				field("Ignored", s.Transitions[model.StatusIgnored]),
			},
		})
	default:
		blocks = append(blocks,
			slackBlock{
				Type: "section",
				Fields: []slackText{
					field("Sources created", s.SourcesCreated),
					field("Corrections", len(s.Corrections)),
					field("Processed", s.Processed),
					field("Archived", s.Archived),
				},
			},
			slackBlock{
				Type: "section",
				Fields: []slackText{
					field("Offers created", s.OffersCreated),
					field("Already present", s.OffersAlreadyPresent),
					field("Samples", s.Samples),
					field("Failed", s.Failed),
				},
			},
		)
	}

	if s.Aborted != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Aborted:* " + s.Aborted},
		})
	}

	if len(s.Messages) > 0 {
		lines := s.Messages
		extra := 0
		if len(lines) > maxMessages {
			extra = len(lines) - maxMessages
			lines = lines[:maxMessages]
		}
		text := "• " + strings.Join(lines, "\n• ")
		if extra > 0 {
			text += fmt.Sprintf("\n_+%d more_", extra)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}

package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the counters, then every correction and message.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, s model.RunSummary) error {
	args := []any{
		"run_id", s.RunID,
		"kind", s.Kind,
		"duration", s.Duration().Round(time.Millisecond),
		"sources_created", s.SourcesCreated,
		"corrections", len(s.Corrections),
		"processed", s.Processed,
		"archived", s.Archived,
		"samples", s.Samples,
		"offers_created", s.OffersCreated,
		"offers_already_present", s.OffersAlreadyPresent,
		"failed", s.Failed,
	}
	for _, st := range transitionOrder {
		if c := s.Transitions[st]; c > 0 {
			args = append(args, "to_"+string(st), c)
		}
	}
	if s.Aborted != "" {
		args = append(args, "aborted", s.Aborted)
	}
	n.logger.Info("run complete", args...)

	for _, c := range s.Corrections {
		n.logger.Info("source corrected", "sender", c.SenderIdentity, "from", c.PreviousName, "to", c.NewName)
	}
	for _, m := range s.Messages {
		n.logger.Warn("run message", "run_id", s.RunID, "message", m)
	}
	return nil
}

var transitionOrder = []model.Status{
	model.StatusPendingAnalysis,
	model.StatusPendingCompletion,
	model.StatusExpired,
	model.StatusIgnored,
}

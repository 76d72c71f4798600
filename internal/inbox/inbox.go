// Package inbox lists and archives raw inbound items: alert emails from a
// Gmail mailbox, HTML list exports dropped in a directory, and RSS/Atom job
// feeds.
package inbox

import (
	"context"

	"github.com/amishk599/jobintake/internal/model"
)

// Reader is the mailbox contract consumed by a run. Unreachable backends
// are reported as *model.TransportError.
type Reader interface {
	ListInboundItems(ctx context.Context, folder string) ([]model.InboundItem, error)
	ArchiveItems(ctx context.Context, ids []string, archiveFolder string) error
}

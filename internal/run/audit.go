package run

import (
	"context"

	"github.com/amishk599/jobintake/internal/discovery"
)

// RunAudit lists the inbound items and reports how their senders reconcile
// against the registry. Nothing is created, processed or archived.
func (o *Orchestrator) RunAudit(ctx context.Context) (discovery.Report, error) {
	reg, err := o.loadRegistry(ctx)
	if err != nil {
		return discovery.Report{}, err
	}
	items, err := o.deps.Reader.ListInboundItems(ctx, o.cfg.Folder)
	if err != nil {
		return discovery.Report{}, err
	}

	observed := make([]string, len(items))
	for i, it := range items {
		observed[i] = it.SenderIdentity
	}
	rep := discovery.Audit(observed, reg)
	o.logger.Info("audit complete",
		"items", len(items),
		"senders", len(rep.Rows),
		"creations", len(rep.Creations),
	)
	return rep, nil
}

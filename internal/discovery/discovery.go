// Package discovery reconciles the senders observed in a batch against the
// source registry and reports what would need to be created.
package discovery

import (
	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
)

// Row is the per-sender line of an audit report.
type Row struct {
	SenderIdentity     string           `json:"sender_identity"`
	SourceName         model.SourceName `json:"source_name"`
	EnabledForCreation bool             `json:"enabled_for_creation"`
	ObservedCount      int              `json:"observed_count"`
	New                bool             `json:"new"`
}

// Creation asks the caller to attribute a sender to a source. Capabilities
// are only used when the source entry does not exist yet.
type Creation struct {
	SenderIdentity string             `json:"sender_identity"`
	SourceName     model.SourceName   `json:"source_name"`
	Capabilities   model.Capabilities `json:"capabilities"`
}

// Report is the result of one audit. ItemsArchivable and ItemsPending are a
// forecast from the current registry state, not what a run will do.
type Report struct {
	Rows            []Row      `json:"rows"`
	Creations       []Creation `json:"creations"`
	ItemsArchivable int        `json:"items_archivable"`
	ItemsPending    int        `json:"items_pending"`
}

// DefaultCapabilities is the posture given to a newly discovered sender.
func DefaultCapabilities(name model.SourceName) model.Capabilities {
	if name.IsUnknown() {
		return model.DiscoveryDefaults()
	}
	return model.AllEnabled()
}

// Audit normalises the observed senders, counts them and classifies every
// sender not yet attributed in reg. It never mutates reg.
func Audit(observed []string, reg *registry.Registry) Report {
	var order []string
	counts := make(map[string]int)
	for _, raw := range observed {
		key := registry.NormalizeSender(raw)
		if key == "" {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	var rep Report
	for _, key := range order {
		row := Row{SenderIdentity: key, ObservedCount: counts[key]}
		if src, ok := reg.Resolve(key); ok {
			row.SourceName = src.Name
			row.EnabledForCreation = src.Capabilities.Creation
		} else {
			name := registry.Classify(key)
			caps := DefaultCapabilities(name)
			rep.Creations = append(rep.Creations, Creation{SenderIdentity: key, SourceName: name, Capabilities: caps})

			// An existing entry keeps its own flags once the sender is attached.
			if existing, ok := reg.Get(name); ok {
				caps = existing.Capabilities
			}
			row.SourceName = name
			row.EnabledForCreation = caps.Creation
			row.New = true
		}

		if row.EnabledForCreation {
			rep.ItemsArchivable += row.ObservedCount
		} else {
			rep.ItemsPending += row.ObservedCount
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

// Apply attributes every creation to its source in reg, materialising missing
// entries, and returns how many senders were newly provisioned. Creations for
// senders that reg already resolves are skipped.
func Apply(reg *registry.Registry, creations []Creation) int {
	created := 0
	for _, c := range creations {
		if _, ok := reg.Resolve(c.SenderIdentity); ok {
			continue
		}
		reg.AddSender(c.SourceName, c.SenderIdentity, c.Capabilities)
		created++
	}
	return created
}

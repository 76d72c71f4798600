// Package dispatch decides, per inbound item, whether it is processed,
// archived or sampled, and corrects registry drift along the way.
package dispatch

import "github.com/amishk599/jobintake/internal/model"

// ArchiveMode says when an item may leave the inbox.
type ArchiveMode int

const (
	ArchiveNever ArchiveMode = iota
	ArchiveAlways
	ArchiveOnSuccess // only once business processing has succeeded
)

func (m ArchiveMode) String() string {
	switch m {
	case ArchiveAlways:
		return "always"
	case ArchiveOnSuccess:
		return "on_success"
	default:
		return "never"
	}
}

// Input is everything the decision table looks at.
type Input struct {
	Resolved        bool // a registry entry lists the sender
	Source          model.SourceName
	CreationEnabled bool
	ParserAvailable bool
}

// Decision is the structured outcome of one table lookup.
type Decision struct {
	Process bool
	Archive ArchiveMode
	Capture bool
	// Demote is set when the source claims a parser-backed identity that has
	// no runtime parser. The caller must reclassify the sender as Unknown and
	// decide again.
	Demote bool
	// Provision is set for a first sighting: the sender must be attached to
	// the Unknown entry.
	Provision bool
}

// Decide evaluates the dispatch table. It has no side effects.
func Decide(in Input) Decision {
	switch {
	case !in.Resolved:
		return Decision{Archive: ArchiveNever, Capture: true, Provision: true}
	case in.Source.IsUnknown():
		d := Decision{Archive: ArchiveNever, Capture: true}
		if in.CreationEnabled {
			d.Archive = ArchiveAlways
		}
		return d
	case !in.CreationEnabled:
		return Decision{Archive: ArchiveNever}
	case !in.ParserAvailable:
		return Decision{Demote: true}
	default:
		return Decision{Process: true, Archive: ArchiveOnSuccess}
	}
}

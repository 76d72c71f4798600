// Package registry holds the capability-tagged source registry and the rules
// that map raw sender identities onto canonical sources.
package registry

import "github.com/amishk599/jobintake/internal/model"

// Registry is an in-memory snapshot of the source list. It is loaded fresh
// for every run step and saved back through a store.SourceRepository.
// A Registry is not safe for concurrent use.
type Registry struct {
	sources []model.Source
	index   map[model.SourceName]int
}

// New builds a registry from persisted entries, enforcing one entry per name.
// Names outside the canonical set collapse into model.SourceUnknown. When a
// name appears more than once, capability flags are OR-ed, sender identities
// are unioned in first-seen order and the first non-empty official URL is
// kept. The merged entry takes the position of the first occurrence.
func New(entries []model.Source) *Registry {
	r := &Registry{index: make(map[model.SourceName]int, len(entries))}
	for _, e := range entries {
		name, _ := model.ParseSourceName(string(e.Name))
		i, ok := r.index[name]
		if !ok {
			s := model.Source{Name: name, Capabilities: e.Capabilities}
			if !name.IsUnknown() {
				s.OfficialURL = e.OfficialURL
			}
			r.index[name] = len(r.sources)
			r.sources = append(r.sources, s)
			i = len(r.sources) - 1
			r.addSenders(i, e.SenderIdentities)
			continue
		}
		cur := &r.sources[i]
		cur.Capabilities.Creation = cur.Capabilities.Creation || e.Capabilities.Creation
		cur.Capabilities.Enrichment = cur.Capabilities.Enrichment || e.Capabilities.Enrichment
		cur.Capabilities.Analysis = cur.Capabilities.Analysis || e.Capabilities.Analysis
		if cur.OfficialURL == "" && !name.IsUnknown() {
			cur.OfficialURL = e.OfficialURL
		}
		r.addSenders(i, e.SenderIdentities)
	}
	return r
}

// Default returns the initial registry: every canonical source fully enabled
// with its seed senders, plus an Unknown entry in the discovery posture.
func Default() *Registry {
	entries := make([]model.Source, 0, len(model.CanonicalNames())+1)
	for _, n := range model.CanonicalNames() {
		entries = append(entries, model.Source{
			Name:             n,
			OfficialURL:      officialURLs[n],
			Capabilities:     model.AllEnabled(),
			SenderIdentities: append([]string(nil), seedSenders[n]...),
		})
	}
	entries = append(entries, model.Source{
		Name:         model.SourceUnknown,
		Capabilities: model.DiscoveryDefaults(),
	})
	return New(entries)
}

// Get returns the entry for name.
func (r *Registry) Get(name model.SourceName) (model.Source, bool) {
	i, ok := r.index[name]
	if !ok {
		return model.Source{}, false
	}
	return r.sources[i].Clone(), true
}

// List returns a copy of every entry in registry order.
func (r *Registry) List() []model.Source {
	out := make([]model.Source, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of materialised entries.
func (r *Registry) Len() int { return len(r.sources) }

// UpsertCapabilities merges the non-nil fields of patch into the entry for
// name. It never creates entries; the boolean is false when name is absent.
func (r *Registry) UpsertCapabilities(name model.SourceName, patch model.CapabilityPatch) bool {
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.sources[i].Capabilities = patch.ApplyTo(r.sources[i].Capabilities)
	return true
}

// Resolve returns the entry that already lists identity among its senders.
func (r *Registry) Resolve(identity string) (model.Source, bool) {
	for _, s := range r.sources {
		if s.HasSender(identity) {
			return s.Clone(), true
		}
	}
	return model.Source{}, false
}

// AddSender attributes identity to name. A missing entry is materialised with
// caps; an existing entry keeps its own capabilities. Adding an identity that
// is already attributed to name is a no-op.
func (r *Registry) AddSender(name model.SourceName, identity string, caps model.Capabilities) {
	i, ok := r.index[name]
	if !ok {
		r.index[name] = len(r.sources)
		r.sources = append(r.sources, model.Source{Name: name, OfficialURL: officialURLs[name], Capabilities: caps})
		i = len(r.sources) - 1
	}
	r.addSenders(i, []string{identity})
}

// MoveSender detaches identity from whichever entry holds it and attributes
// it to the entry for to, creating that entry with caps if needed. It returns
// the name of the previous owner, if any.
func (r *Registry) MoveSender(identity string, to model.SourceName, caps model.Capabilities) (model.SourceName, bool) {
	var prev model.SourceName
	found := false
	for i := range r.sources {
		s := &r.sources[i]
		for j, id := range s.SenderIdentities {
			if id == identity {
				prev, found = s.Name, true
				s.SenderIdentities = append(s.SenderIdentities[:j:j], s.SenderIdentities[j+1:]...)
				break
			}
		}
		if found {
			break
		}
	}
	r.AddSender(to, identity, caps)
	return prev, found
}

func (r *Registry) addSenders(i int, ids []string) {
	s := &r.sources[i]
	for _, id := range ids {
		if id == "" || s.HasSender(id) {
			continue
		}
		s.SenderIdentities = append(s.SenderIdentities, id)
	}
}

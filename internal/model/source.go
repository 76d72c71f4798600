package model

import "strings"

// SourceName identifies one upstream provider. The set is closed: any name
// outside it is coerced to SourceUnknown.
type SourceName string

const (
	SourceLinkedIn           SourceName = "LinkedIn"
	SourceIndeed             SourceName = "Indeed"
	SourceWelcomeToTheJungle SourceName = "WelcomeToTheJungle"
	SourceHelloWork          SourceName = "HelloWork"
	SourceApec               SourceName = "Apec"
	SourceGlassdoor          SourceName = "Glassdoor"
	SourceJobTeaser          SourceName = "JobTeaser"
	SourceCadremploi         SourceName = "Cadremploi"

	// SourceUnknown collects every sender that no classification rule recognises.
	SourceUnknown SourceName = "Unknown"
)

var canonicalNames = []SourceName{
	SourceLinkedIn,
	SourceIndeed,
	SourceWelcomeToTheJungle,
	SourceHelloWork,
	SourceApec,
	SourceGlassdoor,
	SourceJobTeaser,
	SourceCadremploi,
}

// CanonicalNames returns the recognised provider names in registry order.
// SourceUnknown is not included.
func CanonicalNames() []SourceName {
	out := make([]SourceName, len(canonicalNames))
	copy(out, canonicalNames)
	return out
}

// ParseSourceName matches s case-insensitively against the canonical names and
// SourceUnknown. The boolean is false when s is outside the closed set, in
// which case SourceUnknown is returned.
func ParseSourceName(s string) (SourceName, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(SourceUnknown)) {
		return SourceUnknown, true
	}
	for _, n := range canonicalNames {
		if strings.EqualFold(s, string(n)) {
			return n, true
		}
	}
	return SourceUnknown, false
}

// IsUnknown reports whether n is the Unknown sentinel.
func (n SourceName) IsUnknown() bool { return n == SourceUnknown }

// Capabilities are the three independent switches carried by every source.
type Capabilities struct {
	Creation   bool `json:"creation"`   // business processing may create offers from this source's items
	Enrichment bool `json:"enrichment"` // offers from this source are eligible for page enrichment
	Analysis   bool `json:"analysis"`   // enriched offers are handed to the analysis step
}

// AllEnabled is the posture of default-initialised and recognised sources.
func AllEnabled() Capabilities {
	return Capabilities{Creation: true, Enrichment: true, Analysis: true}
}

// DiscoveryDefaults is the posture given to unclassified senders: never
// ingested or enriched, still counted for analysis bookkeeping.
func DiscoveryDefaults() Capabilities {
	return Capabilities{Creation: false, Enrichment: false, Analysis: true}
}

// CapabilityPatch carries optional capability changes. Nil fields are left as is.
type CapabilityPatch struct {
	Creation   *bool
	Enrichment *bool
	Analysis   *bool
}

// Empty reports whether the patch changes nothing.
func (p CapabilityPatch) Empty() bool {
	return p.Creation == nil && p.Enrichment == nil && p.Analysis == nil
}

// ApplyTo returns c with the non-nil fields of p applied.
func (p CapabilityPatch) ApplyTo(c Capabilities) Capabilities {
	if p.Creation != nil {
		c.Creation = *p.Creation
	}
	if p.Enrichment != nil {
		c.Enrichment = *p.Enrichment
	}
	if p.Analysis != nil {
		c.Analysis = *p.Analysis
	}
	return c
}

// Source is one registry entry: a provider, its switches, and the raw sender
// identities (normalised addresses or derived path tokens) attributed to it.
type Source struct {
	Name             SourceName
	OfficialURL      string
	Capabilities     Capabilities
	SenderIdentities []string
}

// HasSender reports whether identity is already attributed to s.
func (s Source) HasSender(identity string) bool {
	for _, id := range s.SenderIdentities {
		if id == identity {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of s.
func (s Source) Clone() Source {
	out := s
	out.SenderIdentities = append([]string(nil), s.SenderIdentities...)
	return out
}

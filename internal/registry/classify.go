package registry

import (
	"net/mail"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/jobintake/internal/model"
)

var officialURLs = map[model.SourceName]string{
	model.SourceLinkedIn:           "https://www.linkedin.com/jobs",
	model.SourceIndeed:             "https://fr.indeed.com",
	model.SourceWelcomeToTheJungle: "https://www.welcometothejungle.com",
	model.SourceHelloWork:          "https://www.hellowork.com",
	model.SourceApec:               "https://www.apec.fr",
	model.SourceGlassdoor:          "https://www.glassdoor.fr",
	model.SourceJobTeaser:          "https://www.jobteaser.com",
	model.SourceCadremploi:         "https://www.cadremploi.fr",
}

// seedSenders are the stable alert addresses attached at default initialisation.
var seedSenders = map[model.SourceName][]string{
	model.SourceLinkedIn:           {"jobalerts-noreply@linkedin.com", "jobs-listings@linkedin.com"},
	model.SourceIndeed:             {"alert@indeed.com", "donotreply@jobalert.indeed.com"},
	model.SourceWelcomeToTheJungle: {"alerts@welcometothejungle.com"},
	model.SourceHelloWork:          {"alerte@hellowork.com"},
}

// exactRules extends the seeds with identities recognised during discovery.
// Matching is exact equality on the normalised form.
var exactRules = map[model.SourceName][]string{
	model.SourceLinkedIn:           {"list:linkedin"},
	model.SourceIndeed:             {"list:indeed"},
	model.SourceWelcomeToTheJungle: {"list:welcometothejungle", "list:wttj", "feed:www.welcometothejungle.com"},
	model.SourceHelloWork:          {"list:hellowork", "feed:www.hellowork.com"},
	model.SourceApec:               {"offres@diffusion.apec.fr", "list:apec"},
	model.SourceGlassdoor:          {"noreply@glassdoor.com", "list:glassdoor"},
	model.SourceJobTeaser:          {"notifications@jobteaser.com", "list:jobteaser"},
	model.SourceCadremploi:         {"alertes@cadremploi.fr", "list:cadremploi"},
}

var classifyTable = buildClassifyTable()

func buildClassifyTable() map[string]model.SourceName {
	t := make(map[string]model.SourceName)
	for _, n := range model.CanonicalNames() {
		for _, id := range seedSenders[n] {
			t[id] = n
		}
		for _, id := range exactRules[n] {
			t[id] = n
		}
	}
	return t
}

// Classify maps a normalised sender onto its canonical source, or Unknown.
// Near misses (plus addressing, sub-domains) do not match.
func Classify(normalized string) model.SourceName {
	if n, ok := classifyTable[normalized]; ok {
		return n
	}
	return model.SourceUnknown
}

// NormalizeSender reduces a raw sender to its registry key. Mail addresses,
// with or without a display name, become the bare lowercase address. Derived
// tokens such as "list:indeed" are only lowercased.
func NormalizeSender(raw string) string {
	raw = norm.NFC.String(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "list:") || strings.HasPrefix(lower, "feed:") {
		return lower
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return strings.ToLower(strings.TrimSpace(addr.Address))
	}
	// Fall back to the text between angle brackets for headers net/mail rejects.
	if l, r := strings.LastIndex(raw, "<"), strings.LastIndex(raw, ">"); l >= 0 && r > l {
		return strings.ToLower(strings.TrimSpace(raw[l+1 : r]))
	}
	return lower
}

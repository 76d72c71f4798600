package upsert

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/jobintake/internal/model"
)

// contentDomain separates offer content hashes from any other sha256 use.
const contentDomain = "jobintake/offer-content/v1"

// NaturalKey resolves the identity of an offer: the source-namespaced external
// id when known, else the URL, else a hash of the stable content fields.
func NaturalKey(source model.SourceName, externalID string, f model.Fields) string {
	if id := strings.TrimSpace(externalID); id != "" {
		return string(source) + ":" + id
	}
	if u := strings.TrimSpace(f[model.FieldURL]); u != "" {
		return u
	}
	parts := []string{
		f[model.FieldTitle],
		f[model.FieldCompany],
		f[model.FieldCity],
		f[model.FieldPostedDate],
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(norm.NFC.String(p)))
	}
	return "hash:" + hashWithDomain(contentDomain, []byte(strings.Join(parts, "|")))
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

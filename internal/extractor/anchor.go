package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobintake/internal/model"
)

// anchorParser extracts offers from anchors whose host ends in hostSuffix and
// whose path matches path. The first submatch of path is the external id;
// when companyGroup is positive, that submatch is a company slug.
type anchorParser struct {
	hostSuffix   string
	path         *regexp.Regexp
	companyGroup int
}

var (
	welcomeToTheJungle = anchorParser{
		hostSuffix:   "welcometothejungle.com",
		path:         regexp.MustCompile(`/companies/([^/]+)/jobs/([^/?#]+)`),
		companyGroup: 1,
	}
	helloWork = anchorParser{
		hostSuffix: "hellowork.com",
		path:       regexp.MustCompile(`/emplois/(\d+)\.html`),
	}
)

func (p anchorParser) Parse(html []byte) ([]model.Draft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var drafts []model.Draft
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := url.Parse(href)
		if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), p.hostSuffix) {
			return
		}
		m := p.path.FindStringSubmatch(u.Path)
		if m == nil {
			return
		}
		id := m[len(m)-1]
		title := collapse(a.Text())
		if seen[id] || title == "" {
			return
		}
		seen[id] = true

		canonical := url.URL{Scheme: "https", Host: u.Host, Path: u.Path}
		fields := model.Fields{
			model.FieldURL:   canonical.String(),
			model.FieldTitle: title,
		}
		if p.companyGroup > 0 && p.companyGroup < len(m)-1 {
			fields[model.FieldCompany] = slugToName(m[p.companyGroup])
		}
		drafts = append(drafts, model.Draft{ExternalID: id, Fields: fields})
	})
	return drafts, nil
}

// slugToName turns "acme-corp" into "Acme Corp".
func slugToName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

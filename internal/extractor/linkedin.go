package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobintake/internal/model"
)

var linkedInJobID = regexp.MustCompile(`/jobs/view/(?:[^/?#]*-)?(\d+)`)

// parseLinkedIn reads a LinkedIn job alert. Each offer is an anchor to
// /jobs/view/<id>; the company and city follow it as "Company · City".
func parseLinkedIn(html []byte) ([]model.Draft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var drafts []model.Draft
	index := make(map[string]int)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := linkedInJobID.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]
		title := collapse(a.Text())

		i, seen := index[id]
		if !seen {
			index[id] = len(drafts)
			drafts = append(drafts, model.Draft{
				ExternalID: id,
				Fields: model.Fields{
					model.FieldURL: "https://www.linkedin.com/jobs/view/" + id + "/",
				},
			})
			i = len(drafts) - 1
		}
		d := drafts[i]
		if title != "" && !d.Fields.Has(model.FieldTitle) {
			d.Fields[model.FieldTitle] = title
		}
		if !d.Fields.Has(model.FieldCompany) {
			company, city := linkedInSubtitle(a)
			if company != "" {
				d.Fields[model.FieldCompany] = company
			}
			if city != "" {
				d.Fields[model.FieldCity] = city
			}
		}
	})
	return drafts, nil
}

// linkedInSubtitle finds the "Company · City" line in the block holding a.
func linkedInSubtitle(a *goquery.Selection) (company, city string) {
	container := a.Closest("td, li, div")
	if container.Length() == 0 {
		return "", ""
	}
	container.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapse(p.Text())
		parts := strings.Split(text, "·")
		if len(parts) < 2 {
			return true
		}
		company = strings.TrimSpace(parts[0])
		city = strings.TrimSpace(parts[1])
		return false
	})
	return company, city
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

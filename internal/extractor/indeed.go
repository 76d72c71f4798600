package extractor

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobintake/internal/model"
)

// parseIndeed reads an Indeed alert. Offers are keyed by the jk query
// parameter of their link; company and city sit in the spans next to it.
func parseIndeed(html []byte) ([]model.Draft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var drafts []model.Draft
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		jk := u.Query().Get("jk")
		if jk == "" || seen[jk] {
			return
		}
		title := collapse(a.Text())
		if title == "" {
			return
		}
		seen[jk] = true

		fields := model.Fields{
			model.FieldURL:   "https://fr.indeed.com/viewjob?jk=" + jk,
			model.FieldTitle: title,
		}
		var spans []string
		a.Closest("td, li, div").Find("span").Each(func(_ int, s *goquery.Selection) {
			if t := collapse(s.Text()); t != "" {
				spans = append(spans, t)
			}
		})
		if len(spans) > 0 {
			fields[model.FieldCompany] = spans[0]
		}
		if len(spans) > 1 {
			fields[model.FieldCity] = spans[1]
		}
		drafts = append(drafts, model.Draft{ExternalID: jk, Fields: fields})
	})
	return drafts, nil
}

package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobintake/internal/model"
)

// goneMarkers are page texts that mean the posting was withdrawn even though
// the site answered 200.
var goneMarkers = []string{
	"no longer available",
	"no longer accepting applications",
	"this job has expired",
	"offre n'est plus disponible",
	"offre a expiré",
	"n'est plus en ligne",
}

// blockMarkers identify anti-bot interstitials and login walls.
var blockMarkers = []string{
	"captcha",
	"verify you are human",
	"access denied",
	"sign in to view",
}

// HTTPFetcher downloads an offer page and extracts fields from its
// schema.org JobPosting data, falling back to OpenGraph and meta tags.
type HTTPFetcher struct {
	client *http.Client
}

var _ model.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a page fetcher using client.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// FetchOfferContent implements model.PageFetcher.
func (f *HTTPFetcher) FetchOfferContent(ctx context.Context, rawURL string) (model.Fields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("create request: %w", err))
	}
	// Browser-like headers; some boards serve an empty shell to bare clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, otherError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(rawURL, resp)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("parse html: %w", err))
	}
	return parseOfferPage(rawURL, doc)
}

func parseOfferPage(rawURL string, doc *goquery.Document) (model.Fields, error) {
	fields := model.Fields{}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if jp, ok := findJobPosting([]byte(s.Text())); ok {
			fields = jp.fields()
			return false
		}
		return true
	})

	if !fields.Has(model.FieldTitle) {
		fields[model.FieldTitle] = metaContent(doc, "og:title")
	}
	if !fields.Has(model.FieldDescriptionText) {
		fields[model.FieldDescriptionText] = metaContent(doc, "og:description", "description")
	}
	fields = fields.NonEmpty()

	if len(fields) == 0 {
		body := strings.ToLower(doc.Find("body").Text())
		for _, m := range goneMarkers {
			if strings.Contains(body, m) {
				return nil, &model.FetchError{Reason: model.FetchNotFound, URL: rawURL, StatusCode: http.StatusOK, Err: fmt.Errorf("page says %q", m)}
			}
		}
		for _, m := range blockMarkers {
			if strings.Contains(body, m) {
				return nil, &model.FetchError{Reason: model.FetchOther, URL: rawURL, StatusCode: http.StatusOK, Err: fmt.Errorf("blocked: page says %q", m)}
			}
		}
	}
	return fields, nil
}

func metaContent(doc *goquery.Document, names ...string) string {
	for _, n := range names {
		sel := fmt.Sprintf(`meta[property="%s"], meta[name="%s"]`, n, n)
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// jobPosting is the subset of schema.org/JobPosting we read. Several
// properties may be an object or an array, so they stay raw until used.
type jobPosting struct {
	Type               json.RawMessage `json:"@type"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	DatePosted         string          `json:"datePosted"`
	EmploymentType     json.RawMessage `json:"employmentType"`
	HiringOrganization json.RawMessage `json:"hiringOrganization"`
	JobLocation        json.RawMessage `json:"jobLocation"`
	BaseSalary         json.RawMessage `json:"baseSalary"`
	Graph              []jobPosting    `json:"@graph"`
}

type jobLocation struct {
	Address struct {
		Locality string `json:"addressLocality"`
		Region   string `json:"addressRegion"`
	} `json:"address"`
}

type monetaryAmount struct {
	Currency string `json:"currency"`
	Value    struct {
		Value    json.Number `json:"value"`
		MinValue json.Number `json:"minValue"`
		MaxValue json.Number `json:"maxValue"`
		UnitText string      `json:"unitText"`
	} `json:"value"`
}

// findJobPosting looks for a JobPosting in a JSON-LD block, which may be a
// single object, an array or an @graph container.
func findJobPosting(data []byte) (jobPosting, bool) {
	var many []jobPosting
	if err := json.Unmarshal(data, &many); err != nil {
		var one jobPosting
		if err := json.Unmarshal(data, &one); err != nil {
			return jobPosting{}, false
		}
		many = []jobPosting{one}
	}
	for _, jp := range many {
		if jp.isJobPosting() {
			return jp, true
		}
		for _, g := range jp.Graph {
			if g.isJobPosting() {
				return g, true
			}
		}
	}
	return jobPosting{}, false
}

func (jp jobPosting) isJobPosting() bool {
	for _, t := range stringOrList(jp.Type) {
		if t == "JobPosting" {
			return true
		}
	}
	return false
}

func (jp jobPosting) fields() model.Fields {
	f := model.Fields{
		model.FieldTitle:           strings.TrimSpace(jp.Title),
		model.FieldDescriptionText: extractText(jp.Description),
		model.FieldPostedDate:      dateOnly(jp.DatePosted),
	}

	if types := stringOrList(jp.EmploymentType); len(types) > 0 {
		f[model.FieldContractType] = model.NormalizeContractType(types[0])
	}

	var org struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(jp.HiringOrganization, &org) == nil {
		f[model.FieldCompany] = strings.TrimSpace(org.Name)
	}

	var locs []jobLocation
	if json.Unmarshal(jp.JobLocation, &locs) != nil {
		var one jobLocation
		if json.Unmarshal(jp.JobLocation, &one) == nil {
			locs = []jobLocation{one}
		}
	}
	if len(locs) > 0 {
		f[model.FieldCity] = strings.TrimSpace(locs[0].Address.Locality)
		f[model.FieldRegion] = strings.TrimSpace(locs[0].Address.Region)
	}

	var salary monetaryAmount
	if json.Unmarshal(jp.BaseSalary, &salary) == nil {
		f[model.FieldSalary] = formatSalary(salary)
	}
	return f.NonEmpty()
}

func formatSalary(m monetaryAmount) string {
	v := m.Value
	var amount string
	switch {
	case v.MinValue != "" && v.MaxValue != "":
		amount = string(v.MinValue) + "-" + string(v.MaxValue)
	case v.Value != "":
		amount = string(v.Value)
	case v.MinValue != "":
		amount = string(v.MinValue)
	default:
		return ""
	}
	parts := []string{amount}
	if m.Currency != "" {
		parts = append(parts, m.Currency)
	}
	if v.UnitText != "" {
		parts = append(parts, "/"+strings.ToLower(v.UnitText))
	}
	return strings.Join(parts, " ")
}

func stringOrList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return []string{one}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	return nil
}

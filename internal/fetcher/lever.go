package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/jobintake/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever posting.
type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverPostingResponse represents a single Lever posting.
type leverPostingResponse struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Description      string          `json:"description"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverFetcher reads posting details from the Lever public postings API.
type LeverFetcher struct {
	baseURL string
	client  *http.Client
}

// NewLeverFetcher creates a fetcher for Lever-hosted postings.
func NewLeverFetcher(client *http.Client) *LeverFetcher {
	return &LeverFetcher{baseURL: leverBaseURL, client: client}
}

// leverPosting recognises jobs.lever.co/<company>/<id>.
func leverPosting(u *url.URL) (company, id string, ok bool) {
	if strings.ToLower(u.Host) != "jobs.lever.co" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (f *LeverFetcher) fetch(ctx context.Context, rawURL, company, id string) (model.Fields, error) {
	apiURL := fmt.Sprintf("%s/%s/%s?mode=json", f.baseURL, company, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("lever fetch for %s: %w", company, err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("lever fetch for %s: %w", company, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(rawURL, resp)
	}

	var lp leverPostingResponse
	if err := json.NewDecoder(resp.Body).Decode(&lp); err != nil {
		return nil, otherError(rawURL, fmt.Errorf("lever fetch for %s: %w", company, err))
	}

	// Prefer allLocations if available, fall back to location.
	location := lp.Categories.Location
	if len(lp.Categories.AllLocations) > 0 {
		location = strings.Join(lp.Categories.AllLocations, ", ")
	}

	description := lp.DescriptionPlain
	if description == "" {
		description = extractText(lp.Description)
	}

	fields := model.Fields{
		model.FieldTitle:           lp.Text,
		model.FieldCompany:         company,
		model.FieldCity:            location,
		model.FieldContractType:    model.NormalizeContractType(lp.Categories.Commitment),
		model.FieldDescriptionText: strings.TrimSpace(description),
	}
	// createdAt is Unix milliseconds.
	if lp.CreatedAt > 0 {
		fields[model.FieldPostedDate] = time.UnixMilli(lp.CreatedAt).UTC().Format(model.DateLayout)
	}
	return fields.NonEmpty(), nil
}

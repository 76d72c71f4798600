package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/jobintake/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJobResponse is the Greenhouse single-job API payload.
type greenhouseJobResponse struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
	Content     string             `json:"content"`
	CompanyName string             `json:"company_name"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// GreenhouseFetcher reads job details from the Greenhouse public boards API.
type GreenhouseFetcher struct {
	baseURL string
	client  *http.Client
}

// NewGreenhouseFetcher creates a fetcher for Greenhouse-hosted postings.
func NewGreenhouseFetcher(client *http.Client) *GreenhouseFetcher {
	return &GreenhouseFetcher{baseURL: greenhouseBaseURL, client: client}
}

// greenhouseJob recognises boards.greenhouse.io/<board>/jobs/<id> and the
// job-boards variant.
func greenhouseJob(u *url.URL) (board, id string, ok bool) {
	host := strings.ToLower(u.Host)
	if host != "boards.greenhouse.io" && host != "job-boards.greenhouse.io" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[1] != "jobs" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

func (f *GreenhouseFetcher) fetch(ctx context.Context, rawURL, board, id string) (model.Fields, error) {
	apiURL := fmt.Sprintf("%s/%s/jobs/%s", f.baseURL, board, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("greenhouse fetch for %s: %w", board, err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("greenhouse fetch for %s: %w", board, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(rawURL, resp)
	}

	var gj greenhouseJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&gj); err != nil {
		return nil, otherError(rawURL, fmt.Errorf("greenhouse fetch for %s: %w", board, err))
	}

	fields := model.Fields{
		model.FieldTitle:           gj.Title,
		model.FieldCompany:         gj.CompanyName,
		model.FieldCity:            gj.Location.Name,
		model.FieldDescriptionText: extractText(gj.Content),
		model.FieldPostedDate:      dateOnly(gj.UpdatedAt),
	}
	return fields.NonEmpty(), nil
}

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

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby board API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	EmploymentType   string `json:"employmentType"`
	DescriptionPlain string `json:"descriptionPlain"`
	PublishedAt      string `json:"publishedAt"`
	JobURL           string `json:"jobUrl"`
	Compensation     struct {
		Summary string `json:"compensationTierSummary"`
	} `json:"compensation"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

var ashbyEmployment = map[string]string{
	"FullTime":  "CDI",
	"Intern":    "Internship",
	"Contract":  "Freelance",
	"Temporary": "CDD",
}

// AshbyFetcher reads posting details from the Ashby public job board API.
// The API only lists whole boards, so a posting is looked up by id.
type AshbyFetcher struct {
	baseURL string
	client  *http.Client
}

// NewAshbyFetcher creates a fetcher for Ashby-hosted postings.
func NewAshbyFetcher(client *http.Client) *AshbyFetcher {
	return &AshbyFetcher{baseURL: ashbyBaseURL, client: client}
}

// ashbyPosting recognises jobs.ashbyhq.com/<board>/<id>.
func ashbyPosting(u *url.URL) (board, id string, ok bool) {
	if strings.ToLower(u.Host) != "jobs.ashbyhq.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (f *AshbyFetcher) fetch(ctx context.Context, rawURL, board, id string) (model.Fields, error) {
	apiURL := fmt.Sprintf("%s/%s?includeCompensation=true", f.baseURL, board)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("ashby fetch for %s: %w", board, err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, otherError(rawURL, fmt.Errorf("ashby fetch for %s: %w", board, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(rawURL, resp)
	}

	var ar ashbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, otherError(rawURL, fmt.Errorf("ashby fetch for %s: %w", board, err))
	}

	for _, j := range ar.Jobs {
		if !strings.EqualFold(j.ID, id) {
			continue
		}
		fields := model.Fields{
			model.FieldTitle:           j.Title,
			model.FieldCompany:         board,
			model.FieldCity:            j.Location,
			model.FieldSalary:          j.Compensation.Summary,
			model.FieldContractType:    model.NormalizeContractType(ashbyEmployment[j.EmploymentType]),
			model.FieldDescriptionText: strings.Join(strings.Fields(j.DescriptionPlain), " "),
			model.FieldPostedDate:      dateOnly(j.PublishedAt),
		}
		return fields.NonEmpty(), nil
	}

	return nil, &model.FetchError{
		Reason: model.FetchNotFound,
		URL:    rawURL,
		Err:    fmt.Errorf("posting %s no longer listed on ashby board %s", id, board),
	}
}

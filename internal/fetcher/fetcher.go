// Package fetcher retrieves offer pages and turns them into field bags for
// the enrichment run.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amishk599/jobintake/internal/model"
)

// classifyStatus maps a non-200 response onto a FetchError. 429 and 5xx
// carry a model.HTTPError so the retry decorator can back off.
func classifyStatus(rawURL string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &model.FetchError{
			Reason:     model.FetchNotFound,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("posting no longer exists"),
		}
	default:
		return &model.FetchError{
			Reason:     model.FetchOther,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err: &model.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			},
		}
	}
}

func otherError(rawURL string, err error) error {
	return &model.FetchError{Reason: model.FetchOther, URL: rawURL, Err: err}
}

// Router sends Greenhouse, Lever and Ashby job URLs to their public APIs and
// every other URL to the HTML fetcher.
type Router struct {
	greenhouse *GreenhouseFetcher
	lever      *LeverFetcher
	ashby      *AshbyFetcher
	page       model.PageFetcher
}

var _ model.PageFetcher = (*Router)(nil)

// NewRouter builds the default fetcher stack around client.
func NewRouter(client *http.Client) *Router {
	return &Router{
		greenhouse: NewGreenhouseFetcher(client),
		lever:      NewLeverFetcher(client),
		ashby:      NewAshbyFetcher(client),
		page:       NewHTTPFetcher(client),
	}
}

// FetchOfferContent dispatches on the URL host.
func (r *Router) FetchOfferContent(ctx context.Context, rawURL string) (model.Fields, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, otherError(rawURL, fmt.Errorf("invalid url"))
	}
	if board, id, ok := greenhouseJob(u); ok {
		return r.greenhouse.fetch(ctx, rawURL, board, id)
	}
	if company, id, ok := leverPosting(u); ok {
		return r.lever.fetch(ctx, rawURL, company, id)
	}
	if board, id, ok := ashbyPosting(u); ok {
		return r.ashby.fetch(ctx, rawURL, board, id)
	}
	return r.page.FetchOfferContent(ctx, rawURL)
}

package model

import (
	"context"
	"strings"
	"time"
)

// RunKind names the entry point that produced a summary.
type RunKind string

const (
	RunAudit      RunKind = "audit"
	RunIngestion  RunKind = "ingestion"
	RunEnrichment RunKind = "enrichment"
)

// Correction records one drift demotion applied during dispatch.
type Correction struct {
	SenderIdentity string     `json:"sender_identity"`
	PreviousName   SourceName `json:"previous_name"`
	NewName        SourceName `json:"new_name"`
}

// RunSummary is the operator-facing report of one run.
type RunSummary struct {
	RunID                string         `json:"run_id"`
	Kind                 RunKind        `json:"kind"`
	StartedAt            time.Time      `json:"started_at"`
	FinishedAt           time.Time      `json:"finished_at"`
	SourcesCreated       int            `json:"sources_created"`
	Corrections          []Correction   `json:"corrections"`
	Processed            int            `json:"processed"`
	Archived             int            `json:"archived"`
	Samples              int            `json:"samples"`
	OffersCreated        int            `json:"offers_created"`
	OffersAlreadyPresent int            `json:"offers_already_present"`
	Failed               int            `json:"failed"`
	Transitions          map[Status]int `json:"transitions,omitempty"`
	Messages             []string       `json:"messages"`
	Aborted              string         `json:"aborted,omitempty"`
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// PageFetcher retrieves the public page of an offer and extracts its fields.
// Failures are returned as *FetchError.
type PageFetcher interface {
	FetchOfferContent(ctx context.Context, url string) (Fields, error)
}

// Notifier delivers a run summary to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}

// contractTypes maps lowercase spellings onto the canonical categories.
var contractTypes = map[string]string{
	"cdi":            "CDI",
	"full_time":      "CDI",
	"full-time":      "CDI",
	"permanent":      "CDI",
	"cdd":            "CDD",
	"temporary":      "CDD",
	"freelance":      "Freelance",
	"contractor":     "Freelance",
	"indépendant":    "Freelance",
	"internship":     "Internship",
	"intern":         "Internship",
	"stage":          "Internship",
	"apprenticeship": "Apprenticeship",
	"alternance":     "Apprenticeship",
	"interim":        "Interim",
	"intérim":        "Interim",
}

// NormalizeContractType maps common spellings onto the canonical contract
// categories. Unrecognised values are returned trimmed, so a backend can
// learn them.
func NormalizeContractType(s string) string {
	s = strings.TrimSpace(s)
	if c, ok := contractTypes[strings.ToLower(s)]; ok {
		return c
	}
	return s
}

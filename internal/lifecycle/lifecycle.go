// Package lifecycle computes offer status transitions from enrichment outcomes.
package lifecycle

import (
	"fmt"

	"github.com/amishk599/jobintake/internal/model"
)

// Outcome is the result of one enrichment attempt.
type Outcome struct {
	Success bool
	Fields  model.Fields      // set on success, possibly partial
	Reason  model.FetchReason // set on failure
	Err     error
}

// Succeeded wraps a fetched field bag.
func Succeeded(fields model.Fields) Outcome {
	return Outcome{Success: true, Fields: fields}
}

// Failed wraps a classified failure.
func Failed(reason model.FetchReason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// OutcomeFromFetch adapts a page fetcher's return values.
func OutcomeFromFetch(fields model.Fields, err error) Outcome {
	if err != nil {
		return Failed(model.ReasonOf(err), err)
	}
	return Succeeded(fields)
}

// descriptiveFields count toward sufficiency besides the title.
var descriptiveFields = []model.Field{
	model.FieldCompany,
	model.FieldCity,
	model.FieldRegion,
	model.FieldSalary,
	model.FieldContractType,
	model.FieldPostedDate,
}

// Rule holds the sufficiency threshold: a description plus either a title or
// at least MinOtherFields descriptive fields.
type Rule struct {
	MinOtherFields int
}

// DefaultRule requires a title or one other descriptive field.
func DefaultRule() Rule { return Rule{MinOtherFields: 1} }

// Sufficient reports whether known satisfies the rule.
func (r Rule) Sufficient(known model.Fields) bool {
	if !known.Has(model.FieldDescriptionText) {
		return false
	}
	if known.Has(model.FieldTitle) {
		return true
	}
	need := r.MinOtherFields
	if need < 1 {
		need = 1
	}
	n := 0
	for _, f := range descriptiveFields {
		if known.Has(f) {
			n++
		}
	}
	return n >= need
}

// Transition is the computed next state of one offer.
type Transition struct {
	From  model.Status
	To    model.Status
	Patch model.Patch
	// Message is non-empty for every outcome that is not a full success.
	Message string
}

// Changed reports whether anything must be written.
func (t Transition) Changed() bool { return !t.Patch.Empty() }

// Evaluate applies one enrichment outcome to offer. Fields already on the
// offer count toward sufficiency together with the fetched ones.
func Evaluate(offer model.Offer, out Outcome, rule Rule) Transition {
	tr := Transition{From: offer.Status, To: offer.Status}
	id := offer.Key

	if !out.Success {
		switch out.Reason {
		case model.FetchNotFound:
			tr.To = model.StatusExpired
			tr.Message = fmt.Sprintf("%s: expired upstream: %v", id, out.Err)
		default:
			tr.To = model.StatusIgnored
			tr.Message = fmt.Sprintf("%s: fetch failed: %v", id, out.Err)
		}
		tr.Patch = model.Patch{Status: tr.To}
		return tr
	}

	fetched := out.Fields.NonEmpty()
	if len(fetched) == 0 {
		tr.To = model.StatusIgnored
		tr.Patch = model.Patch{Status: tr.To}
		tr.Message = fmt.Sprintf("%s: page returned no usable fields", id)
		return tr
	}

	if !fetched.Has(model.FieldDescriptionText) {
		tr.Patch = model.Patch{Fields: fetched}
		tr.Message = fmt.Sprintf("%s: no description text found", id)
		return tr
	}

	if rule.Sufficient(offer.Fields().Merge(fetched)) {
		tr.To = model.StatusPendingAnalysis
		tr.Patch = model.Patch{Fields: fetched, Status: tr.To}
		return tr
	}

	tr.Patch = model.Patch{Fields: model.Fields{model.FieldDescriptionText: fetched[model.FieldDescriptionText]}}
	tr.Message = fmt.Sprintf("%s: description without enough metadata, kept for retry", id)
	return tr
}

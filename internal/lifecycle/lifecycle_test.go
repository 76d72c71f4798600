package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amishk599/jobintake/internal/model"
)

func pending(key string) model.Offer {
	return model.Offer{Key: key, Status: model.StatusPendingCompletion}
}

func TestEvaluate_SuccessWithTitle(t *testing.T) {
	fields := model.Fields{model.FieldDescriptionText: "Full role description", model.FieldTitle: "Developer"}

	tr := Evaluate(pending("o1"), Succeeded(fields), DefaultRule())

	assert.Equal(t, model.StatusPendingAnalysis, tr.To)
	assert.Equal(t, model.Patch{Fields: fields, Status: model.StatusPendingAnalysis}, tr.Patch)
	assert.Empty(t, tr.Message)
}

func TestEvaluate_DescriptionOnly(t *testing.T) {
	tr := Evaluate(pending("o2"), Succeeded(model.Fields{model.FieldDescriptionText: "short"}), DefaultRule())

	assert.Equal(t, model.StatusPendingCompletion, tr.To)
	assert.Equal(t, model.Patch{Fields: model.Fields{model.FieldDescriptionText: "short"}}, tr.Patch)
	assert.NotEmpty(t, tr.Message)
}

func TestEvaluate_NotFound(t *testing.T) {
	err := &model.FetchError{Reason: model.FetchNotFound, URL: "https://x", StatusCode: 404, Err: errors.New("gone")}

	tr := Evaluate(pending("o3"), OutcomeFromFetch(nil, err), DefaultRule())

	assert.Equal(t, model.StatusExpired, tr.To)
	assert.Equal(t, model.Patch{Status: model.StatusExpired}, tr.Patch)
	assert.Contains(t, tr.Message, "o3")
}

func TestEvaluate_OtherFailure(t *testing.T) {
	err := &model.FetchError{Reason: model.FetchOther, URL: "https://x", StatusCode: 403, Err: errors.New("blocked")}

	tr := Evaluate(pending("o4"), OutcomeFromFetch(nil, err), DefaultRule())

	assert.Equal(t, model.StatusIgnored, tr.To)
	assert.Equal(t, model.Patch{Status: model.StatusIgnored}, tr.Patch)
}

func TestEvaluate_UnclassifiedErrorIsOther(t *testing.T) {
	tr := Evaluate(pending("o5"), OutcomeFromFetch(nil, errors.New("timeout")), DefaultRule())
	assert.Equal(t, model.StatusIgnored, tr.To)
}

func TestEvaluate_EmptySuccessIsIgnored(t *testing.T) {
	tr := Evaluate(pending("o6"), Succeeded(model.Fields{model.FieldTitle: ""}), DefaultRule())

	assert.Equal(t, model.StatusIgnored, tr.To)
	assert.Equal(t, model.Patch{Status: model.StatusIgnored}, tr.Patch)
	assert.NotEmpty(t, tr.Message)
}

func TestEvaluate_CreationFieldsCount(t *testing.T) {
	o := pending("o7")
	o.Title = "Backend engineer"
	o.City = "Lyon"

	tr := Evaluate(o, Succeeded(model.Fields{model.FieldDescriptionText: "We are hiring"}), DefaultRule())

	assert.Equal(t, model.StatusPendingAnalysis, tr.To)
	assert.Equal(t, model.Fields{model.FieldDescriptionText: "We are hiring"}, tr.Patch.Fields)
}

func TestEvaluate_OtherDescriptiveFieldSuffices(t *testing.T) {
	fields := model.Fields{model.FieldDescriptionText: "desc", model.FieldCompany: "Acme"}

	tr := Evaluate(pending("o8"), Succeeded(fields), DefaultRule())

	assert.Equal(t, model.StatusPendingAnalysis, tr.To)
}

func TestEvaluate_StricterRule(t *testing.T) {
	fields := model.Fields{model.FieldDescriptionText: "desc", model.FieldCompany: "Acme"}

	tr := Evaluate(pending("o9"), Succeeded(fields), Rule{MinOtherFields: 2})
	assert.Equal(t, model.StatusPendingCompletion, tr.To)
	assert.Equal(t, model.Fields{model.FieldDescriptionText: "desc"}, tr.Patch.Fields)

	fields[model.FieldCity] = "Paris"
	tr = Evaluate(pending("o9"), Succeeded(fields), Rule{MinOtherFields: 2})
	assert.Equal(t, model.StatusPendingAnalysis, tr.To)
}

func TestEvaluate_FieldsWithoutDescription(t *testing.T) {
	fields := model.Fields{model.FieldTitle: "Developer", model.FieldSalary: ""}

	tr := Evaluate(pending("o10"), Succeeded(fields), DefaultRule())

	assert.Equal(t, model.StatusPendingCompletion, tr.To)
	assert.Equal(t, model.Patch{Fields: model.Fields{model.FieldTitle: "Developer"}}, tr.Patch)
	assert.NotEmpty(t, tr.Message)
}

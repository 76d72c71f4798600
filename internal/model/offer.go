package model

import "time"

// Status is the enrichment lifecycle state of an offer.
type Status string

const (
	StatusPendingCompletion Status = "PendingCompletion"
	StatusPendingAnalysis   Status = "PendingAnalysis"
	StatusExpired           Status = "Expired"
	StatusIgnored           Status = "Ignored"
)

// IsTerminal reports whether offers in s are excluded from enrichment.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusIgnored
}

// Field names a mutable offer attribute. Values double as column names.
type Field string

const (
	FieldURL             Field = "url"
	FieldPostedDate      Field = "posted_date"
	FieldAddedDate       Field = "added_date"
	FieldTitle           Field = "title"
	FieldCompany         Field = "company"
	FieldCity            Field = "city"
	FieldRegion          Field = "region"
	FieldSalary          Field = "salary"
	FieldContractType    Field = "contract_type"
	FieldDescriptionText Field = "description_text"
)

// MutableFields lists every patchable field in column order.
var MutableFields = []Field{
	FieldURL,
	FieldPostedDate,
	FieldAddedDate,
	FieldTitle,
	FieldCompany,
	FieldCity,
	FieldRegion,
	FieldSalary,
	FieldContractType,
	FieldDescriptionText,
}

// DateLayout is the wire encoding of date fields inside Fields.
const DateLayout = "2006-01-02"

// Fields is a bag of field values, used for extractor output, fetch results
// and patches. An empty string means "no value".
type Fields map[Field]string

// NonEmpty returns the subset of f whose values are not blank.
func (f Fields) NonEmpty() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Has reports whether field carries a non-empty value.
func (f Fields) Has(field Field) bool { return f[field] != "" }

// Merge returns a new bag holding f overlaid with the non-empty values of other.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Without returns a copy of f minus field.
func (f Fields) Without(field Field) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if k != field {
			out[k] = v
		}
	}
	return out
}

// Offer is one job posting instance.
type Offer struct {
	Key             string // resolved natural key
	ExternalID      string
	URL             string
	PostedDate      *time.Time
	AddedDate       *time.Time
	Title           string
	Company         string
	City            string
	Region          string
	Salary          string
	ContractType    string
	DescriptionText string
	Status          Status
	SourceRef       SourceName
	UpdatedAt       time.Time
}

// Fields flattens the mutable attributes of o into a field bag.
func (o Offer) Fields() Fields {
	f := Fields{
		FieldURL:             o.URL,
		FieldTitle:           o.Title,
		FieldCompany:         o.Company,
		FieldCity:            o.City,
		FieldRegion:          o.Region,
		FieldSalary:          o.Salary,
		FieldContractType:    o.ContractType,
		FieldDescriptionText: o.DescriptionText,
	}
	if o.PostedDate != nil {
		f[FieldPostedDate] = o.PostedDate.Format(DateLayout)
	}
	if o.AddedDate != nil {
		f[FieldAddedDate] = o.AddedDate.Format(DateLayout)
	}
	return f
}

// Apply copies the non-empty values of f onto o. Blank values never erase
// what o already holds. Unparseable dates are skipped.
func (o *Offer) Apply(f Fields) {
	for field, v := range f {
		if v == "" {
			continue
		}
		switch field {
		case FieldURL:
			o.URL = v
		case FieldTitle:
			o.Title = v
		case FieldCompany:
			o.Company = v
		case FieldCity:
			o.City = v
		case FieldRegion:
			o.Region = v
		case FieldSalary:
			o.Salary = v
		case FieldContractType:
			o.ContractType = v
		case FieldDescriptionText:
			o.DescriptionText = v
		case FieldPostedDate:
			if t, err := time.Parse(DateLayout, v); err == nil {
				o.PostedDate = &t
			}
		case FieldAddedDate:
			if t, err := time.Parse(DateLayout, v); err == nil {
				o.AddedDate = &t
			}
		}
	}
}

// Patch is a partial update: only the listed fields and, when set, the status.
type Patch struct {
	Fields Fields
	Status Status // empty leaves the status unchanged
}

// Empty reports whether the patch would write nothing.
func (p Patch) Empty() bool {
	return len(p.Fields.NonEmpty()) == 0 && p.Status == ""
}

// InboundItem is one raw unit to classify: an email, a list-export file or a
// feed entry. It only lives for the duration of a run.
type InboundItem struct {
	ID             string
	SenderIdentity string
	RawPayload     []byte
	ReceivedAt     time.Time
}

// Clear blanks a single field on o.
func (o *Offer) Clear(field Field) {
	switch field {
	case FieldURL:
		o.URL = ""
	case FieldTitle:
		o.Title = ""
	case FieldCompany:
		o.Company = ""
	case FieldCity:
		o.City = ""
	case FieldRegion:
		o.Region = ""
	case FieldSalary:
		o.Salary = ""
	case FieldContractType:
		o.ContractType = ""
	case FieldDescriptionText:
		o.DescriptionText = ""
	case FieldPostedDate:
		o.PostedDate = nil
	case FieldAddedDate:
		o.AddedDate = nil
	}
}

// Draft is one offer as produced by an extractor, before it is resolved
// against the store.
type Draft struct {
	ExternalID string
	Fields     Fields
}

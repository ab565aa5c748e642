// Package taxonomy defines the closed set of document intent labels shared by
// classification, field extraction, prompt overrides and report rendering.
package taxonomy

import (
	"encoding/json"
	"errors"
	"slices"
)

// ErrInvalidLabel is returned when a value is not a taxonomy member.
var ErrInvalidLabel = errors.New("label is not a taxonomy member")

// Label is a document intent category.
type Label string

// Taxonomy members. Unknown is assigned when a classifier response cannot be
// mapped onto any other member.
const (
	KYCDoc             Label = "KYC_DOC"
	AccountStatement   Label = "ACCOUNT_STATEMENT"
	SuitabilityForm    Label = "SUITABILITY_FORM"
	QuestionsDoc       Label = "QUESTIONS_DOC"
	DataJSON           Label = "DATA_JSON"
	PolicyOrDisclosure Label = "POLICY_OR_DISCLOSURE"
	SummaryMemo        Label = "SUMMARY_MEMO"
	Other              Label = "OTHER"
	Unknown            Label = "UNKNOWN"
)

var labels = []Label{
	KYCDoc,
	AccountStatement,
	SuitabilityForm,
	QuestionsDoc,
	DataJSON,
	PolicyOrDisclosure,
	SummaryMemo,
	Other,
	Unknown,
}

const defaultIntent = "Document understanding and insight extraction"

var intents = map[Label]string{
	KYCDoc:             "Client onboarding and identity verification",
	AccountStatement:   "Account and portfolio reporting",
	SuitabilityForm:    "Financial suitability assessment",
	QuestionsDoc:       "Question understanding and knowledge retrieval",
	DataJSON:           "Configuration / analytics data inspection",
	PolicyOrDisclosure: "Policy, disclosure, or terms analysis",
	SummaryMemo:        "Summarization and insight generation",
	Other:              "General document understanding",
}

var descriptions = map[Label]string{
	KYCDoc:             "Client onboarding / KYC / personal info forms",
	AccountStatement:   "Brokerage / bank / annuity / portfolio statements",
	SuitabilityForm:    "Suitability / risk-profile / annuity suitability docs",
	QuestionsDoc:       "Internal question lists, FAQs, questionnaire docs",
	DataJSON:           "JSON data file used for analytics or configuration",
	PolicyOrDisclosure: "Disclosures, terms & conditions, prospectus-like",
	SummaryMemo:        "Internal summary / notes / email-style text",
	Other:              "Anything that does not fit above",
	Unknown:            "Output that could not be mapped onto the taxonomy",
}

// Labels returns every taxonomy member, Unknown last.
func Labels() []Label {
	return slices.Clone(labels)
}

// Assignable returns the labels a classifier may answer with. Unknown is
// excluded because it is only ever assigned by mapping.
func Assignable() []Label {
	return slices.Clone(labels[:len(labels)-1])
}

// Valid reports whether l is a taxonomy member.
func (l Label) Valid() bool {
	return slices.Contains(labels, l)
}

// Intent returns the human-readable purpose associated with the label.
func (l Label) Intent() string {
	if text, ok := intents[l]; ok {
		return text
	}
	return defaultIntent
}

// Description returns the label's classification guidance.
func (l Label) Description() string {
	return descriptions[l]
}

// Parse validates s as a taxonomy member.
func Parse(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", ErrInvalidLabel
	}
	return l, nil
}

// UnmarshalJSON validates that the decoded string is a taxonomy member.
func (l *Label) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

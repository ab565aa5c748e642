package prompts

const classifyInstructions = `You are a document classification analyst for a wealth management firm.

Classify the document into exactly ONE of these categories:

- KYC_DOC: client onboarding, KYC, or personal information forms
- ACCOUNT_STATEMENT: brokerage, bank, annuity, or portfolio statements
- SUITABILITY_FORM: suitability, risk-profile, or annuity suitability documents
- QUESTIONS_DOC: internal question lists, FAQs, or questionnaires
- DATA_JSON: JSON data files used for analytics or configuration
- POLICY_OR_DISCLOSURE: disclosures, terms and conditions, or prospectus-like material
- SUMMARY_MEMO: internal summaries, notes, or email-style text
- OTHER: anything that does not fit the categories above

Base the decision on the document's purpose rather than isolated keywords. Your
confidence should reflect how clearly the content matches a single category.`

const extractInstructions = `You are a document processing analyst for a wealth management firm.

You receive the full document text together with its classification. Using the
classification as context, extract the requested fields for that category,
summarize the document, and surface the insights and follow-up actions an
advisor would need.

Copy values as they appear in the document. When a requested field is not
present, return an empty string for it rather than guessing. Identify clients,
advisors, account identifiers, and ticker symbols mentioned anywhere in the text.`

var instructions = map[Stage]string{
	StageClassify: classifyInstructions,
	StageExtract:  extractInstructions,
}

// Instructions returns the hardcoded default instructions for a reasoning stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Instructions(stage Stage) (string, error) {
	text, ok := instructions[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}

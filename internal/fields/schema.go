package fields

import (
	"slices"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// NotFound marks a schema field the document does not provide.
const NotFound = "Not found"

var generic = []string{"title", "date", "parties"}

var schemas = map[taxonomy.Label][]string{
	taxonomy.KYCDoc: {
		"client_name",
		"date_of_birth",
		"address",
		"risk_tolerance",
		"investment_objective",
		"advisor",
	},
	taxonomy.AccountStatement: {
		"client",
		"account_number",
		"period",
		"total_value",
		"cash_balance",
		"holdings",
	},
	taxonomy.SuitabilityForm: {
		"client",
		"product_type",
		"risk_profile",
		"time_horizon",
		"liquidity_needs",
		"advisor",
	},
	taxonomy.QuestionsDoc: {
		"main_questions",
		"themes",
		"requested_by",
	},
	taxonomy.DataJSON: {
		"structure",
		"fields",
		"record_count",
	},
	taxonomy.PolicyOrDisclosure: {
		"product_name",
		"issuer",
		"key_risks",
		"fees",
		"effective_date",
	},
	taxonomy.SummaryMemo: {
		"client",
		"advisor",
		"date",
		"main_points",
		"action_items",
		"owners",
	},
	taxonomy.Other: {
		"title",
		"date",
		"parties",
		"main_points",
	},
}

// Schema returns the ordered field keys for label. UNKNOWN and any label
// without a dedicated schema use the generic title, date and parties.
func Schema(label taxonomy.Label) []string {
	if keys, ok := schemas[label]; ok {
		return slices.Clone(keys)
	}
	return slices.Clone(generic)
}

// responseSchema is the JSON schema for an extraction response listing the
// label's keys as known field properties.
func responseSchema(keys []string) map[string]any {
	value := map[string]any{
		"type": []string{"string", "number", "boolean", "array", "object", "null"},
	}
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = value
	}

	list := map[string]any{"type": []string{"array", "null"}}

	return map[string]any{
		"type":     "object",
		"required": []string{"summary", "fields"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type":       "object",
				"properties": props,
			},
			"insights":     list,
			"action_items": list,
			"questions":    list,
			"themes":       list,
			"key_entities": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"clients":  list,
					"advisors": list,
					"accounts": list,
					"tickers":  list,
				},
			},
		},
	}
}

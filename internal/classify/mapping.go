package classify

import (
	"strings"
	"unicode"

	"github.com/JaimeStill/docintel/internal/taxonomy"
)

// maxDistance bounds the edit distance accepted as a near match.
const maxDistance = 2

var synonyms = map[string]taxonomy.Label{
	"KYC":                 taxonomy.KYCDoc,
	"KYC_FORM":            taxonomy.KYCDoc,
	"ONBOARDING":          taxonomy.KYCDoc,
	"CLIENT_ONBOARDING":   taxonomy.KYCDoc,
	"STATEMENT":           taxonomy.AccountStatement,
	"BANK_STATEMENT":      taxonomy.AccountStatement,
	"BROKERAGE_STATEMENT": taxonomy.AccountStatement,
	"PORTFOLIO_STATEMENT": taxonomy.AccountStatement,
	"SUITABILITY":         taxonomy.SuitabilityForm,
	"SUITABILITY_DOC":     taxonomy.SuitabilityForm,
	"RISK_PROFILE":        taxonomy.SuitabilityForm,
	"QUESTIONS":           taxonomy.QuestionsDoc,
	"QUESTIONNAIRE":       taxonomy.QuestionsDoc,
	"FAQ":                 taxonomy.QuestionsDoc,
	"JSON":                taxonomy.DataJSON,
	"DATA":                taxonomy.DataJSON,
	"JSON_DATA":           taxonomy.DataJSON,
	"POLICY":              taxonomy.PolicyOrDisclosure,
	"DISCLOSURE":          taxonomy.PolicyOrDisclosure,
	"POLICY_DISCLOSURE":   taxonomy.PolicyOrDisclosure,
	"TERMS":               taxonomy.PolicyOrDisclosure,
	"PROSPECTUS":          taxonomy.PolicyOrDisclosure,
	"MEMO":                taxonomy.SummaryMemo,
	"SUMMARY":             taxonomy.SummaryMemo,
	"NOTES":               taxonomy.SummaryMemo,
	"EMAIL":               taxonomy.SummaryMemo,
}

// Map assigns raw to a taxonomy label. An exact match keeps the reported
// confidence, as does a near match through normalization, a synonym, or an
// edit distance of at most two from a single closest label. Anything else,
// including an explicit UNKNOWN, maps to UNKNOWN with confidence 0.
func Map(raw string, confidence float64) Result {
	result := Result{
		Label:     taxonomy.Unknown,
		RawLabel:  raw,
		MatchedBy: MatchNone,
	}

	if l := taxonomy.Label(raw); l.Valid() {
		if l == taxonomy.Unknown {
			return result
		}
		result.Label = l
		result.MatchedBy = MatchExact
		result.Confidence = clamp(confidence)
		return result
	}

	if l, ok := near(raw); ok {
		result.Label = l
		result.MatchedBy = MatchNear
		result.Confidence = clamp(confidence)
	}
	return result
}

func near(raw string) (taxonomy.Label, bool) {
	n := normalize(raw)
	if n == "" {
		return "", false
	}

	if l := taxonomy.Label(n); l.Valid() && l != taxonomy.Unknown {
		return l, true
	}
	if l, ok := synonyms[n]; ok {
		return l, true
	}

	best := taxonomy.Label("")
	bestDist := maxDistance + 1
	tied := false
	for _, l := range taxonomy.Assignable() {
		d := levenshtein(n, string(l))
		switch {
		case d < bestDist:
			best, bestDist, tied = l, d, false
		case d == bestDist:
			tied = true
		}
	}
	if best == "" || tied {
		return "", false
	}
	return best, true
}

// normalize upper-cases s, turns separators into underscores and drops
// every other non-alphanumeric rune.
func normalize(s string) string {
	var sb strings.Builder
	pending := false
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pending = false
			sb.WriteRune(r)
		case r == '_' || r == '-' || r == '/' || r == '&' || unicode.IsSpace(r):
			pending = true
		}
	}
	return sb.String()
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}

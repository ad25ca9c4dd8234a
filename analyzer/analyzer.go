// Package analyzer classifies announcement titles against the keyword taxonomy.
// All matching is case-insensitive substring matching; there is no language model.
package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"listingwatch/config"
	"listingwatch/types"
)

// Supplementary info keys
const (
	InfoPercentage      = "percentage"
	InfoDilutionWarning = "dilution_warning"
	InfoValuationAnchor = "valuation_anchor"
)

const (
	dilutionWarningText = "稀释风险偏高"
	valuationAnchorText = "估值锚已出现"
)

var percentageRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

type category struct {
	eventType types.EventType
	keywords  []string // uppercased
}

// Analyzer is immutable after construction and safe for concurrent use
type Analyzer struct {
	categories        []category
	exclude           []string
	targets           []string
	priceRange        []string
	dilutionThreshold float64
}

// New precomputes the uppercased keyword tables of the taxonomy
func New(t config.Taxonomy) *Analyzer {
	a := &Analyzer{
		exclude:           upperAll(t.Exclude),
		targets:           upperAll(t.Targets),
		priceRange:        upperAll(t.PriceRangeKeywords),
		dilutionThreshold: t.DilutionThreshold,
	}
	for _, c := range t.Categories {
		a.categories = append(a.categories, category{eventType: c.Type, keywords: upperAll(c.Keywords)})
	}
	return a
}

// ContainsExcludeKeyword reports whether text carries any noise keyword
func (a *Analyzer) ContainsExcludeKeyword(text string) bool {
	return containsAny(strings.ToUpper(text), a.exclude)
}

// MatchesEntity reports whether text names the target issuer
func (a *Analyzer) MatchesEntity(text string) bool {
	return containsAny(strings.ToUpper(text), a.targets)
}

// IdentifyEventType returns the first category, in taxonomy order, with a
// keyword present in title or description.
func (a *Analyzer) IdentifyEventType(title, description string) (types.EventType, bool) {
	content := strings.ToUpper(title + " " + description)
	for _, c := range a.categories {
		if containsAny(content, c.keywords) {
			return c.eventType, true
		}
	}
	return "", false
}

// ExtractSupplementaryInfo pulls the first percentage figure and flags a
// price-range anchor. It never fails; no match yields an empty map.
func (a *Analyzer) ExtractSupplementaryInfo(text string) map[string]string {
	info := make(map[string]string)

	if m := percentageRe.FindStringSubmatch(text); m != nil {
		info[InfoPercentage] = m[1]
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil && pct >= a.dilutionThreshold {
			info[InfoDilutionWarning] = dilutionWarningText
		}
	}

	if containsAny(strings.ToUpper(text), a.priceRange) {
		info[InfoValuationAnchor] = valuationAnchorText
	}
	return info
}

func containsAny(upper string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

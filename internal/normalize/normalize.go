// Package normalize turns free-text product titles into canonical keys.
//
// Two modes exist because the two ingestion roles need different recall:
// Light keeps dosage digits and is used when a source's titles are already
// close to the canonical catalog; Aggressive strips dosage, packaging and
// form words for cross-vendor matching. The two must never be mixed within
// one matching decision.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// Mode selects which normalization a caller applies.
type Mode string

// Normalization modes.
const (
	ModeLight      Mode = "light"
	ModeAggressive Mode = "aggressive"
)

// Apply runs the normalization selected by mode.
func Apply(mode Mode, s string) string {
	if mode == ModeAggressive {
		return Aggressive(s)
	}
	return Light(s)
}

var (
	punctToSpace = regexp.MustCompile(`[-,/]`)

	// Parenthesized and bracketed segments carry packaging noise, never the
	// drug identity.
	bracketed = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// Token shapes dropped by aggressive normalization. Matching happens on
	// whole tokens after punctuation stripping, so these stay Unicode-safe
	// (Go's \b is ASCII-only and does not see Cyrillic word edges).
	numberToken  = regexp.MustCompile(`^\d+([.,]\d+)?$`)
	numUnitToken = regexp.MustCompile(`^\d+([.,]\d+)?(mg|ml|g|mcg|iu|мг|мл|г|мкг|ме|ед)$`)
	packToken    = regexp.MustCompile(`^(n|x|№)\d+$`)
)

// Form words, route qualifiers and bare units removed by aggressive
// normalization. Both English and Russian variants appear because the
// sources phrase titles either way.
var stopTokens = map[string]struct{}{
	// Pharmaceutical forms.
	"tablet": {}, "tablets": {}, "tab": {}, "capsule": {}, "capsules": {},
	"solution": {}, "ointment": {}, "gel": {}, "cream": {}, "powder": {},
	"suppository": {}, "suppositories": {}, "ampoule": {}, "ampoules": {},
	"spray": {}, "drops": {}, "syrup": {},
	"таб": {}, "табл": {}, "таблетки": {}, "таблетка": {},
	"капс": {}, "капсулы": {}, "капсула": {},
	"раствор": {}, "мазь": {}, "гель": {}, "крем": {}, "порошок": {},
	"свечи": {}, "суппозитории": {}, "ампулы": {}, "спрей": {},
	"капли": {}, "сироп": {},
	// Delivery-route qualifiers.
	"oral": {}, "nasal": {}, "topical": {}, "rectal": {}, "ophthalmic": {},
	"внутрь": {}, "наружный": {}, "наружного": {}, "назальный": {},
	"ректальные": {}, "глазные": {}, "применения": {}, "для": {},
	// Bare units and package words left behind once digits are gone.
	"mg": {}, "ml": {}, "g": {}, "mcg": {}, "iu": {},
	"мг": {}, "мл": {}, "г": {}, "мкг": {}, "ме": {}, "ед": {}, "шт": {},
}

// Light lowercases, replaces dashes/commas/slashes with spaces, strips
// everything except letters, digits and whitespace, and collapses runs of
// whitespace. Dosage digits survive.
func Light(s string) string {
	s = strings.ToLower(s)
	s = punctToSpace.ReplaceAllString(s, " ")
	s = stripNonAlnum(s)
	return strings.Join(strings.Fields(s), " ")
}

// Aggressive additionally removes dosage/unit tokens, package counts,
// pharmaceutical-form words, route qualifiers and any parenthesized or
// bracketed segment. The result is the bare drug name.
func Aggressive(s string) string {
	s = strings.ToLower(s)
	s = bracketed.ReplaceAllString(s, " ")
	s = punctToSpace.ReplaceAllString(s, " ")
	s = stripNonAlnum(s)

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := stopTokens[f]; stop {
			continue
		}
		if numberToken.MatchString(f) || numUnitToken.MatchString(f) || packToken.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

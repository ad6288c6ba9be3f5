// Package complexity scores task text into a coarse complexity class.
//
// Analyze is a pure function: identical input always yields an identical
// score, with no I/O and no randomness.
package complexity

import (
	"regexp"
	"strings"

	"github.com/zen-systems/taskgate/pkg/task"
)

// Class is the coarse bucket driving model choice.
type Class string

const (
	ClassSimple   Class = "simple"
	ClassStandard Class = "standard"
	ClassComplex  Class = "complex"
)

// Score holds the sub-scores and derived classification for one task.
type Score struct {
	Pattern     float64 `json:"pattern"`
	Linguistic  float64 `json:"linguistic"`
	Situational float64 `json:"situational"`
	Composite   float64 `json:"composite"`
	Class       Class   `json:"class"`
	Confidence  float64 `json:"confidence"`
}

// Composite weights and class thresholds. Carried over from operational
// tuning; fixed constants, not tenant-configurable.
const (
	patternWeight     = 0.40
	linguisticWeight  = 0.35
	situationalWeight = 0.25

	simpleThreshold   = 3.0
	standardThreshold = 7.0

	maxConfidence = 0.9
)

// Surface pattern tiers. The first tier that matches decides the pattern
// score; complex patterns are checked first.
var (
	complexPatterns = compileAll(
		`\burgent\b`, `\basap\b`, `\bimmediately\b`, `\bescalat\w*\b`,
		`\brefund\b`, `\bcancel\w*\b.*\border\b`, `\bcomplain\w*\b`,
		`\bstuck\b`, `\bfail\w*\b`, `\bbroken\b`, `\bnot work\w*\b`,
		`\blegal\b`, `\bcompliance\b`, `\bcontract\b`, `\bdispute\b`,
		`\bintegrat\w*\b`, `\bmigrat\w*\b`, `\bmultiple\b.*\bissues\b`,
	)
	standardPatterns = compileAll(
		`\bquestion\b`, `\bhow (do|can|much)\b`, `\bpric\w*\b`, `\bquote\b`,
		`\bschedul\w*\b`, `\bavailab\w*\b`, `\bupdate\b`, `\bchange\b`,
		`\bstatus\b`, `\bwhen\b.*\b(arrive|ship|deliver)\w*\b`, `\binvoice\b`,
	)
	simplePatterns = compileAll(
		`\bthanks?\b`, `\bthank you\b`, `\breceived\b`, `\bconfirm\w*\b`,
		`\bunsubscribe\b`, `\bok(ay)?\b`, `\bgot it\b`, `\bnoted\b`,
	)
)

// Business-complexity keyword families feeding the situational score.
var situationalFamilies = [][]string{
	{"urgent", "asap", "immediately", "now", "today"},
	{"refund", "payment", "invoice", "charge", "billing"},
	{"order", "shipment", "delivery", "stuck", "tracking"},
	{"account", "subscription", "renewal", "upgrade"},
	{"complaint", "dissatisfied", "unhappy", "frustrated"},
}

// Logical connectives and hedged modals counted by the linguistic score.
var connectives = []string{
	"and", "or", "but", "because", "therefore", "however", "unless",
	"if", "then", "also", "need", "must", "should",
}

var technicalTerms = []string{
	"api", "integration", "webhook", "sync", "export", "import",
	"database", "configuration", "authentication", "sso",
}

// Analyze derives a Score from the task text and situational flags.
// Empty or whitespace-only text yields a valid low score, never an error.
func Analyze(text string, flags task.Flags) Score {
	lower := strings.ToLower(strings.TrimSpace(text))

	s := Score{
		Pattern:     patternScore(lower),
		Linguistic:  linguisticScore(lower),
		Situational: situationalScore(lower, flags),
	}
	s.Composite = clamp(patternWeight*s.Pattern+linguisticWeight*s.Linguistic+situationalWeight*s.Situational, 0, 10)
	s.Class = classify(s.Composite)
	s.Confidence = confidence(s.Composite)
	return s
}

func classify(composite float64) Class {
	switch {
	case composite <= simpleThreshold:
		return ClassSimple
	case composite <= standardThreshold:
		return ClassStandard
	default:
		return ClassComplex
	}
}

// confidence grows with distance from the nearest class boundary.
func confidence(composite float64) float64 {
	dist := minFloat(absFloat(composite-simpleThreshold), absFloat(composite-standardThreshold))
	return minFloat(0.5+dist*0.15, maxConfidence)
}

func patternScore(lower string) float64 {
	if lower == "" {
		return 1.0
	}
	if matchesAny(complexPatterns, lower) {
		return 9.0
	}
	if matchesAny(standardPatterns, lower) {
		return 5.5
	}
	if matchesAny(simplePatterns, lower) {
		return 2.0
	}
	// Length fallback when no pattern matches.
	switch {
	case len(lower) < 80:
		return 2.0
	case len(lower) < 400:
		return 5.0
	default:
		return 8.0
	}
}

func linguisticScore(lower string) float64 {
	if lower == "" {
		return 0
	}
	tokens := strings.Fields(lower)
	tokenCount := len(tokens)

	clauses := 1 + strings.Count(lower, ",") + strings.Count(lower, ";") + strings.Count(lower, ":")

	connectiveCount := 0
	technicalCount := 0
	for _, tok := range tokens {
		word := strings.Trim(tok, ".,;:!?\"'()")
		if containsWord(connectives, word) {
			connectiveCount++
		}
		if containsWord(technicalTerms, word) {
			technicalCount++
		}
	}

	density := 0.0
	if tokenCount > 0 {
		density = float64(connectiveCount) / float64(tokenCount)
	}

	score := 0.08*float64(tokenCount) + 1.2*float64(clauses) + 4.0*density + 1.5*float64(technicalCount)
	return clamp(score, 0, 10)
}

func situationalScore(lower string, flags task.Flags) float64 {
	// External dependencies dominate: correctness risk outweighs the text.
	if flags.ExternalSystem || flags.CrossEntity {
		return maxFloat(8.0, keywordFamilyScore(lower))
	}
	return keywordFamilyScore(lower)
}

func keywordFamilyScore(lower string) float64 {
	matched := 0
	for _, family := range situationalFamilies {
		for _, kw := range family {
			if strings.Contains(lower, kw) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 2.0
	}
	return clamp(4.0+2.0*float64(matched), 0, 10)
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func containsWord(words []string, word string) bool {
	for _, w := range words {
		if w == word {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

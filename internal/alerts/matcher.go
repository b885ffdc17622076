// Package alerts holds the alert-term cache and the field matching
// rules applied to every processed message.
package alerts

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sdrhub/acarshub/internal/types"
)

// MatchType names the message field a term matched against.
type MatchType string

const (
	MatchText   MatchType = "text"
	MatchICAO   MatchType = "icao"
	MatchTail   MatchType = "tail"
	MatchFlight MatchType = "flight"
)

// Match is one surviving alert hit.
type Match struct {
	Term string
	Type MatchType
}

// textPatterns caches the compiled word-boundary pattern per term.
// Terms change rarely (only via the setters) and the hot path runs per
// message, so compilation is amortized.
var (
	textPatternMu sync.RWMutex
	textPatterns  = map[string]*regexp.Regexp{}
)

func textPattern(term string) *regexp.Regexp {
	textPatternMu.RLock()
	re, ok := textPatterns[term]
	textPatternMu.RUnlock()
	if ok {
		return re
	}
	re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	textPatternMu.Lock()
	textPatterns[term] = re
	textPatternMu.Unlock()
	return re
}

// matchesText applies the word-boundary rule: "UAL" hits "UAL onward"
// but not "UAL123".
func matchesText(text, term string) bool {
	if text == "" || term == "" {
		return false
	}
	return textPattern(term).MatchString(text)
}

// matchesField applies the substring rule used for icao, tail and
// flight: case-insensitive containment, so "BF3" hits "ABF308".
func matchesField(field, term string) bool {
	if field == "" || term == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(field), strings.ToUpper(term))
}

// MatchMessage evaluates every term against the message and suppresses
// hits whose field also fires an ignore term under the same rule.
func MatchMessage(m *types.Message, terms, ignores []string) []Match {
	var out []Match
	for _, term := range terms {
		if matchesText(m.Text, term) && !suppressed(m.Text, ignores, matchesText) {
			out = append(out, Match{Term: term, Type: MatchText})
		}
		if matchesField(m.ICAO, term) && !suppressed(m.ICAO, ignores, matchesField) {
			out = append(out, Match{Term: term, Type: MatchICAO})
		}
		if matchesField(m.Tail, term) && !suppressed(m.Tail, ignores, matchesField) {
			out = append(out, Match{Term: term, Type: MatchTail})
		}
		if matchesField(m.Flight, term) && !suppressed(m.Flight, ignores, matchesField) {
			out = append(out, Match{Term: term, Type: MatchFlight})
		}
	}
	return out
}

func suppressed(field string, ignores []string, rule func(field, term string) bool) bool {
	for _, ig := range ignores {
		if rule(field, ig) {
			return true
		}
	}
	return false
}

// Package taxonomy classifies conversation text into objection categories and
// buying signals using fixed keyword tables.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Category is an objection topic. The zero value means no objection.
type Category string

const (
	CategoryNone       Category = ""
	CategoryPrice      Category = "price"
	CategoryCompetitor Category = "competitor"
	CategoryTiming     Category = "timing"
	CategoryTrust      Category = "trust"
	CategoryFeature    Category = "feature"
	CategoryAuthority  Category = "authority"
)

// priorityOrder breaks ties between equally specific matches. Earlier wins.
var priorityOrder = []Category{
	CategoryPrice,
	CategoryCompetitor,
	CategoryTiming,
	CategoryTrust,
	CategoryFeature,
	CategoryAuthority,
}

// Categories returns every objection category in priority order.
func Categories() []Category {
	return append([]Category(nil), priorityOrder...)
}

// ParseCategory accepts a category name in any case. The empty string parses
// to CategoryNone.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == CategoryNone {
		return CategoryNone, nil
	}
	for _, known := range priorityOrder {
		if c == known {
			return c, nil
		}
	}
	return CategoryNone, fmt.Errorf("taxonomy: unknown objection category %q", s)
}

// MarshalJSON renders CategoryNone as null.
func (c Category) MarshalJSON() ([]byte, error) {
	if c == CategoryNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Category) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = CategoryNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("taxonomy: decode category: %w", err)
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SignalTag is a discrete indicator of buying interest.
type SignalTag string

const (
	SignalPriceInquiry      SignalTag = "price_inquiry"
	SignalTimelineQuestion  SignalTag = "timeline_question"
	SignalNextStepRequest   SignalTag = "next_step_request"
	SignalPositiveSentiment SignalTag = "positive_sentiment"
	SignalFeatureInterest   SignalTag = "feature_interest"
)

// Match is the outcome of objection classification.
type Match struct {
	Category Category
	Keyword  string
}

// Classify returns the objection category whose longest matched keyword is
// the longest across all categories. Ties go to the higher priority category.
func Classify(message string) Match {
	t := newText(message)
	var best Match
	bestLen := 0
	for _, c := range priorityOrder {
		for _, kw := range objectionKeywords[c] {
			if kw.len <= bestLen || !t.contains(kw) {
				continue
			}
			best = Match{Category: c, Keyword: kw.phrase}
			bestLen = kw.len
		}
	}
	return best
}

// ClassifyObjection reports the objection category raised by message, if any.
func ClassifyObjection(message string) (Category, bool) {
	m := Classify(message)
	return m.Category, m.Category != CategoryNone
}

// DetectBuyingSignals returns the distinct signals present in message in a
// stable order.
func DetectBuyingSignals(message string) []SignalTag {
	t := newText(message)
	signals := make([]SignalTag, 0, len(signalRules))
	for _, rule := range signalRules {
		for _, kw := range rule.keywords {
			if t.contains(kw) {
				signals = append(signals, rule.tag)
				break
			}
		}
	}
	return signals
}

// MergeSignals concatenates signal lists, dropping duplicates while keeping
// first-seen order.
func MergeSignals(lists ...[]SignalTag) []SignalTag {
	seen := make(map[SignalTag]struct{})
	out := make([]SignalTag, 0)
	for _, list := range lists {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// SignalStrings converts tags to plain strings for wire output.
func SignalStrings(tags []SignalTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// text holds the two normalized forms a keyword can be matched against.
type text struct {
	raw   string
	words string
}

func newText(message string) text {
	lower := strings.ToLower(strings.ReplaceAll(message, "’", "'"))
	fields := strings.FieldsFunc(lower, func(r rune) bool { return !isWordRune(r) })
	return text{
		raw:   lower,
		words: " " + strings.Join(fields, " ") + " ",
	}
}

func (t text) contains(kw keyword) bool {
	if kw.wordOnly {
		return strings.Contains(t.words, " "+kw.phrase+" ")
	}
	return strings.Contains(t.raw, kw.phrase)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

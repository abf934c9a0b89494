// Package matcher decides whether free text looks like a restricted system command.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the normalized distance below which a word counts as a keyword hit
const DefaultThreshold = 0.4

// DefaultMinTokenLength is the shortest word that may match a keyword approximately
const DefaultMinTokenLength = 3

// DefaultKeywords are the app-launch verbs and system-info nouns guests may not use
var DefaultKeywords = []string{
	"open", "launch", "start", "shutdown", "restart",
	"chrome", "browser", "vscode", "terminal", "cmd", "explorer", "settings",
	"volume", "screenshot",
	"cpu", "gpu", "ram", "memory", "battery", "disk", "storage", "network", "internet",
}

// SimilarityMatcher scores text against a keyword set.
// 0 is an exact keyword, 1 is unrelated.
type SimilarityMatcher interface {
	ScoreAgainstKeywords(text string) float64
}

// Options configures a Matcher
type Options struct {
	Keywords       []string
	Threshold      float64
	MinTokenLength int
}

// Matcher is an edit-distance SimilarityMatcher
type Matcher struct {
	keywords       []string
	threshold      float64
	minTokenLength int
}

// New creates a Matcher; zero-valued options take the defaults
func New(opts Options) *Matcher {
	m := &Matcher{
		threshold:      opts.Threshold,
		minTokenLength: opts.MinTokenLength,
	}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	if m.minTokenLength <= 0 {
		m.minTokenLength = DefaultMinTokenLength
	}

	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			m.keywords = append(m.keywords, kw)
		}
	}
	return m
}

// Threshold returns the configured cutoff
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Keywords returns a copy of the keyword list
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// ScoreAgainstKeywords returns the lowest normalized edit distance between any
// word of text and any keyword.
func (m *Matcher) ScoreAgainstKeywords(text string) float64 {
	best := 1.0
	for _, token := range Tokenize(text) {
		short := utf8.RuneCountInString(token) < m.minTokenLength
		for _, kw := range m.keywords {
			if token == kw {
				return 0
			}
			if short {
				continue
			}
			if d := normalizedDistance(token, kw); d < best {
				best = d
			}
		}
	}
	return best
}

// IsSystemCommand reports whether text resembles a restricted keyword
func (m *Matcher) IsSystemCommand(text string) bool {
	return m.ScoreAgainstKeywords(text) < m.threshold
}

// Tokenize lowercases text and splits it into runs of letters and digits
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizedDistance(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

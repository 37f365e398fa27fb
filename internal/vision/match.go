package vision

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MatchKind says how a query matched a fragment.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchSubstring MatchKind = "substring"
	MatchFuzzy     MatchKind = "fuzzy"
)

// DefaultFuzzyThreshold is the similarity a fuzzy match must exceed.
const DefaultFuzzyThreshold = 0.8

// Match is a located piece of on-screen text.
type Match struct {
	Fragment Fragment
	Kind     MatchKind
	Score    float64
	X, Y     int
}

func newMatch(f Fragment, kind MatchKind, score float64) Match {
	x, y := f.Box.Center()
	return Match{Fragment: f, Kind: kind, Score: score, X: x, Y: y}
}

// Matcher locates a query among OCR fragments.
type Matcher struct {
	Threshold float64
	dmp       *diffmatchpatch.DiffMatchPatch
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{Threshold: threshold, dmp: diffmatchpatch.New()}
}

// Exact returns the first fragment containing query, ignoring case.
func (m *Matcher) Exact(query string, fragments []Fragment) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Match{}, false
	}
	for _, f := range fragments {
		text := strings.ToLower(f.Text)
		if !strings.Contains(text, q) {
			continue
		}
		if text == q {
			return newMatch(f, MatchExact, 1), true
		}
		return newMatch(f, MatchSubstring, 1), true
	}
	return Match{}, false
}

// Fuzzy returns the most similar fragment whose similarity to query exceeds
// the threshold or whose normalized text contains the normalized query.
func (m *Matcher) Fuzzy(query string, fragments []Fragment) (Match, bool) {
	q := normalize(query)
	if q == "" {
		return Match{}, false
	}
	var (
		best  Match
		found bool
	)
	for _, f := range fragments {
		text := normalize(f.Text)
		if text == "" {
			continue
		}
		score := m.Similarity(q, text)
		if score <= m.Threshold && !strings.Contains(text, q) {
			continue
		}
		if !found || score > best.Score {
			best = newMatch(f, MatchFuzzy, score)
			found = true
		}
	}
	return best, found
}

// Similarity is 2*M/T where M counts characters the two strings share in
// their diff and T is their combined length.
func (m *Matcher) Similarity(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	matched := 0
	for _, d := range m.dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	return 2 * float64(matched) / float64(total)
}

// normalize lower-cases s, drops punctuation and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

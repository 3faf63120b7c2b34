package scoring

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Skufu/medscore/internal/refdata"
)

// Strategy selects how condition names are matched against the table.
type Strategy string

const (
	StrategyFuzzy     Strategy = "fuzzy"
	StrategySubstring Strategy = "substring"
)

const (
	// FuzzyThreshold is the minimum similarity for a fuzzy match.
	FuzzyThreshold = 0.75
	fuzzyLimit     = 5
	substringLimit = 3
)

// ParseStrategy validates a strategy name. An empty name selects fuzzy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFuzzy:
		return StrategyFuzzy, nil
	case StrategySubstring:
		return StrategySubstring, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q", s)
	}
}

// Match is one reference entry matched for a condition name.
type Match struct {
	refdata.Entry
	Similarity float64 `json:"similarity"`
}

// Matcher finds reference entries for a single free-text condition name.
// Implementations are immutable and safe for concurrent use.
type Matcher interface {
	Match(name string) []Match
}

type indexedEntry struct {
	entry refdata.Entry
	candidate
}

func buildIndex(table *refdata.Table) []indexedEntry {
	lower := cases.Lower(language.Und)
	entries := table.Entries()
	index := make([]indexedEntry, len(entries))
	for i, e := range entries {
		index[i] = indexedEntry{entry: e, candidate: newCandidate(lower.String(e.Description))}
	}
	return index
}

// SubstringMatcher returns the first entries, in table order, whose
// description contains the lower-cased name.
type SubstringMatcher struct {
	index []indexedEntry
	limit int
}

func NewSubstringMatcher(table *refdata.Table) *SubstringMatcher {
	return &SubstringMatcher{index: buildIndex(table), limit: substringLimit}
}

func (m *SubstringMatcher) Match(name string) []Match {
	name = cases.Lower(language.Und).String(name)
	var out []Match
	for _, ie := range m.index {
		if len(out) == m.limit {
			break
		}
		if strings.Contains(ie.text, name) {
			out = append(out, Match{Entry: ie.entry, Similarity: 1})
		}
	}
	return out
}

// FuzzyMatcher accepts entries whose Similarity to the name reaches the
// threshold and returns the best few, highest first. Entries with equal
// similarity keep table order.
type FuzzyMatcher struct {
	index     []indexedEntry
	threshold float64
	limit     int
}

func NewFuzzyMatcher(table *refdata.Table) *FuzzyMatcher {
	return &FuzzyMatcher{index: buildIndex(table), threshold: FuzzyThreshold, limit: fuzzyLimit}
}

func (m *FuzzyMatcher) Match(name string) []Match {
	q := newQuery(cases.Lower(language.Und).String(name))

	var accepted []Match
	for _, ie := range m.index {
		if s := q.similarity(ie.candidate, m.threshold); s >= m.threshold {
			accepted = append(accepted, Match{Entry: ie.entry, Similarity: s})
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Similarity > accepted[j].Similarity
	})
	if len(accepted) > m.limit {
		accepted = accepted[:m.limit]
	}
	return accepted
}

// NewMatcher builds the matcher for strategy over table.
func NewMatcher(table *refdata.Table, strategy Strategy) (Matcher, error) {
	switch strategy {
	case StrategyFuzzy:
		return NewFuzzyMatcher(table), nil
	case StrategySubstring:
		return NewSubstringMatcher(table), nil
	default:
		return nil, fmt.Errorf("unknown match strategy %q", strategy)
	}
}

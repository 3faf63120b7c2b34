package scoring

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Ratio is the difflib SequenceMatcher ratio of a and b compared rune by rune:
// 2*M/T where M is the total size of the longest matching blocks and T the
// combined length. Two empty strings are identical (1.0).
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// Similarity scores how well a free-text condition name matches a reference
// description. Containment of the lower-cased name scores 1.0; otherwise the
// best word-to-word Ratio wins.
func Similarity(name, description string) float64 {
	lower := cases.Lower(language.Und)
	q := newQuery(lower.String(name))
	return q.similarity(newCandidate(lower.String(description)), 0)
}

// query is a lower-cased condition name split for word comparison.
type query struct {
	text  string
	words [][]string
}

func newQuery(folded string) query {
	return query{text: folded, words: splitWords(folded)}
}

// candidate is a reference description prepared once for repeated matching.
type candidate struct {
	text  string
	words [][]string
}

func newCandidate(folded string) candidate {
	return candidate{text: folded, words: splitWords(folded)}
}

// similarity returns the similarity of q to c. Word pairs whose length alone
// bounds their ratio below floor are not compared, so results under floor
// are lower bounds rather than exact values. A floor of zero is exact.
func (q query) similarity(c candidate, floor float64) float64 {
	if strings.Contains(c.text, q.text) {
		return 1
	}
	best := 0.0
	for _, qw := range q.words {
		for _, cw := range c.words {
			bound := lengthBound(len(qw), len(cw))
			if bound <= best || bound < floor {
				continue
			}
			if r := difflib.NewMatcher(qw, cw).Ratio(); r > best {
				best = r
				if best == 1 {
					return best
				}
			}
		}
	}
	return best
}

// lengthBound is the highest ratio two sequences of these lengths can reach.
func lengthBound(a, b int) float64 {
	if a+b == 0 {
		return 1
	}
	return 2 * float64(min(a, b)) / float64(a+b)
}

func splitWords(s string) [][]string {
	fields := strings.Fields(s)
	words := make([][]string, len(fields))
	for i, f := range fields {
		words[i] = runes(f)
	}
	return words
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

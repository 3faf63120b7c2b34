// Package scoring turns an age and a list of free-text condition names into a
// bounded medical risk score using a refdata.Table.
package scoring

import (
	"math"

	"github.com/Skufu/medscore/internal/refdata"
)

const (
	maxConditionScore = 80
	MinScore          = 5
	MaxScore          = 100
)

// AgeBand is the age contribution to the score. Negative ages fall in the
// youngest band.
func AgeBand(age int) float64 {
	switch {
	case age < 30:
		return 5
	case age < 45:
		return 10
	case age < 60:
		return 15
	case age < 75:
		return 18
	default:
		return 20
	}
}

// ConditionMatch records which entry a condition name matched.
type ConditionMatch struct {
	Condition string `json:"condition"`
	Match
}

// Assessment is the breakdown behind a score.
type Assessment struct {
	Age            int              `json:"age"`
	AgeScore       float64          `json:"ageScore"`
	ConditionScore float64          `json:"conditionScore"`
	HighestWeight  float64          `json:"highestWeight"`
	Score          float64          `json:"score"`
	Matches        []ConditionMatch `json:"matches"`
}

// Scorer is built once per reference table and shared by all requests.
type Scorer struct {
	table    *refdata.Table
	matcher  Matcher
	strategy Strategy
}

// New returns a scorer over table using strategy.
func New(table *refdata.Table, strategy Strategy) (*Scorer, error) {
	m, err := NewMatcher(table, strategy)
	if err != nil {
		return nil, err
	}
	return &Scorer{table: table, matcher: m, strategy: strategy}, nil
}

// Available reports whether the reference table has any entries. Callers
// must refuse to score when it is false.
func (s *Scorer) Available() bool {
	return s != nil && !s.table.Empty()
}

// Size is the number of reference entries.
func (s *Scorer) Size() int {
	if s == nil {
		return 0
	}
	return s.table.Len()
}

func (s *Scorer) Strategy() Strategy {
	if s == nil {
		return ""
	}
	return s.strategy
}

// Weights returns the risk weights of every match for names, in input order.
// Duplicates are kept.
func (s *Scorer) Weights(names []string) []float64 {
	return weightsOf(s.matchAll(names))
}

// Score returns the composite risk score in [MinScore, MaxScore].
func (s *Scorer) Score(names []string, age int) float64 {
	return s.Assess(names, age).Score
}

// Assess scores names and age and reports how the score was reached.
func (s *Scorer) Assess(names []string, age int) Assessment {
	a := Assessment{Age: age, AgeScore: AgeBand(age), Matches: s.matchAll(names)}
	weights := weightsOf(a.Matches)
	if len(weights) == 0 {
		a.Score = round1(a.AgeScore)
		return a
	}
	for _, w := range weights {
		a.HighestWeight = math.Max(a.HighestWeight, w)
	}
	a.ConditionScore = math.Min(a.HighestWeight*100, maxConditionScore)
	a.Score = round1(a.AgeScore + a.ConditionScore)
	return a
}

func (s *Scorer) matchAll(names []string) []ConditionMatch {
	matches := []ConditionMatch{}
	for _, name := range names {
		for _, m := range s.matcher.Match(name) {
			matches = append(matches, ConditionMatch{Condition: name, Match: m})
		}
	}
	return matches
}

func weightsOf(matches []ConditionMatch) []float64 {
	weights := make([]float64, len(matches))
	for i, m := range matches {
		weights[i] = m.Weight
	}
	return weights
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

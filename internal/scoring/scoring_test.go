package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medscore/internal/refdata"
)

func sampleTable() *refdata.Table {
	return refdata.NewTable(
		refdata.Entry{Code: "E119", Description: "Type 2 diabetes mellitus without complications", Weight: 0.35},
		refdata.Entry{Code: "E1165", Description: "Type 2 diabetes mellitus with hyperglycemia", Weight: 0.38},
		refdata.Entry{Code: "E109", Description: "Type 1 diabetes mellitus without complications", Weight: 0.38},
		refdata.Entry{Code: "E1010", Description: "Type 1 diabetes mellitus with ketoacidosis without coma", Weight: 0.38},
		refdata.Entry{Code: "C3490", Description: "Malignant neoplasm of unsp part of unsp bronchus or lung", Weight: 0.42},
		refdata.Entry{Code: "I10", Description: "Essential (primary) hypertension", Weight: 0.1},
		refdata.Entry{Code: "J449", Description: "Chronic obstructive pulmonary disease, unspecified", Weight: 0.38},
		refdata.Entry{Code: "C9200", Description: "Acute myeloblastic leukemia, not having achieved remission", Weight: 0.80},
	)
}

func newScorer(t *testing.T, table *refdata.Table, strategy Strategy) *Scorer {
	t.Helper()
	s, err := New(table, strategy)
	require.NoError(t, err)
	return s
}

func TestAgeBand(t *testing.T) {
	tests := []struct {
		age  int
		want float64
	}{
		{-5, 5}, {0, 5}, {29, 5},
		{30, 10}, {44, 10},
		{45, 15}, {59, 15},
		{60, 18}, {74, 18},
		{75, 20}, {120, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeBand(tt.age), "age %d", tt.age)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("diabetes", "diabetes"))
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	assert.InDelta(t, 0.875, Ratio("diabetis", "diabetes"), 1e-9)
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Diabetes", "Type 2 Diabetes Mellitus"))
	assert.GreaterOrEqual(t, Similarity("diabetis", "Diabetes Mellitus"), FuzzyThreshold)
	assert.Less(t, Similarity("broken arm", "Essential (primary) hypertension"), FuzzyThreshold)
	assert.Less(t, Similarity("broken arm", "Diabetes Mellitus"), FuzzyThreshold)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFuzzy, s)

	s, err = ParseStrategy(" Substring ")
	require.NoError(t, err)
	assert.Equal(t, StrategySubstring, s)

	_, err = ParseStrategy("levenshtein")
	assert.Error(t, err)

	_, err = New(sampleTable(), Strategy("levenshtein"))
	assert.Error(t, err)
}

func TestSubstringMatcherTakesFirstThree(t *testing.T) {
	m := NewSubstringMatcher(sampleTable())

	matches := m.Match("DIABETES")
	require.Len(t, matches, 3)
	assert.Equal(t, "E119", matches[0].Code)
	assert.Equal(t, "E1165", matches[1].Code)
	assert.Equal(t, "E109", matches[2].Code)

	assert.Empty(t, m.Match("diabetis"))
}

func TestFuzzyMatcherToleratesMisspelling(t *testing.T) {
	m := NewFuzzyMatcher(sampleTable())

	matches := m.Match("diabetis")
	require.Len(t, matches, 4)
	for _, match := range matches {
		assert.GreaterOrEqual(t, match.Similarity, FuzzyThreshold)
		assert.Contains(t, match.Description, "diabetes")
	}

	assert.Empty(t, m.Match("broken arm"))
}

func TestFuzzyMatcherOrdersBySimilarity(t *testing.T) {
	table := refdata.NewTable(
		refdata.Entry{Code: "A", Description: "Hypertensive heart disease", Weight: 0.2},
		refdata.Entry{Code: "B", Description: "Essential hypertension", Weight: 0.3},
		refdata.Entry{Code: "C", Description: "Hypertension, unspecified", Weight: 0.4},
	)
	matches := NewFuzzyMatcher(table).Match("hypertension")
	require.Len(t, matches, 3)
	assert.Equal(t, "B", matches[0].Code)
	assert.Equal(t, "C", matches[1].Code)
	assert.Equal(t, "A", matches[2].Code)
	assert.Less(t, matches[2].Similarity, 1.0)
}

func TestFuzzyMatcherLimitsToFive(t *testing.T) {
	var entries []refdata.Entry
	for _, code := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		entries = append(entries, refdata.Entry{Code: code, Description: "Asthma variant " + code, Weight: 0.3})
	}
	matches := NewFuzzyMatcher(refdata.NewTable(entries...)).Match("asthma")
	require.Len(t, matches, 5)
	assert.Equal(t, "A", matches[0].Code)
	assert.Equal(t, "E", matches[4].Code)
}

func TestScoreEndToEnd(t *testing.T) {
	table := refdata.NewTable(refdata.Entry{Code: "E11", Description: "Diabetes Mellitus", Weight: 0.40})
	for _, strategy := range []Strategy{StrategyFuzzy, StrategySubstring} {
		s := newScorer(t, table, strategy)
		assert.Equal(t, 55.0, s.Score([]string{"diabetes"}, 50), string(strategy))
	}
}

func TestScoreCapsConditionContribution(t *testing.T) {
	table := refdata.NewTable(refdata.Entry{Code: "X", Description: "Severe thing", Weight: 0.95})
	s := newScorer(t, table, StrategyFuzzy)
	assert.Equal(t, 100.0, s.Score([]string{"severe"}, 80))
}

func TestScoreWithoutConditions(t *testing.T) {
	for _, table := range []*refdata.Table{sampleTable(), refdata.NewTable()} {
		s := newScorer(t, table, StrategyFuzzy)
		for _, age := range []int{-1, 10, 30, 50, 65, 90} {
			assert.Equal(t, AgeBand(age), s.Score(nil, age))
			assert.Equal(t, AgeBand(age), s.Score([]string{}, age))
		}
	}
}

func TestScoreUnmatchedFallsBackToAgeBand(t *testing.T) {
	s := newScorer(t, sampleTable(), StrategyFuzzy)
	assert.Equal(t, 18.0, s.Score([]string{"broken arm"}, 70))
}

func TestFuzzyAndSubstringDiffer(t *testing.T) {
	fuzzy := newScorer(t, sampleTable(), StrategyFuzzy)
	substring := newScorer(t, sampleTable(), StrategySubstring)

	assert.Equal(t, 15.0+38.0, fuzzy.Score([]string{"diabetis"}, 50))
	assert.Equal(t, 15.0, substring.Score([]string{"diabetis"}, 50))
}

func TestScoreIsMonotonic(t *testing.T) {
	s := newScorer(t, sampleTable(), StrategyFuzzy)
	base := []string{"hypertension"}
	for _, age := range []int{20, 50, 80} {
		before := s.Score(base, age)
		after := s.Score(append(append([]string{}, base...), "leukemia"), age)
		assert.GreaterOrEqual(t, after, before)
		assert.Equal(t, AgeBand(age)+80, after)
	}
}

func TestScoreBounds(t *testing.T) {
	names := [][]string{nil, {"diabetes"}, {"leukemia", "lung"}, {"hypertension"}, {"nothing at all"}, {""}}
	for _, strategy := range []Strategy{StrategyFuzzy, StrategySubstring} {
		s := newScorer(t, sampleTable(), strategy)
		for age := -10; age <= 120; age += 7 {
			for _, n := range names {
				score := s.Score(n, age)
				assert.GreaterOrEqual(t, score, float64(MinScore))
				assert.LessOrEqual(t, score, float64(MaxScore))
			}
		}
	}
}

func TestWeightsKeepDuplicates(t *testing.T) {
	s := newScorer(t, sampleTable(), StrategySubstring)
	weights := s.Weights([]string{"hypertension", "hypertension"})
	assert.Equal(t, []float64{0.1, 0.1}, weights)
}

func TestWeightsAgreeWithAssess(t *testing.T) {
	s := newScorer(t, sampleTable(), StrategyFuzzy)
	names := []string{"diabetis", "lung", "broken arm", "hypertension"}

	a := s.Assess(names, 40)
	var fromMatches []float64
	for _, m := range a.Matches {
		fromMatches = append(fromMatches, m.Weight)
	}
	require.NotEmpty(t, fromMatches)
	assert.Equal(t, fromMatches, s.Weights(names))
	assert.Empty(t, s.Weights(nil))
}

func TestAssessReportsMatches(t *testing.T) {
	s := newScorer(t, sampleTable(), StrategyFuzzy)
	a := s.Assess([]string{"COPD", "lung"}, 62)

	assert.Equal(t, 18.0, a.AgeScore)
	assert.Equal(t, 0.42, a.HighestWeight)
	assert.Equal(t, 42.0, a.ConditionScore)
	assert.Equal(t, 60.0, a.Score)
	require.Len(t, a.Matches, 1)
	assert.Equal(t, "lung", a.Matches[0].Condition)
	assert.Equal(t, "C3490", a.Matches[0].Code)
}

func TestAvailability(t *testing.T) {
	assert.True(t, newScorer(t, sampleTable(), StrategyFuzzy).Available())

	empty := newScorer(t, refdata.NewTable(), StrategyFuzzy)
	assert.False(t, empty.Available())
	assert.Equal(t, 0, empty.Size())

	var nilScorer *Scorer
	assert.False(t, nilScorer.Available())
}

package analysis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRules_NitratePDE5(t *testing.T) {
	r := RunRules(Request{Drugs: []Drug{{Name: "Nitroglycerin"}, {Name: "Sildenafil 50mg"}}})
	require.Len(t, r.Interactions, 1)
	assert.Equal(t, "high", r.Interactions[0].Severity)
	assert.Equal(t, []string{"nitroglycerin", "sildenafil 50mg"}, r.Interactions[0].Drugs)
	assert.Equal(t, "high", r.RiskLevel)
	assert.Equal(t, 45, r.RiskScore)
	assert.Equal(t, "rules", r.Source)
}

func TestRunRules_WarfarinAspirin(t *testing.T) {
	r := RunRules(sampleRequest())
	require.Len(t, r.Interactions, 1)
	assert.Contains(t, r.Interactions[0].Note, "bleeding")

	require.Len(t, r.DosingConcerns, 1)
	assert.Equal(t, "Age >65", r.DosingConcerns[0].Factor)

	require.Len(t, r.AbnormalTests, 1)
	assert.Equal(t, "INR", r.AbnormalTests[0].Test)
	assert.Contains(t, r.AbnormalTests[0].Finding, "above range")

	assert.Equal(t, 5+40+20+10, r.RiskScore)
	assert.Equal(t, "high", r.RiskLevel)
}

func TestRunRules_ConditionRules(t *testing.T) {
	r := RunRules(Request{
		Conditions: []string{"Kidney Disease", " pregnant "},
		Drugs:      []Drug{{Name: "Ibuprofen"}, {Name: "Tadalafil"}},
	})
	require.Len(t, r.Contraindications, 2)
	assert.Equal(t, "pregnant", r.Contraindications[0].Condition)
	assert.Equal(t, "kidney disease", r.Contraindications[1].Condition)
	require.Len(t, r.DosingConcerns, 1)
	assert.Equal(t, "high", r.RiskLevel)
}

func TestRunRules_NoFindings(t *testing.T) {
	r := RunRules(Request{
		Drugs: []Drug{{Name: "Metformin"}},
		Tests: []LabTest{{Name: "HbA1c", Value: "5.4", ReferenceRange: "4.0-5.6"}, {Name: "Note", Value: "n/a"}},
	})
	assert.Empty(t, r.Interactions)
	assert.Empty(t, r.AbnormalTests)
	assert.Equal(t, 5, r.RiskScore)
	assert.Equal(t, "low", r.RiskLevel)
	assert.Equal(t, []string{"No rule-based concerns found; confirm with clinical review."}, r.Recommendations)
}

func TestOutOfRange(t *testing.T) {
	_, ok := outOfRange(LabTest{Value: "2.5", ReferenceRange: "2.0-3.0"})
	assert.False(t, ok)

	finding, ok := outOfRange(LabTest{Value: "1.1", ReferenceRange: "2.0 - 3.0"})
	assert.True(t, ok)
	assert.Contains(t, finding, "below range")

	_, ok = outOfRange(LabTest{Value: "high", ReferenceRange: "2.0-3.0"})
	assert.False(t, ok)
	_, ok = outOfRange(LabTest{Value: "4", ReferenceRange: "<3"})
	assert.False(t, ok)
}

func TestRuleAnalyzer(t *testing.T) {
	out, err := RuleAnalyzer{}.Analyze(context.Background(), sampleRequest())
	require.NoError(t, err)

	var r Report
	require.NoError(t, json.Unmarshal(out, &r))
	assert.Equal(t, "rules", r.Source)
	assert.NotEmpty(t, r.Summary)

	_, err = RuleAnalyzer{}.Analyze(context.Background(), Request{})
	assert.True(t, IsValidation(err))
}

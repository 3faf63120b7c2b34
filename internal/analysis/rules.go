package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var drugClasses = map[string][]string{
	"pde5i":            {"sildenafil", "tadalafil", "vardenafil", "avanafil"},
	"nitrates":         {"nitroglycerin", "isosorbide", "isosorbide dinitrate", "isosorbide mononitrate"},
	"alphaBlockers":    {"tamsulosin", "doxazosin", "terazosin", "alfuzosin"},
	"cyp3a4Inhibitors": {"ketoconazole", "itraconazole", "ritonavir", "cobicistat", "clarithromycin"},
	"anticoagulants":   {"warfarin", "apixaban", "rivaroxaban", "dabigatran", "edoxaban"},
	"nsaids":           {"aspirin", "ibuprofen", "naproxen", "diclofenac", "celecoxib"},
}

type Rule struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"` // interaction|contra|dosing
	Severity string    `json:"severity"`
	Match    RuleMatch `json:"match"`
	Note     string    `json:"note"`
}

type RuleMatch struct {
	DrugClassA        string `json:"drugClassA"`
	DrugClassB        string `json:"drugClassB"`
	Condition         string `json:"condition"`
	RequiresDrugClass string `json:"requiresDrugClass"`
}

var (
	ruleDB = []Rule{
		{ID: "nitrates+pde5i", Type: "interaction", Severity: "high", Match: RuleMatch{DrugClassA: "nitrates", DrugClassB: "pde5i"}, Note: "Risk of profound hypotension; avoid co-administration."},
		{ID: "alpha+pde5i", Type: "interaction", Severity: "moderate", Match: RuleMatch{DrugClassA: "alphaBlockers", DrugClassB: "pde5i"}, Note: "Additive hypotension; separate dosing and start low."},
		{ID: "cyp3a4+pde5i", Type: "interaction", Severity: "moderate", Match: RuleMatch{DrugClassA: "cyp3a4Inhibitors", DrugClassB: "pde5i"}, Note: "Higher PDE5i levels; use lowest dose and monitor."},
		{ID: "anticoag+nsaid", Type: "interaction", Severity: "high", Match: RuleMatch{DrugClassA: "anticoagulants", DrugClassB: "nsaids"}, Note: "Increased bleeding risk; avoid or add gastroprotection and monitor."},
		{ID: "pregnancy+pde5i", Type: "contra", Severity: "moderate", Match: RuleMatch{Condition: "pregnant", RequiresDrugClass: "pde5i"}, Note: "Safety in pregnancy not established; avoid PDE5 inhibitors."},
		{ID: "renal+nsaid", Type: "contra", Severity: "high", Match: RuleMatch{Condition: "kidney disease", RequiresDrugClass: "nsaids"}, Note: "NSAIDs may worsen renal function; prefer alternatives."},
		{ID: "renal", Type: "dosing", Severity: "moderate", Match: RuleMatch{Condition: "kidney disease"}, Note: "Review renally cleared drugs; adjust doses to eGFR."},
		{ID: "hepatic", Type: "dosing", Severity: "moderate", Match: RuleMatch{Condition: "liver disease"}, Note: "Use lowest dose; consider avoiding hepatically cleared drugs if severe."},
	}
	severityWeight = map[string]int{
		"high":     40,
		"moderate": 20,
		"low":      10,
	}
)

type Interaction struct {
	Drugs    []string `json:"drugs"`
	Severity string   `json:"severity"`
	Note     string   `json:"note"`
}

type Contraindication struct {
	Condition string `json:"condition"`
	Severity  string `json:"severity"`
	Note      string `json:"note"`
}

type DosingConcern struct {
	Factor         string `json:"factor"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

type AbnormalTest struct {
	Test         string `json:"test"`
	Finding      string `json:"finding"`
	Significance string `json:"significance"`
}

// Report is the analysis produced without a model.
type Report struct {
	Summary           string             `json:"summary"`
	Interactions      []Interaction      `json:"interactions"`
	Contraindications []Contraindication `json:"contraindications"`
	DosingConcerns    []DosingConcern    `json:"dosingConcerns"`
	AbnormalTests     []AbnormalTest     `json:"abnormalTests"`
	Recommendations   []string           `json:"recommendations"`
	RiskScore         int                `json:"riskScore"`
	RiskLevel         string             `json:"riskLevel"`
	Source            string             `json:"source"`
}

// RuleAnalyzer answers analysis requests from a fixed rule table. It is used
// when no model is configured.
type RuleAnalyzer struct{}

func (RuleAnalyzer) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := json.Marshal(RunRules(req))
	if err != nil {
		return nil, fmt.Errorf("encode rule report: %w", err)
	}
	return out, nil
}

// RunRules evaluates the rule table against req.
func RunRules(req Request) Report {
	meds := make([]string, 0, len(req.Drugs))
	for _, d := range req.Drugs {
		meds = append(meds, strings.ToLower(strings.TrimSpace(d.Name)))
	}
	conditions := make([]string, 0, len(req.Conditions))
	for _, c := range req.Conditions {
		conditions = append(conditions, strings.ToLower(strings.TrimSpace(c)))
	}

	r := Report{
		Interactions:      []Interaction{},
		Contraindications: []Contraindication{},
		DosingConcerns:    []DosingConcern{},
		AbnormalTests:     []AbnormalTest{},
		Recommendations:   []string{},
		Source:            "rules",
	}

	for _, rule := range ruleDB {
		switch rule.Type {
		case "interaction":
			a := classMembers(meds, rule.Match.DrugClassA)
			b := classMembers(meds, rule.Match.DrugClassB)
			if len(a) > 0 && len(b) > 0 {
				r.Interactions = append(r.Interactions, Interaction{
					Drugs:    append(a, b...),
					Severity: rule.Severity,
					Note:     rule.Note,
				})
			}
		case "contra":
			condMatch := rule.Match.Condition != "" && containsString(conditions, rule.Match.Condition)
			drugMatch := rule.Match.RequiresDrugClass == "" || len(classMembers(meds, rule.Match.RequiresDrugClass)) > 0
			if condMatch && drugMatch {
				r.Contraindications = append(r.Contraindications, Contraindication{
					Condition: rule.Match.Condition,
					Severity:  rule.Severity,
					Note:      rule.Note,
				})
			}
		case "dosing":
			if rule.Match.Condition != "" && containsString(conditions, rule.Match.Condition) {
				r.DosingConcerns = append(r.DosingConcerns, DosingConcern{
					Factor:         rule.Match.Condition,
					Severity:       rule.Severity,
					Recommendation: rule.Note,
				})
			}
		}
	}

	if req.Age != nil && *req.Age >= 65 && len(meds) > 0 {
		r.DosingConcerns = append(r.DosingConcerns, DosingConcern{
			Factor:         "Age >65",
			Severity:       "moderate",
			Recommendation: "Initiate at lowest dose; titrate cautiously.",
		})
	}

	for _, lt := range req.Tests {
		if finding, ok := outOfRange(lt); ok {
			r.AbnormalTests = append(r.AbnormalTests, AbnormalTest{
				Test:         lt.Name,
				Finding:      finding,
				Significance: "Outside the supplied reference range; review in clinical context.",
			})
		}
	}

	score := 5
	maxSeverity := "low"
	bump := func(sev string) {
		score += severityWeight[sev]
		if sev == "high" || (sev == "moderate" && maxSeverity == "low") {
			maxSeverity = sev
		}
	}
	for _, i := range r.Interactions {
		bump(i.Severity)
		r.Recommendations = append(r.Recommendations, i.Note)
	}
	for _, c := range r.Contraindications {
		bump(c.Severity)
		r.Recommendations = append(r.Recommendations, c.Note)
	}
	for _, d := range r.DosingConcerns {
		bump(d.Severity)
		r.Recommendations = append(r.Recommendations, d.Recommendation)
	}
	for range r.AbnormalTests {
		bump("low")
	}
	if score > 100 {
		score = 100
	}

	r.RiskScore = score
	r.RiskLevel = "low"
	if maxSeverity == "high" || score >= 60 {
		r.RiskLevel = "high"
	} else if maxSeverity == "moderate" || score >= 30 {
		r.RiskLevel = "moderate"
	}

	findings := len(r.Interactions) + len(r.Contraindications) + len(r.DosingConcerns) + len(r.AbnormalTests)
	if findings == 0 {
		r.Recommendations = append(r.Recommendations, "No rule-based concerns found; confirm with clinical review.")
	}
	r.Summary = fmt.Sprintf("%d finding(s) from rule-based screening; overall risk %s.", findings, r.RiskLevel)
	return r
}

// outOfRange compares a numeric value to a "low-high" reference range.
func outOfRange(lt LabTest) (string, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(lt.Value), 64)
	if err != nil {
		return "", false
	}
	lo, hi, ok := strings.Cut(lt.ReferenceRange, "-")
	if !ok {
		return "", false
	}
	low, errLo := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	high, errHi := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if errLo != nil || errHi != nil {
		return "", false
	}
	switch {
	case value < low:
		return fmt.Sprintf("%s below range %s", lt.Value, lt.ReferenceRange), true
	case value > high:
		return fmt.Sprintf("%s above range %s", lt.Value, lt.ReferenceRange), true
	}
	return "", false
}

// classMembers returns the medications that belong to className.
func classMembers(meds []string, className string) []string {
	var out []string
	for _, m := range meds {
		for _, drug := range drugClasses[className] {
			if strings.Contains(m, drug) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

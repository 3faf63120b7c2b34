// Package analysis forwards structured drug and lab data to a hosted LLM and
// returns the JSON analysis it produces.
package analysis

import (
	"errors"
	"fmt"
	"strings"
)

type Drug struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type LabTest struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
}

type Request struct {
	Age        *int      `json:"age"`
	Sex        string    `json:"sex"`
	Conditions []string  `json:"conditions"`
	Drugs      []Drug    `json:"drugs"`
	Tests      []LabTest `json:"tests"`
	Notes      string    `json:"notes"`
}

// ValidationError lists every problem found in a Request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid analysis request: " + strings.Join(e.Problems, "; ")
}

func (r Request) Validate() error {
	var problems []string
	if len(r.Drugs) == 0 && len(r.Tests) == 0 {
		problems = append(problems, "at least one drug or test is required")
	}
	for i, d := range r.Drugs {
		if strings.TrimSpace(d.Name) == "" {
			problems = append(problems, fmt.Sprintf("drugs[%d].name is required", i))
		}
	}
	for i, lt := range r.Tests {
		if strings.TrimSpace(lt.Name) == "" {
			problems = append(problems, fmt.Sprintf("tests[%d].name is required", i))
		}
	}
	if r.Age != nil && (*r.Age < 0 || *r.Age > 130) {
		problems = append(problems, "age must be between 0 and 130")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const responseSchema = `{
  "summary": string,
  "interactions": [{"drugs": [string], "severity": "low"|"moderate"|"high", "note": string}],
  "abnormalTests": [{"test": string, "finding": string, "significance": string}],
  "recommendations": [string],
  "riskLevel": "low"|"moderate"|"high"
}`

// BuildPrompt renders req as an instruction for the model. The model is asked
// to answer with a single JSON object and nothing else.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a clinical pharmacology assistant. Review the patient data below and ")
	b.WriteString("respond with ONLY a JSON object matching this shape:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nPatient:\n")
	if req.Age != nil {
		fmt.Fprintf(&b, "- Age: %d\n", *req.Age)
	}
	if req.Sex != "" {
		fmt.Fprintf(&b, "- Sex: %s\n", req.Sex)
	}
	if len(req.Conditions) > 0 {
		fmt.Fprintf(&b, "- Conditions: %s\n", strings.Join(req.Conditions, ", "))
	}
	if len(req.Drugs) > 0 {
		b.WriteString("\nMedications:\n")
		for _, d := range req.Drugs {
			fmt.Fprintf(&b, "- %s", d.Name)
			if d.Dosage != "" {
				fmt.Fprintf(&b, " %s", d.Dosage)
			}
			if d.Frequency != "" {
				fmt.Fprintf(&b, " (%s)", d.Frequency)
			}
			b.WriteString("\n")
		}
	}
	if len(req.Tests) > 0 {
		b.WriteString("\nLab results:\n")
		for _, lt := range req.Tests {
			fmt.Fprintf(&b, "- %s: %s", lt.Name, lt.Value)
			if lt.Unit != "" {
				fmt.Fprintf(&b, " %s", lt.Unit)
			}
			if lt.ReferenceRange != "" {
				fmt.Fprintf(&b, " (ref %s)", lt.ReferenceRange)
			}
			b.WriteString("\n")
		}
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", notes)
	}
	return b.String()
}

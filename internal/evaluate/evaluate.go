// Package evaluate decides whether an application has everything the
// screening requirements ask for.
package evaluate

import (
	"strings"

	"github.com/arxmedia/resume-screener/internal/extract"
	"github.com/arxmedia/resume-screener/internal/models"
)

// Evaluate compares the accumulated field map against the requirement
// list and returns the verdict. It is a pure function: the same inputs
// always produce the same verdict, and only required fields participate.
// A field counts as missing when it is absent, whitespace-only, a
// negative assertion, or an empty entry list. The missing list preserves
// requirement order.
func Evaluate(fields models.Fields, reqs []models.FieldRequirement) models.Verdict {
	var missing []models.FieldRequirement
	for _, req := range reqs {
		if !req.Required {
			continue
		}
		if !satisfied(fields[req.Name]) {
			missing = append(missing, req)
		}
	}
	return models.Verdict{Missing: missing, Complete: len(missing) == 0}
}

func satisfied(v models.FieldValue) bool {
	switch {
	case len(v.Entries) > 0:
		for _, e := range v.Entries {
			if hasContent(e.Description) || hasContent(e.Degree) || hasContent(e.Institution) ||
				hasContent(e.Title) || hasContent(e.Company) {
				return true
			}
		}
		return false
	case v.Text != "":
		return hasContent(v.Text)
	default:
		return v.Present
	}
}

func hasContent(s string) bool {
	return strings.TrimSpace(s) != "" && !extract.IsNegativeAssertion(s)
}

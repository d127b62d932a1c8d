// Package schema declares the applicant information the screening
// process collects. The lists are static for the lifetime of a run.
package schema

import "github.com/arxmedia/resume-screener/internal/models"

// Requirements returns the required fields in the order they are asked
// for and reported missing.
func Requirements() []models.FieldRequirement {
	return []models.FieldRequirement{
		{Name: models.FieldFullName, Description: "Applicant's complete name (first and last name)", Required: true},
		{Name: models.FieldEmailAddress, Description: "Valid email address for communication", Required: true},
		{Name: models.FieldPhoneNumber, Description: "Valid phone number", Required: true},
		{Name: models.FieldResume, Description: "Detailed resume or CV as an attachment", Required: true},
		{Name: models.FieldWorkExperience, Description: "Any work experience", Required: true},
		{Name: models.FieldEducation, Description: "Highest level of education and field of study", Required: true},
	}
}

// Optional returns the nice-to-have fields. They never affect the
// completeness verdict; they only enrich prompts and reports.
func Optional() []models.FieldRequirement {
	return []models.FieldRequirement{
		{Name: "Portfolio", Description: "Link to online portfolio or work samples"},
		{Name: "LinkedIn Profile", Description: "Link to LinkedIn profile"},
		{Name: "GitHub Profile", Description: "Link to GitHub profile for technical positions"},
		{Name: "Cover Letter", Description: "Personalized cover letter explaining interest in the position"},
		{Name: "Salary Expectations", Description: "Expected salary range"},
		{Name: "Availability", Description: "Earliest start date and notice period"},
		{Name: "References", Description: "Professional references with contact information"},
	}
}

// DisqualifyingFactors lists conditions that rule an applicant out.
// They are surfaced to the analysis prompt, not enforced mechanically.
func DisqualifyingFactors() []models.FieldRequirement {
	return []models.FieldRequirement{
		{Name: "Incomplete Application", Description: "Missing any of the required information"},
		{Name: "Insufficient Experience", Description: "Less than 2 years of relevant work experience"},
		{Name: "No Resume", Description: "No resume or CV provided"},
	}
}

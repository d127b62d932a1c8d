package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arxmedia/resume-screener/internal/models"
	"github.com/arxmedia/resume-screener/internal/schema"
)

// Generator is the model surface the oracle needs. *VertexAIClient
// satisfies it; tests substitute a canned implementation.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateWithImages(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Oracle builds prompts for the screening tasks and decodes the model's
// structured answers.
type Oracle struct {
	gen Generator
}

// NewOracle creates an oracle over the given model client.
func NewOracle(gen Generator) *Oracle {
	return &Oracle{gen: gen}
}

const resumeExtractionFormat = `{
  "personal_information": {"name": "", "email": "", "phone": "", "address": ""},
  "education": [{"degree": "", "institution": "", "year": "", "description": ""}],
  "work_experience": [{"job_title": "", "company": "", "years": "", "description": ""}],
  "skills": [""],
  "certifications": [{"title": "", "issuer": "", "year": ""}]
}`

func resumeExtractionPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an expert HR analyst reading a job applicant's resume.\n")
	sb.WriteString("Extract every piece of applicant information you can find.\n\n")
	sb.WriteString("Use empty strings or empty lists for anything the resume does not contain. ")
	sb.WriteString("Never invent values.\n\n")
	sb.WriteString("Provide the extraction in exactly this JSON format:\n")
	sb.WriteString(resumeExtractionFormat)
	sb.WriteString("\n\nReturn ONLY the JSON object, no additional text.\n")
	return sb.String()
}

// ExtractResumeImages runs the vision extraction over rendered resume
// page images and returns the typed result. A response that does not
// decode into the expected structure is an error, never a guess.
func (o *Oracle) ExtractResumeImages(ctx context.Context, images [][]byte) (models.ResumeExtraction, error) {
	if len(images) == 0 {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: no images")
	}
	response, err := o.gen.GenerateWithImages(ctx, resumeExtractionPrompt(), images)
	if err != nil {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: %w", err)
	}
	return parseResumeExtraction(response)
}

// ExtractResumeText runs the same extraction over plain resume text.
func (o *Oracle) ExtractResumeText(ctx context.Context, text string) (models.ResumeExtraction, error) {
	if strings.TrimSpace(text) == "" {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: empty text")
	}
	var sb strings.Builder
	sb.WriteString(resumeExtractionPrompt())
	sb.WriteString("\n## RESUME TEXT\n")
	sb.WriteString(text)
	response, err := o.gen.GenerateContent(ctx, sb.String())
	if err != nil {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: %w", err)
	}
	return parseResumeExtraction(response)
}

func parseResumeExtraction(response string) (models.ResumeExtraction, error) {
	jsonStr, err := sliceJSON(response)
	if err != nil {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: %w", err)
	}
	var extraction models.ResumeExtraction
	if err := json.Unmarshal([]byte(jsonStr), &extraction); err != nil {
		return models.ResumeExtraction{}, fmt.Errorf("extract resume: failed to unmarshal JSON: %w", err)
	}
	return extraction, nil
}

// JudgeMissing asks the model which required fields are still missing
// from the conversation so far. The answer is advisory: the
// deterministic evaluator decides, this only enriches the reply prompt.
func (o *Oracle) JudgeMissing(ctx context.Context, state models.ThreadState, reqs []models.FieldRequirement) (models.MissingJudgment, error) {
	var sb strings.Builder
	sb.WriteString("You are an expert HR analyst screening a job application conversation.\n\n")

	sb.WriteString("## REQUIRED INFORMATION\n")
	for _, req := range reqs {
		if req.Required {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", req.Name, req.Description))
		}
	}

	sb.WriteString("\n## NICE TO HAVE (never required)\n")
	for _, opt := range schema.Optional() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", opt.Name, opt.Description))
	}

	sb.WriteString("\n## DISQUALIFYING FACTORS (note if present, do not decide)\n")
	for _, d := range schema.DisqualifyingFactors() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Name, d.Description))
	}

	sb.WriteString("\n## INFORMATION COLLECTED SO FAR\n")
	sb.WriteString(describeFields(state.Fields))

	sb.WriteString("\n## CONVERSATION\n")
	for _, turn := range state.Turns {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", turn.Role, turn.Content))
	}

	sb.WriteString("\nDecide which required items are still missing.\n")
	sb.WriteString("Provide your judgment in the following JSON format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "missing_information": [{"name": "<field name>", "description": "<why it is needed>"}],` + "\n")
	sb.WriteString(`  "application_complete": <true|false>` + "\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Return ONLY the JSON object, no additional text.\n")

	response, err := o.gen.GenerateContent(ctx, sb.String())
	if err != nil {
		return models.MissingJudgment{}, fmt.Errorf("judge missing: %w", err)
	}

	jsonStr, err := sliceJSON(response)
	if err != nil {
		return models.MissingJudgment{}, fmt.Errorf("judge missing: %w", err)
	}
	var judgment models.MissingJudgment
	if err := json.Unmarshal([]byte(jsonStr), &judgment); err != nil {
		return models.MissingJudgment{}, fmt.Errorf("judge missing: failed to unmarshal JSON: %w", err)
	}
	return judgment, nil
}

// ReplyRequest carries everything the reply drafter needs.
type ReplyRequest struct {
	Greeting string
	Subject  string
	Missing  []models.FieldRequirement
	Complete bool
}

// DraftReply asks the model to write the next email to the applicant:
// either a request for the missing items or the completion confirmation.
func (o *Oracle) DraftReply(ctx context.Context, req ReplyRequest) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are a professional and friendly HR assistant at ARx Media responding to a job applicant.\n\n")
	sb.WriteString(fmt.Sprintf("Original subject: %s\n", req.Subject))
	sb.WriteString(fmt.Sprintf("Greet the applicant as: %s\n\n", req.Greeting))

	if req.Complete {
		sb.WriteString("The application now has everything we asked for.\n")
		sb.WriteString("Write a short confirmation email: thank them, state that their application is complete ")
		sb.WriteString("and has been forwarded to the hiring team, and say they will hear back about next steps.\n")
	} else {
		sb.WriteString("The application is still missing the following required items:\n")
		for _, m := range req.Missing {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", m.Name, m.Description))
		}
		sb.WriteString("\nWrite a short, polite email asking the applicant to provide exactly these items.\n")
		sb.WriteString("List them as bullet points. Do not ask for anything already provided.\n")
	}

	sb.WriteString("\nSign off as:\nARx Media Recruitment Team\n")
	sb.WriteString("Return ONLY the email body, no subject line and no commentary.\n")

	reply, err := o.gen.GenerateContent(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("draft reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("draft reply: empty response")
	}
	return reply, nil
}

// SummarizeBackground condenses web search results about an applicant
// into a short note for the HR operator.
func (o *Oracle) SummarizeBackground(ctx context.Context, name, email string, results []models.SearchResult) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are assisting an HR team with a routine public-web check on a job applicant.\n\n")
	sb.WriteString(fmt.Sprintf("Applicant: %s <%s>\n\n", name, email))
	sb.WriteString("## SEARCH RESULTS\n")
	if len(results) == 0 {
		sb.WriteString("(no results found)\n")
	}
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", r.Title, r.URL, r.Content))
	}
	sb.WriteString("\nSummarize in at most five sentences what these results say about the applicant's ")
	sb.WriteString("professional presence. Note explicitly if the results likely refer to someone else ")
	sb.WriteString("or if nothing relevant was found. Do not speculate beyond the results.\n")

	summary, err := o.gen.GenerateContent(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("summarize background: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

func describeFields(fields models.Fields) string {
	if len(fields) == 0 {
		return "(nothing collected yet)\n"
	}
	var sb strings.Builder
	for name, v := range fields {
		switch {
		case len(v.Entries) > 0:
			sb.WriteString(fmt.Sprintf("- %s: %d entr(y/ies) on record\n", name, len(v.Entries)))
		case v.Text != "":
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, v.Text))
		case v.Present:
			sb.WriteString(fmt.Sprintf("- %s: provided\n", name))
		}
	}
	return sb.String()
}

// sliceJSON finds the JSON object in a model response that may carry
// extra prose or markdown fences around it.
func sliceJSON(response string) (string, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("no JSON found in response")
	}
	return response[startIdx : endIdx+1], nil
}

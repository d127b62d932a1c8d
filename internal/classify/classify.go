// Package classify decides whether an inbound email is a job
// application. The rules are deterministic keyword and attachment
// heuristics; anything ambiguous is treated as not an application.
package classify

import (
	"strings"

	"github.com/arxmedia/resume-screener/internal/extract"
	"github.com/arxmedia/resume-screener/internal/models"
)

var subjectKeywords = []string{
	"application",
	"apply",
	"applying",
	"job",
	"position",
	"resume",
	"cv",
	"candidate",
	"opportunity",
	"career",
	"vacancy",
	"hiring",
}

var bodyKeywords = []string{
	"i am applying",
	"i'm applying",
	"i would like to apply",
	"job application",
	"applying for",
	"interested in the position",
	"interested in the role",
	"consider my application",
	"attached is my resume",
	"attached my resume",
	"please find my resume",
	"my cv",
	"my resume",
	"cover letter",
}

// backgroundCheckPrefix marks the notification emails this service sends
// to the operator; they must never be treated as applications.
const backgroundCheckPrefix = "background check results:"

// Result is the classification outcome with the rule that fired.
type Result struct {
	IsApplication bool
	Reason        string
}

// IsOperatorMessage reports whether the email comes from the configured
// HR address or is one of our own background check notifications. Such
// messages skip the screening pipeline entirely.
func IsOperatorMessage(msg models.EmailMessage, hrEmail string) bool {
	if hrEmail != "" && strings.EqualFold(strings.TrimSpace(msg.SenderEmail), strings.TrimSpace(hrEmail)) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(msg.Subject)), backgroundCheckPrefix)
}

// Classify applies the application heuristics to one email.
func Classify(msg models.EmailMessage) Result {
	subject := strings.ToLower(msg.Subject)
	for _, kw := range subjectKeywords {
		if strings.Contains(subject, kw) {
			return Result{IsApplication: true, Reason: "subject keyword: " + kw}
		}
	}

	body := strings.ToLower(msg.Body)
	for _, kw := range bodyKeywords {
		if strings.Contains(body, kw) {
			return Result{IsApplication: true, Reason: "body keyword: " + kw}
		}
	}

	if extract.HasResumeAttachment(msg.Attachments) {
		return Result{IsApplication: true, Reason: "resume attachment"}
	}

	return Result{Reason: "no application signals"}
}

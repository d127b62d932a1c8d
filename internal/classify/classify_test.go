package classify

import (
	"testing"

	"github.com/arxmedia/resume-screener/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  models.EmailMessage
		want bool
	}{
		{
			name: "subject says application",
			msg:  models.EmailMessage{Subject: "Application for Software Engineer"},
			want: true,
		},
		{
			name: "subject mentions position",
			msg:  models.EmailMessage{Subject: "Re: Marketing Position"},
			want: true,
		},
		{
			name: "body says applying",
			msg: models.EmailMessage{
				Subject: "Hello",
				Body:    "Hi, I am applying for the open role at your company.",
			},
			want: true,
		},
		{
			name: "body mentions resume",
			msg: models.EmailMessage{
				Subject: "Introduction",
				Body:    "Please find my resume attached for your review.",
			},
			want: true,
		},
		{
			name: "resume attachment only",
			msg: models.EmailMessage{
				Subject:     "Hello there",
				Body:        "See attached.",
				Attachments: []models.Attachment{{Filename: "jane_resume.pdf", ContentType: "application/pdf"}},
			},
			want: true,
		},
		{
			name: "newsletter",
			msg: models.EmailMessage{
				Subject: "Your weekly digest",
				Body:    "Here is what happened this week.",
			},
			want: false,
		},
		{
			name: "ambiguous greeting",
			msg: models.EmailMessage{
				Subject: "Hi",
				Body:    "Just checking in.",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			if got.IsApplication != tt.want {
				t.Errorf("Classify() = %v (%s), want %v", got.IsApplication, got.Reason, tt.want)
			}
		})
	}
}

func TestIsOperatorMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.EmailMessage
		hrEmail string
		want    bool
	}{
		{
			name:    "from HR address",
			msg:     models.EmailMessage{SenderEmail: "hr@arxmedia.com"},
			hrEmail: "hr@arxmedia.com",
			want:    true,
		},
		{
			name:    "HR address case insensitive",
			msg:     models.EmailMessage{SenderEmail: "HR@ArxMedia.com"},
			hrEmail: "hr@arxmedia.com",
			want:    true,
		},
		{
			name: "own background check notification",
			msg: models.EmailMessage{
				SenderEmail: "screener@arxmedia.com",
				Subject:     "Background Check Results: Jane Doe",
			},
			hrEmail: "hr@arxmedia.com",
			want:    true,
		},
		{
			name:    "regular applicant",
			msg:     models.EmailMessage{SenderEmail: "jane@example.com", Subject: "Application"},
			hrEmail: "hr@arxmedia.com",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOperatorMessage(tt.msg, tt.hrEmail); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

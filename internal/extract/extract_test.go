package extract

import (
	"reflect"
	"testing"

	"github.com/arxmedia/resume-screener/internal/models"
)

func TestIsNegativeAssertion(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"N/A", true},
		{"none", true},
		{"Not specified", true},
		{"Phone number not provided", true},
		{"The resume lacks education details", true},
		{"Email does not contain work experience", true},
		{"No education listed", true},
		{"Jane Doe", false},
		{"+1 (555) 123-4567", false},
		{"BSc Computer Science, MIT", false},
		{"Software Engineer at Acme for 5 years", false},
	}

	for _, tt := range tests {
		if got := IsNegativeAssertion(tt.input); got != tt.want {
			t.Errorf("IsNegativeAssertion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFromEmailPhone(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"labelled with colon", "You can reach me.\nPhone: +1 555 123 4567\nThanks", "+1 555 123 4567"},
		{"mobile number", "Mobile number: (020) 7946-0958", "(020) 7946-0958"},
		{"cell shorthand", "cell 07911 123456", "07911 123456"},
		{"no label", "call me at 5551234567", ""},
		{"too short", "Phone: 12345", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := FromEmail(models.EmailMessage{Body: tt.body})
			got := fields[models.FieldPhoneNumber].Text
			if got != tt.want {
				t.Errorf("phone = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromEmailEducation(t *testing.T) {
	fields := FromEmail(models.EmailMessage{
		Body: "Education: BSc in Physics from Nairobi University 2019\nRegards",
	})
	v := fields[models.FieldEducation]
	if len(v.Entries) != 1 {
		t.Fatalf("education entries = %d, want 1", len(v.Entries))
	}
	if v.Entries[0].Description == "" {
		t.Error("education description is empty")
	}
}

func TestFromEmailSignoffOverridesSender(t *testing.T) {
	fields := FromEmail(models.EmailMessage{
		SenderName:  "excited applicant",
		SenderEmail: "jane@example.com",
		Body:        "Please find my application attached.\n\nSincerely,\nJane Doe",
	})
	if got := fields[models.FieldFullName].Text; got != "Jane Doe" {
		t.Errorf("full name = %q, want %q", got, "Jane Doe")
	}
	if got := fields[models.FieldEmailAddress].Text; got != "jane@example.com" {
		t.Errorf("email = %q, want %q", got, "jane@example.com")
	}
}

func TestFromEmailSignoffKeepsAccents(t *testing.T) {
	fields := FromEmail(models.EmailMessage{
		SenderEmail: "elodie@example.com",
		Body:        "Please find my application attached.\n\nSincerely,\nélodie dupont",
	})
	if got := fields[models.FieldFullName].Text; got != "Élodie Dupont" {
		t.Errorf("full name = %q, want %q", got, "Élodie Dupont")
	}
}

func TestHasResumeAttachment(t *testing.T) {
	tests := []struct {
		name        string
		attachments []models.Attachment
		want        bool
	}{
		{"pdf", []models.Attachment{{Filename: "doc.pdf", ContentType: "application/pdf"}}, true},
		{"docx", []models.Attachment{{Filename: "x.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}}, true},
		{"named resume", []models.Attachment{{Filename: "My_Resume.png", ContentType: "image/png"}}, true},
		{"named cv", []models.Attachment{{Filename: "jane-cv-final.jpg", ContentType: "image/jpeg"}}, true},
		{"photo", []models.Attachment{{Filename: "holiday.jpg", ContentType: "image/jpeg"}}, false},
		{"none", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasResumeAttachment(tt.attachments); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	m := models.Fields{
		models.FieldFullName: {Text: "Jane Doe"},
		models.FieldResume:   {Present: true},
		models.FieldEducation: {Entries: []models.EntryRecord{
			{Degree: "BSc", Institution: "MIT"},
		}},
	}
	got := Merge(m, m)
	if !reflect.DeepEqual(got, m) {
		t.Errorf("Merge(m, m) = %#v, want %#v", got, m)
	}
}

func TestMergeNeverRegresses(t *testing.T) {
	base := models.Fields{
		models.FieldFullName:    {Text: "Jane Doe"},
		models.FieldPhoneNumber: {Text: "+1 555 123 4567"},
	}

	// An update that says nothing about a field leaves it alone, and a
	// negative assertion never erases a real value.
	update := models.Fields{
		models.FieldPhoneNumber: {Text: "Not provided"},
	}
	got := Merge(base, update)
	if got[models.FieldFullName].Text != "Jane Doe" {
		t.Error("absent field regressed")
	}
	if got[models.FieldPhoneNumber].Text != "+1 555 123 4567" {
		t.Errorf("phone regressed to %q", got[models.FieldPhoneNumber].Text)
	}
}

func TestMergePresenceNeverClobbersRicherValue(t *testing.T) {
	base := models.Fields{
		models.FieldEducation: {Entries: []models.EntryRecord{{Degree: "MSc", Institution: "KTH"}}},
	}
	got := Merge(base, models.Fields{models.FieldEducation: {Present: true}})
	if len(got[models.FieldEducation].Entries) != 1 {
		t.Error("presence flag overwrote structured entries")
	}
}

func TestMergePrefersRicherValue(t *testing.T) {
	base := models.Fields{
		models.FieldEducation: {Entries: []models.EntryRecord{{Description: "degree from Nairobi University"}}},
	}
	update := models.Fields{
		models.FieldEducation: {Entries: []models.EntryRecord{{Degree: "BSc Physics", Institution: "Nairobi University", Years: "2019"}}},
	}
	got := Merge(base, update)
	if len(got[models.FieldEducation].Entries) != 2 {
		t.Fatalf("entries = %d, want union of 2", len(got[models.FieldEducation].Entries))
	}

	// Text beats bare presence.
	got = Merge(
		models.Fields{models.FieldResume: {Present: true}},
		models.Fields{models.FieldFullName: {Text: "Jane Doe"}},
	)
	if got[models.FieldFullName].Text != "Jane Doe" || !got[models.FieldResume].Present {
		t.Errorf("unexpected merge result: %#v", got)
	}
}

func TestMergeLaterTextWins(t *testing.T) {
	// The oracle pass is merged after the regex pass and should win on
	// equal-richness text.
	got := Merge(
		models.Fields{models.FieldFullName: {Text: "excited"}},
		models.Fields{models.FieldFullName: {Text: "Jane Doe"}},
	)
	if got[models.FieldFullName].Text != "Jane Doe" {
		t.Errorf("full name = %q, want oracle value", got[models.FieldFullName].Text)
	}
}

func TestFromResumeDropsNegativeEntries(t *testing.T) {
	x := models.ResumeExtraction{
		PersonalInformation: models.PersonalInfo{
			Name:  "Jane Doe",
			Email: "not provided",
			Phone: "+254 700 000000",
		},
		Education: []models.EducationEntry{
			{Degree: "BSc Computer Science", Institution: "University of Nairobi", Year: "2019"},
			{Description: "No other education listed"},
		},
		WorkExperience: []models.ExperienceEntry{
			{Description: "The resume does not contain work experience"},
		},
		Skills: []string{"Go", "SQL", ""},
	}

	fields := FromResume(x)
	if fields[models.FieldFullName].Text != "Jane Doe" {
		t.Errorf("name = %q", fields[models.FieldFullName].Text)
	}
	if _, ok := fields[models.FieldEmailAddress]; ok {
		t.Error("negative email value should be dropped")
	}
	if len(fields[models.FieldEducation].Entries) != 1 {
		t.Errorf("education entries = %d, want 1", len(fields[models.FieldEducation].Entries))
	}
	if _, ok := fields[models.FieldWorkExperience]; ok {
		t.Error("negative experience entry should be dropped")
	}
	if fields[models.FieldSkills].Text != "Go, SQL" {
		t.Errorf("skills = %q", fields[models.FieldSkills].Text)
	}
}

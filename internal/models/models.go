package models

import "time"

// Canonical field names used across extraction, storage and evaluation.
// These match the names the screening requirements are declared with.
const (
	FieldFullName       = "Full Name"
	FieldEmailAddress   = "Email Address"
	FieldPhoneNumber    = "Phone Number"
	FieldResume         = "Resume/CV"
	FieldWorkExperience = "Work Experience"
	FieldEducation      = "Education"
	FieldSkills         = "Skills"
)

// FieldRequirement describes one piece of applicant information the
// screening process asks for.
type FieldRequirement struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// EntryRecord is a structured sub-record for list-valued fields such as
// Education and Work Experience. Only the members relevant to the field
// are populated.
type EntryRecord struct {
	Description string `json:"description,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Years       string `json:"years,omitempty"`
}

// FieldValue is the value of a single applicant field. Exactly one shape
// is meaningful per field: free text (name, phone), a presence flag
// (Resume/CV), or a list of structured entries (Education, Experience).
type FieldValue struct {
	Text    string        `json:"text,omitempty"`
	Present bool          `json:"present,omitempty"`
	Entries []EntryRecord `json:"entries,omitempty"`
}

// Richness ranks how informative a value is. Structured entries beat
// free text, free text beats a bare presence flag. Merging never lets a
// less rich value overwrite a richer one.
func (v FieldValue) Richness() int {
	switch {
	case len(v.Entries) > 0:
		return 3
	case v.Text != "":
		return 2
	case v.Present:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the value carries no information at all.
func (v FieldValue) IsZero() bool {
	return v.Richness() == 0
}

// Fields is an applicant field map keyed by canonical field name.
type Fields map[string]FieldValue

// Clone returns a deep copy so callers can mutate freely.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for name, v := range f {
		if len(v.Entries) > 0 {
			entries := make([]EntryRecord, len(v.Entries))
			copy(entries, v.Entries)
			v.Entries = entries
		}
		out[name] = v
	}
	return out
}

// Turn roles.
const (
	RoleApplicant = "applicant"
	RoleSystem    = "system"
)

// ConversationTurn is one message in a screening conversation. Turns are
// append-only; a turn is never edited after it is recorded.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Disclosed Fields    `json:"disclosed,omitempty"`
}

// Thread statuses.
const (
	StatusActive    = "active"
	StatusComplete  = "complete"
	StatusAbandoned = "abandoned"
)

// ThreadState is the full per-thread screening state: the ordered
// conversation and the cumulative field map.
type ThreadState struct {
	ThreadID  string             `json:"thread_id"`
	Status    string             `json:"status"`
	Turns     []ConversationTurn `json:"turns"`
	Fields    Fields             `json:"fields"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Verdict is the completeness judgment for a thread at a point in time.
// It is derived, never stored.
type Verdict struct {
	Missing  []FieldRequirement `json:"missing"`
	Complete bool               `json:"complete"`
}

// Attachment describes an email attachment as reported by the mailbox.
type Attachment struct {
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	AttachmentID string `json:"attachment_id"`
}

// EmailMessage is a parsed inbound email.
type EmailMessage struct {
	MessageID   string       `json:"message_id"`
	ThreadID    string       `json:"thread_id"`
	SenderName  string       `json:"sender_name"`
	SenderEmail string       `json:"sender_email"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`
}

// PersonalInfo is the contact block of a resume extraction.
type PersonalInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// EducationEntry is one education record extracted from a resume.
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Description string `json:"description"`
}

// ExperienceEntry is one work-experience record extracted from a resume.
type ExperienceEntry struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Years       string `json:"years"`
	Description string `json:"description"`
}

// CertificationEntry is one certification record extracted from a resume.
type CertificationEntry struct {
	Title  string `json:"title"`
	Issuer string `json:"issuer"`
	Year   string `json:"year"`
}

// ResumeExtraction is the structured output of the vision/text model for
// one resume document or page.
type ResumeExtraction struct {
	PersonalInformation PersonalInfo         `json:"personal_information"`
	Education           []EducationEntry     `json:"education"`
	WorkExperience      []ExperienceEntry    `json:"work_experience"`
	Skills              []string             `json:"skills"`
	Certifications      []CertificationEntry `json:"certifications"`
}

// MissingJudgment is the model's advisory opinion on what is still
// missing from an application. The deterministic evaluator remains
// authoritative; this only feeds prompt context.
type MissingJudgment struct {
	MissingInformation  []FieldRequirement `json:"missing_information"`
	ApplicationComplete bool               `json:"application_complete"`
}

// SearchResult is one web search hit used for background checks.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// BackgroundCheck is the result of the post-completion web check for an
// applicant, persisted per thread.
type BackgroundCheck struct {
	ApplicantName  string         `json:"applicant_name"`
	ApplicantEmail string         `json:"applicant_email"`
	NameResults    []SearchResult `json:"name_results"`
	EmailResults   []SearchResult `json:"email_results"`
	Summary        string         `json:"summary"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// Package extract turns raw email text, attachment metadata and model
// output into canonical applicant field maps, and owns the merge policy
// that accumulates them turn over turn.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arxmedia/resume-screener/internal/models"
)

var (
	phonePattern     = regexp.MustCompile(`(?i)(?:phone|mobile|cell|tel)(?:\s*(?:number|#))?\s*[:;-]?\s*([+\d\s()\-]{7,})`)
	educationPattern = regexp.MustCompile(`(?i)(?:education|degree|university|college)(?:\s*[:;-])?\s*([^,\n]+(?:university|college|degree|bachelor|master|phd)[^,\n]+)`)

	signoffPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sincerely,\s*(\p{L}[\p{L}\s]+)`),
		regexp.MustCompile(`(?i)best regards,\s*(\p{L}[\p{L}\s]+)`),
		regexp.MustCompile(`(?i)regards,\s*(\p{L}[\p{L}\s]+)`),
		regexp.MustCompile(`(?i)thank you,\s*(\p{L}[\p{L}\s]+)`),
		regexp.MustCompile(`(?i)best,\s*(\p{L}[\p{L}\s]+)`),
		regexp.MustCompile(`(?i)yours,\s*(\p{L}[\p{L}\s]+)`),
	}
)

// negativePhrases are the ways the model (or an applicant) states that a
// field is absent. A value matching one of these must not count as the
// field being filled, even though the string itself is non-empty.
var negativePhrases = []string{
	"not specified",
	"not provided",
	"not available",
	"not present",
	"not mentioned",
	"not included",
	"no education",
	"no work experience",
	"no experience",
	"none provided",
	"none listed",
	"lacks",
	"does not contain",
	"unreadable",
	"appears blank",
	"is missing",
	"missing education",
	"missing experience",
}

// IsNegativeAssertion reports whether s describes the absence of a
// field rather than its value. Whitespace-only strings count as absent.
func IsNegativeAssertion(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" || t == "-" || t == "n/a" || t == "none" {
		return true
	}
	for _, phrase := range negativePhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}

// isNegativeValue extends IsNegativeAssertion to whole field values: an
// entry list is negative when every entry is.
func isNegativeValue(v models.FieldValue) bool {
	if len(v.Entries) > 0 {
		for _, e := range v.Entries {
			if !isNegativeEntry(e) {
				return false
			}
		}
		return true
	}
	if v.Text != "" {
		return IsNegativeAssertion(v.Text)
	}
	return !v.Present
}

func isNegativeEntry(e models.EntryRecord) bool {
	// An entry with any concrete member is real even if its free-text
	// description reads like a disclaimer.
	for _, s := range []string{e.Degree, e.Institution, e.Title, e.Company} {
		if strings.TrimSpace(s) != "" && !IsNegativeAssertion(s) {
			return false
		}
	}
	return IsNegativeAssertion(e.Description)
}

// Merge folds src into dst and returns the result. dst is not modified.
// The policy is union with preference for the richer value: a field
// present in dst is only replaced by a src value of equal or greater
// richness, so a bare presence flag never clobbers real content and no
// field ever regresses from present to absent. Entry lists are unioned
// with duplicates dropped, which makes the merge idempotent.
func Merge(dst, src models.Fields) models.Fields {
	out := dst.Clone()
	if out == nil {
		out = models.Fields{}
	}
	for name, v := range src {
		if v.IsZero() || isNegativeValue(v) {
			continue
		}
		cur, ok := out[name]
		if !ok || cur.IsZero() {
			out[name] = v
			continue
		}
		switch {
		case v.Richness() > cur.Richness():
			out[name] = v
		case v.Richness() == cur.Richness() && len(v.Entries) > 0:
			out[name] = models.FieldValue{Entries: unionEntries(cur.Entries, v.Entries)}
		case v.Richness() == cur.Richness() && v.Text != "":
			// Later sources are more trusted (the oracle is merged
			// after the pattern pass), so equal-richness text wins.
			out[name] = v
		}
	}
	return out
}

func unionEntries(a, b []models.EntryRecord) []models.EntryRecord {
	out := make([]models.EntryRecord, 0, len(a)+len(b))
	seen := make(map[models.EntryRecord]bool, len(a)+len(b))
	for _, e := range append(append([]models.EntryRecord{}, a...), b...) {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// FromEmail runs the deterministic pattern pass over an inbound email:
// sender identity, keyword-anchored phone and education capture, sign-off
// name detection and resume-attachment presence.
func FromEmail(msg models.EmailMessage) models.Fields {
	fields := models.Fields{}

	if name := strings.TrimSpace(msg.SenderName); name != "" && !strings.EqualFold(name, "unknown") {
		fields[models.FieldFullName] = models.FieldValue{Text: name}
	}
	if email := strings.TrimSpace(msg.SenderEmail); email != "" {
		fields[models.FieldEmailAddress] = models.FieldValue{Text: email}
	}

	// A signed-off full name is a stronger signal than the From header.
	if name := signoffName(msg.Body); name != "" {
		fields[models.FieldFullName] = models.FieldValue{Text: name}
	}

	if m := phonePattern.FindStringSubmatch(msg.Body); m != nil {
		if phone := strings.TrimSpace(m[1]); phone != "" {
			fields[models.FieldPhoneNumber] = models.FieldValue{Text: phone}
		}
	}

	if m := educationPattern.FindStringSubmatch(msg.Body); m != nil {
		desc := strings.TrimSpace(m[1])
		if desc != "" && !IsNegativeAssertion(desc) {
			fields[models.FieldEducation] = models.FieldValue{
				Entries: []models.EntryRecord{{Description: desc}},
			}
		}
	}

	if HasResumeAttachment(msg.Attachments) {
		fields[models.FieldResume] = models.FieldValue{Present: true}
	}

	return fields
}

// HasResumeAttachment reports whether any attachment looks like a resume,
// by document content type or by filename.
func HasResumeAttachment(attachments []models.Attachment) bool {
	for _, a := range attachments {
		switch a.ContentType {
		case "application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
			return true
		}
		name := strings.ToLower(a.Filename)
		if strings.Contains(name, "resume") || strings.Contains(name, "cv") || strings.Contains(name, "curriculum") {
			return true
		}
	}
	return false
}

// signoffName scans the email body for a closing such as "Sincerely,
// Jane Doe" and returns the title-cased name, or "".
func signoffName(body string) string {
	for _, p := range signoffPatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		// Keep it to the first line in case the regex ran past the name.
		if idx := strings.IndexByte(name, '\n'); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		if name == "" || IsNegativeAssertion(name) {
			continue
		}
		return titleCase(name)
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FromResume maps the model's structured resume extraction onto the
// canonical field map, dropping whitespace-only values and entries that
// merely describe a field's absence.
func FromResume(x models.ResumeExtraction) models.Fields {
	fields := models.Fields{}

	p := x.PersonalInformation
	if name := strings.TrimSpace(p.Name); name != "" && !IsNegativeAssertion(name) {
		fields[models.FieldFullName] = models.FieldValue{Text: name}
	}
	if email := strings.TrimSpace(p.Email); email != "" && !IsNegativeAssertion(email) {
		fields[models.FieldEmailAddress] = models.FieldValue{Text: email}
	}
	if phone := strings.TrimSpace(p.Phone); phone != "" && !IsNegativeAssertion(phone) {
		fields[models.FieldPhoneNumber] = models.FieldValue{Text: phone}
	}

	var education []models.EntryRecord
	for _, e := range x.Education {
		entry := models.EntryRecord{
			Description: strings.TrimSpace(e.Description),
			Degree:      strings.TrimSpace(e.Degree),
			Institution: strings.TrimSpace(e.Institution),
			Years:       strings.TrimSpace(e.Year),
		}
		if isNegativeEntry(entry) {
			continue
		}
		education = append(education, entry)
	}
	if len(education) > 0 {
		fields[models.FieldEducation] = models.FieldValue{Entries: education}
	}

	var experience []models.EntryRecord
	for _, e := range x.WorkExperience {
		entry := models.EntryRecord{
			Description: strings.TrimSpace(e.Description),
			Title:       strings.TrimSpace(e.JobTitle),
			Company:     strings.TrimSpace(e.Company),
			Years:       strings.TrimSpace(e.Years),
		}
		if isNegativeEntry(entry) {
			continue
		}
		experience = append(experience, entry)
	}
	if len(experience) > 0 {
		fields[models.FieldWorkExperience] = models.FieldValue{Entries: experience}
	}

	var skills []string
	for _, s := range x.Skills {
		if s = strings.TrimSpace(s); s != "" && !IsNegativeAssertion(s) {
			skills = append(skills, s)
		}
	}
	if len(skills) > 0 {
		fields[models.FieldSkills] = models.FieldValue{Text: strings.Join(skills, ", ")}
	}

	return fields
}

package ingestion

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/arxmedia/resume-screener/internal/logging"
	"github.com/arxmedia/resume-screener/internal/models"
)

func TestParseFromHeader(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		wantName  string
		wantEmail string
	}{
		{"name and address", "Jane Doe <jane@example.com>", "Jane Doe", "jane@example.com"},
		{"quoted name", `"Doe, Jane" <jane@example.com>`, "Doe, Jane", "jane@example.com"},
		{"bare address", "jane@example.com", "", "jane@example.com"},
		{"address in brackets only", "<jane@example.com>", "", "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, email := parseFromHeader(tt.from)
			if name != tt.wantName || email != tt.wantEmail {
				t.Errorf("parseFromHeader(%q) = (%q, %q), want (%q, %q)", tt.from, name, email, tt.wantName, tt.wantEmail)
			}
		})
	}
}

func TestCollectPartsNestedMultipart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("I am applying for the role."))},
					},
					{
						MimeType: "text/html",
						Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>"))},
					},
				},
			},
			{
				MimeType: "application/pdf",
				Filename: "resume.pdf",
				Body:     &gmail.MessagePartBody{AttachmentId: "att-1"},
			},
		},
	}

	var body strings.Builder
	var attachments []models.Attachment
	collectParts(payload, &body, &attachments)

	if !strings.Contains(body.String(), "I am applying") {
		t.Errorf("body = %q, want applying text", body.String())
	}
	if strings.Contains(body.String(), "html") {
		t.Error("html part should be ignored")
	}
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
	if attachments[0].Filename != "resume.pdf" || attachments[0].AttachmentID != "att-1" {
		t.Errorf("attachment = %+v", attachments[0])
	}
}

func TestListUnreadDrainsAllPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"messages":[{"id":"m3"},{"id":"m2"}],"nextPageToken":"page-2"}`)
			return
		}
		fmt.Fprint(w, `{"messages":[{"id":"m1"}]}`)
	}))
	defer server.Close()

	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	gh := &GmailHandler{service: srv, logger: logging.Nop()}

	ids, err := gh.ListUnread(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"m1", "m2", "m3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q (oldest first across pages)", i, ids[i], want[i])
		}
	}
}

func TestBuildRawMessageDecodes(t *testing.T) {
	raw := buildRawMessage("jane@example.com", "Re: Application", "Hello Jane")
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw message is not base64url: %v", err)
	}
	text := string(decoded)
	for _, want := range []string{"To: jane@example.com", "Subject: Re: Application", "Hello Jane"} {
		if !strings.Contains(text, want) {
			t.Errorf("raw message missing %q:\n%s", want, text)
		}
	}
}

func TestIsBinaryData(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"plain text", "Dear hiring manager, I am applying.", false},
		{"pdf marker", "%PDF-1.7 rest of document", true},
		{"zip marker", "PK\x03\x04 docx payload", true},
		{"mostly control bytes", strings.Repeat("\x00\x01", 500), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinaryData(tt.content); got != tt.want {
				t.Errorf("IsBinaryData() = %v, want %v", got, tt.want)
			}
		})
	}
}

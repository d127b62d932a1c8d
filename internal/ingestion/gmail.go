// Package ingestion talks to the applicant-facing mailbox and prepares
// attachments for extraction.
package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/arxmedia/resume-screener/internal/models"
)

const gmailUser = "me"

// GmailHandler manages Gmail operations for the screening mailbox.
type GmailHandler struct {
	service *gmail.Service
	logger  *zap.SugaredLogger
}

// NewGmailHandler creates a Gmail handler using OAuth credentials at
// credentialsPath and a cached token at tokenPath. The first run walks
// the installed-app authorization flow on the terminal.
func NewGmailHandler(ctx context.Context, credentialsPath, tokenPath string, logger *zap.SugaredLogger) (*GmailHandler, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := getClient(config, tokenPath)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailHandler{service: srv, logger: logger}, nil
}

// getClient retrieves a token, saves it, then returns the generated client
func getClient(config *oauth2.Config, tokFile string) *http.Client {
	tok, err := tokenFromFile(tokFile)
	if err != nil {
		tok = getTokenFromWeb(config)
		saveToken(tokFile, tok)
	}
	return config.Client(context.Background(), tok)
}

// getTokenFromWeb requests a token from the web
func getTokenFromWeb(config *oauth2.Config) *oauth2.Token {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		log.Fatalf("Unable to read authorization code: %v", err)
	}

	tok, err := config.Exchange(context.TODO(), authCode)
	if err != nil {
		log.Fatalf("Unable to retrieve token from web: %v", err)
	}
	return tok
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) {
	fmt.Printf("Saving credential file to: %s\n", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		log.Fatalf("Unable to cache oauth token: %v", err)
	}
	defer f.Close()
	json.NewEncoder(f).Encode(token)
}

// ListUnread returns the IDs of unread inbox messages, oldest first. A
// backlog spanning multiple result pages is drained in one call.
func (gh *GmailHandler) ListUnread(ctx context.Context) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := gh.service.Users.Messages.List(gmailUser).Q("is:unread in:inbox").Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve messages: %w", err)
		}
		for _, m := range r.Messages {
			ids = append(ids, m.Id)
		}
		if r.NextPageToken == "" {
			break
		}
		pageToken = r.NextPageToken
	}

	// The API returns newest first; reverse so threads progress in order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// GetMessage fetches and parses one message: headers, the plain-text
// body and attachment metadata.
func (gh *GmailHandler) GetMessage(ctx context.Context, messageID string) (models.EmailMessage, error) {
	message, err := gh.service.Users.Messages.Get(gmailUser, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return models.EmailMessage{}, fmt.Errorf("unable to retrieve message %s: %w", messageID, err)
	}

	msg := models.EmailMessage{
		MessageID: message.Id,
		ThreadID:  message.ThreadId,
	}

	for _, header := range message.Payload.Headers {
		switch header.Name {
		case "From":
			msg.SenderName, msg.SenderEmail = parseFromHeader(header.Value)
		case "Subject":
			msg.Subject = header.Value
		}
	}

	var body strings.Builder
	collectParts(message.Payload, &body, &msg.Attachments)
	msg.Body = body.String()

	return msg, nil
}

// collectParts walks the MIME tree accumulating text/plain content and
// attachment metadata. Multipart containers nest arbitrarily deep.
func collectParts(part *gmail.MessagePart, body *strings.Builder, attachments *[]models.Attachment) {
	if part == nil {
		return
	}

	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		*attachments = append(*attachments, models.Attachment{
			Filename:     part.Filename,
			ContentType:  part.MimeType,
			AttachmentID: part.Body.AttachmentId,
		})
	} else if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			body.Write(data)
			body.WriteString("\n")
		}
	}

	for _, child := range part.Parts {
		collectParts(child, body, attachments)
	}
}

// parseFromHeader splits a "Name <email@example.com>" From header.
func parseFromHeader(from string) (name, email string) {
	if idx := strings.Index(from, "<"); idx >= 0 {
		name = strings.TrimSpace(from[:idx])
		email = strings.TrimSpace(strings.TrimSuffix(from[idx+1:], ">"))
		name = strings.Trim(name, `"`)
		return name, email
	}
	return "", strings.TrimSpace(from)
}

// DownloadAttachment fetches the raw bytes of one attachment.
func (gh *GmailHandler) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	attachment, err := gh.service.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve attachment: %w", err)
	}
	data, err := base64.URLEncoding.DecodeString(attachment.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode attachment: %w", err)
	}
	return data, nil
}

// SendReply sends a threaded reply to the applicant on the given thread.
func (gh *GmailHandler) SendReply(ctx context.Context, threadID, to, subject, body string) error {
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	raw := buildRawMessage(to, subject, body)
	_, err := gh.service.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw:      raw,
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send reply: %w", err)
	}
	gh.logger.Infow("reply sent", "thread_id", threadID, "to", to)
	return nil
}

// SendTo sends a standalone email, used for operator notifications.
func (gh *GmailHandler) SendTo(ctx context.Context, to, subject, body string) error {
	raw := buildRawMessage(to, subject, body)
	_, err := gh.service.Users.Messages.Send(gmailUser, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to send email: %w", err)
	}
	gh.logger.Infow("email sent", "to", to, "subject", subject)
	return nil
}

// MarkRead removes the UNREAD label from a message.
func (gh *GmailHandler) MarkRead(ctx context.Context, messageID string) error {
	_, err := gh.service.Users.Messages.Modify(gmailUser, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to mark message read: %w", err)
	}
	return nil
}

// buildRawMessage assembles a base64url-encoded RFC 822 message the way
// the Gmail send API expects.
func buildRawMessage(to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(sb.String()))
}

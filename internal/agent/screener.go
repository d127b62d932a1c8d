// Package agent orchestrates the screening pipeline: it polls the
// mailbox, drives extraction and evaluation per thread, replies to
// applicants and hands completed applications to the operator.
package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arxmedia/resume-screener/internal/classify"
	"github.com/arxmedia/resume-screener/internal/evaluate"
	"github.com/arxmedia/resume-screener/internal/extract"
	"github.com/arxmedia/resume-screener/internal/ingestion"
	"github.com/arxmedia/resume-screener/internal/llm"
	"github.com/arxmedia/resume-screener/internal/models"
	"github.com/arxmedia/resume-screener/internal/research"
	"github.com/arxmedia/resume-screener/internal/schema"
)

// Failure classes of the pipeline. Callers test with errors.Is.
var (
	ErrExtraction  = errors.New("extraction failure")
	ErrPersistence = errors.New("persistence failure")
	ErrDelivery    = errors.New("delivery failure")
)

// Inbox is the mailbox surface the screener polls and replies through.
type Inbox interface {
	ListUnread(ctx context.Context) ([]string, error)
	GetMessage(ctx context.Context, messageID string) (models.EmailMessage, error)
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	SendReply(ctx context.Context, threadID, to, subject, body string) error
	SendTo(ctx context.Context, to, subject, body string) error
	MarkRead(ctx context.Context, messageID string) error
}

// Oracle is the model surface: extraction, judgment and drafting.
type Oracle interface {
	ExtractResumeImages(ctx context.Context, images [][]byte) (models.ResumeExtraction, error)
	ExtractResumeText(ctx context.Context, text string) (models.ResumeExtraction, error)
	JudgeMissing(ctx context.Context, state models.ThreadState, reqs []models.FieldRequirement) (models.MissingJudgment, error)
	DraftReply(ctx context.Context, req llm.ReplyRequest) (string, error)
	SummarizeBackground(ctx context.Context, name, email string, results []models.SearchResult) (string, error)
}

// Renderer rasterizes resume attachments for the vision extraction.
type Renderer interface {
	RenderPDF(threadID string, pdf []byte) ([][]byte, error)
	Cleanup(threadID string) error
}

// Ledger is the durable per-thread record the screener reads and writes.
type Ledger interface {
	Get(threadID string) (models.ThreadState, error)
	AppendTurn(threadID string, turn models.ConversationTurn) (models.ThreadState, error)
	MergeFields(threadID string, fields models.Fields) (models.ThreadState, error)
	Complete(threadID string) error
	Abandon(threadID string) error
	IsProcessed(messageID string) (bool, error)
	MarkProcessed(messageID string) error
	SaveBackgroundCheck(threadID string, check models.BackgroundCheck) error
	GetBackgroundCheck(threadID string) (models.BackgroundCheck, bool, error)
	ActiveThreads() ([]models.ThreadState, error)
}

// Params carries the screener's collaborators and tunables.
type Params struct {
	Inbox        Inbox
	Oracle       Oracle
	Renderer     Renderer
	Ledger       Ledger
	Searcher     research.Searcher
	HREmail      string
	AbandonAfter time.Duration
	Logger       *zap.SugaredLogger
}

// Screener is the application state machine over the screening mailbox.
type Screener struct {
	inbox        Inbox
	oracle       Oracle
	renderer     Renderer
	store        Ledger
	searcher     research.Searcher
	requirements []models.FieldRequirement
	hrEmail      string
	abandonAfter time.Duration
	logger       *zap.SugaredLogger
}

// NewScreener creates a screener from its collaborators.
func NewScreener(p Params) *Screener {
	return &Screener{
		inbox:        p.Inbox,
		oracle:       p.Oracle,
		renderer:     p.Renderer,
		store:        p.Ledger,
		searcher:     p.Searcher,
		requirements: schema.Requirements(),
		hrEmail:      p.HREmail,
		abandonAfter: p.AbandonAfter,
		logger:       p.Logger,
	}
}

// Run polls the mailbox until the context is cancelled. An in-flight
// cycle finishes before Run returns.
func (s *Screener) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infow("screener started", "interval", interval)
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Errorw("poll cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("screener stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one poll cycle: process every unread message, then
// sweep stale threads.
func (s *Screener) RunOnce(ctx context.Context) error {
	ids, err := s.inbox.ListUnread(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	s.logger.Debugw("poll cycle", "unread", len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.ProcessMessage(ctx, id); err != nil {
			s.logger.Errorw("message processing failed", "message_id", id, "error", err)
		}
	}

	s.abandonStale()
	return nil
}

// ProcessMessage runs the full pipeline for one message. A message that
// was recorded on an earlier cycle but is still unread had its reply
// fail; it is picked up again from the extraction step without
// duplicating the applicant turn.
func (s *Screener) ProcessMessage(ctx context.Context, messageID string) error {
	done, err := s.store.IsProcessed(messageID)
	if err != nil {
		return fmt.Errorf("%w: check processed: %v", ErrPersistence, err)
	}

	msg, err := s.inbox.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message %s: %w", messageID, err)
	}
	s.logger.Infow("processing message",
		"message_id", msg.MessageID,
		"thread_id", msg.ThreadID,
		"from", msg.SenderEmail,
		"subject", msg.Subject,
		"seen_before", done,
	)

	if classify.IsOperatorMessage(msg, s.hrEmail) {
		s.logger.Debugw("skipping operator message", "message_id", messageID)
		return s.retire(ctx, messageID)
	}

	verdict := classify.Classify(msg)
	if !verdict.IsApplication {
		s.logger.Infow("not an application", "message_id", messageID, "reason", verdict.Reason)
		return s.retire(ctx, messageID)
	}
	s.logger.Debugw("classified as application", "reason", verdict.Reason)

	state, err := s.store.Get(msg.ThreadID)
	if err != nil {
		return fmt.Errorf("%w: read thread: %v", ErrPersistence, err)
	}

	// Completed threads are archived; nothing below may mutate them.
	if state.Status == models.StatusComplete {
		return s.revisitCompleted(ctx, msg, state, done)
	}

	disclosed := extract.FromEmail(msg)

	// Resume attachments feed the vision extraction. A failure here is
	// an extraction failure: the applicant turn is still recorded below,
	// but no reply goes out this cycle.
	resumeFields, extractErr := s.extractResume(ctx, msg)
	if extractErr == nil {
		disclosed = extract.Merge(disclosed, resumeFields)
	}

	if done {
		// The turn landed on an earlier cycle whose reply failed. The
		// merge is idempotent, so fold the fields back in and resume
		// from the evaluation.
		state, err = s.store.MergeFields(msg.ThreadID, disclosed)
		if err != nil {
			return fmt.Errorf("%w: merge fields: %v", ErrPersistence, err)
		}
	} else {
		state, err = s.store.AppendTurn(msg.ThreadID, models.ConversationTurn{
			Role:      models.RoleApplicant,
			Content:   msg.Body,
			Disclosed: disclosed,
		})
		if err != nil {
			return fmt.Errorf("%w: append applicant turn: %v", ErrPersistence, err)
		}
		if err := s.store.MarkProcessed(messageID); err != nil {
			return fmt.Errorf("%w: mark processed: %v", ErrPersistence, err)
		}
	}

	if extractErr != nil {
		// Leave the message unread so it is retried next poll.
		return fmt.Errorf("%w: %v", ErrExtraction, extractErr)
	}

	completeness := evaluate.Evaluate(state.Fields, s.requirements)
	s.logger.Infow("evaluated thread",
		"thread_id", msg.ThreadID,
		"complete", completeness.Complete,
		"missing", len(completeness.Missing),
	)

	if completeness.Complete {
		return s.completeThread(ctx, msg, state)
	}
	return s.requestMissing(ctx, msg, state, completeness)
}

// retire marks a non-application message handled.
func (s *Screener) retire(ctx context.Context, messageID string) error {
	if err := s.store.MarkProcessed(messageID); err != nil {
		return fmt.Errorf("%w: mark processed: %v", ErrPersistence, err)
	}
	if err := s.inbox.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("%w: mark read: %v", ErrDelivery, err)
	}
	return nil
}

// extractResume downloads and extracts the first resume-like attachment,
// returning its normalized fields. No attachment means no fields and no
// error.
func (s *Screener) extractResume(ctx context.Context, msg models.EmailMessage) (models.Fields, error) {
	for _, att := range msg.Attachments {
		if !extract.HasResumeAttachment([]models.Attachment{att}) {
			continue
		}

		data, err := s.inbox.DownloadAttachment(ctx, msg.MessageID, att.AttachmentID)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", att.Filename, err)
		}

		var extraction models.ResumeExtraction
		if strings.EqualFold(filepath.Ext(att.Filename), ".pdf") || att.ContentType == "application/pdf" {
			pages, err := s.renderer.RenderPDF(msg.ThreadID, data)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", att.Filename, err)
			}
			extraction, err = s.oracle.ExtractResumeImages(ctx, pages)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", att.Filename, err)
			}
		} else if ingestion.IsBinaryData(string(data)) {
			// A binary non-PDF document (docx and friends) cannot go to the
			// text extraction; record that a resume arrived and move on.
			s.logger.Debugw("binary resume attachment, recording presence only",
				"thread_id", msg.ThreadID, "filename", att.Filename)
			return models.Fields{models.FieldResume: {Present: true}}, nil
		} else {
			extraction, err = s.oracle.ExtractResumeText(ctx, string(data))
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", att.Filename, err)
			}
		}

		fields := extract.FromResume(extraction)
		fields[models.FieldResume] = models.FieldValue{Present: true}
		s.logger.Debugw("resume extracted", "thread_id", msg.ThreadID, "filename", att.Filename, "fields", len(fields))
		return fields, nil
	}
	return nil, nil
}

// requestMissing asks the applicant for the outstanding items.
func (s *Screener) requestMissing(ctx context.Context, msg models.EmailMessage, state models.ThreadState, completeness models.Verdict) error {
	// The model's view of what is missing is advisory context only; a
	// failure here never blocks the deterministic path.
	if judgment, err := s.oracle.JudgeMissing(ctx, state, s.requirements); err != nil {
		s.logger.Warnw("missing-info judgment failed", "thread_id", msg.ThreadID, "error", err)
	} else if judgment.ApplicationComplete != completeness.Complete {
		s.logger.Debugw("judgment disagrees with evaluator", "thread_id", msg.ThreadID)
	}

	reply, err := s.oracle.DraftReply(ctx, llm.ReplyRequest{
		Greeting: greeting(state.Fields, msg),
		Subject:  msg.Subject,
		Missing:  completeness.Missing,
	})
	if err != nil {
		return fmt.Errorf("%w: draft reply: %v", ErrExtraction, err)
	}

	if err := s.deliver(ctx, msg, state.ThreadID, reply); err != nil {
		return err
	}
	s.logger.Infow("requested missing information", "thread_id", msg.ThreadID, "missing", len(completeness.Missing))
	return nil
}

// completeThread runs the one-way completion transition and its side
// effects: confirmation reply, background check and operator handoff.
func (s *Screener) completeThread(ctx context.Context, msg models.EmailMessage, state models.ThreadState) error {
	if err := s.store.Complete(state.ThreadID); err != nil {
		return fmt.Errorf("%w: complete thread: %v", ErrPersistence, err)
	}
	return s.confirmAndHandoff(ctx, msg, state)
}

// confirmAndHandoff drafts and delivers the completion confirmation,
// then runs the operator handoff unless a background check is already on
// file. It runs on the completing cycle and again on a later poll when
// the confirmation could not be sent.
func (s *Screener) confirmAndHandoff(ctx context.Context, msg models.EmailMessage, state models.ThreadState) error {
	reply, err := s.oracle.DraftReply(ctx, llm.ReplyRequest{
		Greeting: greeting(state.Fields, msg),
		Subject:  msg.Subject,
		Complete: true,
	})
	if err != nil {
		return fmt.Errorf("%w: draft confirmation: %v", ErrExtraction, err)
	}

	if err := s.deliver(ctx, msg, state.ThreadID, reply); err != nil {
		return err
	}
	s.logger.Infow("application complete", "thread_id", state.ThreadID)

	if _, found, err := s.store.GetBackgroundCheck(state.ThreadID); err != nil {
		s.logger.Errorw("reading background check failed", "thread_id", state.ThreadID, "error", err)
	} else if !found {
		s.handoff(ctx, msg, state)
	}

	if err := s.renderer.Cleanup(state.ThreadID); err != nil {
		s.logger.Warnw("cleanup failed", "thread_id", state.ThreadID, "error", err)
	}
	return nil
}

// revisitCompleted handles a message on an archived thread. When the
// thread completed on this very message but the confirmation never went
// out, the completion side effects are retried; any other message is
// acknowledged without touching the record.
func (s *Screener) revisitCompleted(ctx context.Context, msg models.EmailMessage, state models.ThreadState, done bool) error {
	if !done {
		if err := s.store.MarkProcessed(msg.MessageID); err != nil {
			return fmt.Errorf("%w: mark processed: %v", ErrPersistence, err)
		}
	}

	// An applicant turn with no reply after it means the confirmation
	// failed to send on the completing cycle.
	if n := len(state.Turns); done && n > 0 && state.Turns[n-1].Role == models.RoleApplicant {
		s.logger.Infow("retrying completion confirmation", "thread_id", msg.ThreadID)
		return s.confirmAndHandoff(ctx, msg, state)
	}

	s.logger.Infow("message on completed thread, not soliciting", "thread_id", msg.ThreadID)
	if err := s.inbox.MarkRead(ctx, msg.MessageID); err != nil {
		s.logger.Warnw("mark read failed", "message_id", msg.MessageID, "error", err)
	}
	return nil
}

// deliver sends the reply, records it as a system turn and clears the
// unread flag. A send failure leaves the message unread for retry by
// the operator.
func (s *Screener) deliver(ctx context.Context, msg models.EmailMessage, threadID, reply string) error {
	if err := s.inbox.SendReply(ctx, threadID, msg.SenderEmail, msg.Subject, reply); err != nil {
		return fmt.Errorf("%w: send reply: %v", ErrDelivery, err)
	}

	if _, err := s.store.AppendTurn(threadID, models.ConversationTurn{
		Role:    models.RoleSystem,
		Content: reply,
	}); err != nil {
		s.logger.Errorw("recording system turn failed", "thread_id", threadID, "error", err)
	}

	if err := s.inbox.MarkRead(ctx, msg.MessageID); err != nil {
		s.logger.Warnw("mark read failed", "message_id", msg.MessageID, "error", err)
	}
	return nil
}

// handoff runs the background check and notifies the operator. All of
// it is best effort; the applicant-facing transition already happened.
func (s *Screener) handoff(ctx context.Context, msg models.EmailMessage, state models.ThreadState) {
	name := state.Fields[models.FieldFullName].Text
	email := state.Fields[models.FieldEmailAddress].Text
	if email == "" {
		email = msg.SenderEmail
	}

	check, err := research.CheckApplicant(ctx, s.searcher, s.oracle, name, email)
	if err != nil {
		s.logger.Warnw("background check failed", "thread_id", state.ThreadID, "error", err)
	}
	if err := s.store.SaveBackgroundCheck(state.ThreadID, check); err != nil {
		s.logger.Errorw("saving background check failed", "thread_id", state.ThreadID, "error", err)
	}

	if s.hrEmail == "" {
		return
	}
	subject := fmt.Sprintf("Background Check Results: %s", name)
	if err := s.inbox.SendTo(ctx, s.hrEmail, subject, hrNotification(state, check)); err != nil {
		s.logger.Errorw("operator notification failed", "thread_id", state.ThreadID, "error", err)
	}
}

// hrNotification formats the operator email for a completed application.
func hrNotification(state models.ThreadState, check models.BackgroundCheck) string {
	var sb strings.Builder
	sb.WriteString("A job application has been completed and is ready for review.\n\n")
	sb.WriteString("Applicant details:\n")
	for _, req := range schema.Requirements() {
		v := state.Fields[req.Name]
		switch {
		case len(v.Entries) > 0:
			sb.WriteString(fmt.Sprintf("- %s:\n", req.Name))
			for _, e := range v.Entries {
				sb.WriteString(fmt.Sprintf("    %s\n", entryLine(e)))
			}
		case v.Text != "":
			sb.WriteString(fmt.Sprintf("- %s: %s\n", req.Name, v.Text))
		case v.Present:
			sb.WriteString(fmt.Sprintf("- %s: provided\n", req.Name))
		}
	}

	sb.WriteString("\nBackground check summary:\n")
	if check.Summary != "" {
		sb.WriteString(check.Summary)
		sb.WriteString("\n")
	} else {
		sb.WriteString("(not available)\n")
	}
	if n := len(check.NameResults) + len(check.EmailResults); n > 0 {
		sb.WriteString(fmt.Sprintf("\n%d public-web results on file (thread %s).\n", n, state.ThreadID))
	}
	return sb.String()
}

func entryLine(e models.EntryRecord) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{e.Degree, e.Title, e.Institution, e.Company, e.Years, e.Description} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// dubiousNames are From-header display names that are not real names.
var dubiousNames = map[string]bool{
	"excited":   true,
	"applicant": true,
	"candidate": true,
	"unknown":   true,
	"me":        true,
}

// greeting picks the name to address the applicant by: the accumulated
// full name when available, otherwise the sender's first name, falling
// back to a generic greeting when the name looks like a placeholder.
func greeting(fields models.Fields, msg models.EmailMessage) string {
	name := fields[models.FieldFullName].Text
	if name == "" {
		name = msg.SenderName
	}
	first := ""
	if words := strings.Fields(name); len(words) > 0 {
		first = words[0]
	}
	if first == "" || dubiousNames[strings.ToLower(first)] {
		return "there"
	}
	return first
}

// abandonStale archives active threads that have not progressed within
// the configured window.
func (s *Screener) abandonStale() {
	if s.abandonAfter <= 0 {
		return
	}
	threads, err := s.store.ActiveThreads()
	if err != nil {
		s.logger.Errorw("listing active threads failed", "error", err)
		return
	}
	cutoff := time.Now().UTC().Add(-s.abandonAfter)
	for _, t := range threads {
		if len(t.Turns) == 0 && t.UpdatedAt.IsZero() {
			continue
		}
		if t.UpdatedAt.Before(cutoff) {
			if err := s.store.Abandon(t.ThreadID); err != nil {
				s.logger.Warnw("abandoning stale thread failed", "thread_id", t.ThreadID, "error", err)
				continue
			}
			s.logger.Infow("abandoned stale thread", "thread_id", t.ThreadID, "last_update", t.UpdatedAt)
		}
	}
}

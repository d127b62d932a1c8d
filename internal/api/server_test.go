package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arxmedia/resume-screener/internal/ledger"
	"github.com/arxmedia/resume-screener/internal/logging"
	"github.com/arxmedia/resume-screener/internal/models"
)

func newTestServer(t *testing.T) (*Server, *ledger.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := ledger.Open(filepath.Join(dir, "screener.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(store, dir, logging.Nop()), store
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestThreadsListsByStatus(t *testing.T) {
	server, store := newTestServer(t)

	if _, err := store.Get("thread-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("thread-b"); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete("thread-b"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Active    []models.ThreadState `json:"active"`
		Completed []models.ThreadState `json:"completed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Active) != 1 || body.Active[0].ThreadID != "thread-a" {
		t.Errorf("active = %+v", body.Active)
	}
	if len(body.Completed) != 1 || body.Completed[0].ThreadID != "thread-b" {
		t.Errorf("completed = %+v", body.Completed)
	}
}

func TestThreadIncludesVerdict(t *testing.T) {
	server, store := newTestServer(t)

	if _, err := store.AppendTurn("thread-a", models.ConversationTurn{
		Role:      models.RoleApplicant,
		Content:   "hello",
		Disclosed: models.Fields{models.FieldFullName: {Text: "Jane Doe"}},
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/threads/thread-a", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		State   models.ThreadState `json:"state"`
		Verdict models.Verdict     `json:"verdict"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.State.ThreadID != "thread-a" {
		t.Errorf("thread = %q", body.State.ThreadID)
	}
	if body.Verdict.Complete {
		t.Error("verdict complete with only a name on file")
	}
	if len(body.Verdict.Missing) == 0 {
		t.Error("verdict lists nothing missing")
	}
}

func TestThreadNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/threads/no-such-thread", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	server, store := newTestServer(t)

	if _, err := store.Get("thread-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete("thread-a"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["path"] == "" {
		t.Error("no export path returned")
	}
}

package research

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arxmedia/resume-screener/internal/models"
)

func TestSearchDecodesResults(t *testing.T) {
	var gotRequest searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Jane Doe | LinkedIn", "url": "https://example.com/jane", "content": "Engineer at Acme"},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key")
	client.endpoint = server.URL
	client.httpClient = server.Client()

	results, err := client.Search(context.Background(), "Jane Doe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Jane Doe | LinkedIn" {
		t.Errorf("results = %+v", results)
	}
	if gotRequest.APIKey != "test-key" || gotRequest.SearchDepth != "basic" || gotRequest.MaxResults != 5 {
		t.Errorf("request = %+v", gotRequest)
	}
}

type fakeSearcher struct {
	results []models.SearchResult
	err     error
}

func (f fakeSearcher) Search(_ context.Context, _ string) ([]models.SearchResult, error) {
	return f.results, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f fakeSummarizer) SummarizeBackground(_ context.Context, _, _ string, _ []models.SearchResult) (string, error) {
	return f.summary, f.err
}

func TestCheckApplicant(t *testing.T) {
	searcher := fakeSearcher{results: []models.SearchResult{{Title: "hit"}}}
	summarizer := fakeSummarizer{summary: "No adverse findings."}

	check, err := CheckApplicant(context.Background(), searcher, summarizer, "Jane Doe", "jane@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Summary != "No adverse findings." {
		t.Errorf("summary = %q", check.Summary)
	}
	if len(check.NameResults) != 1 || len(check.EmailResults) != 1 {
		t.Errorf("results = %d name, %d email", len(check.NameResults), len(check.EmailResults))
	}
	if check.CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}
}

func TestCheckApplicantFailsWhenNothingFound(t *testing.T) {
	searcher := fakeSearcher{err: errors.New("network down")}
	summarizer := fakeSummarizer{summary: "unused"}

	_, err := CheckApplicant(context.Background(), searcher, summarizer, "Jane Doe", "jane@example.com")
	if err == nil {
		t.Error("expected error when all searches fail")
	}
}

// Package research runs the post-completion public-web check on an
// applicant through the Tavily search API.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arxmedia/resume-screener/internal/models"
)

const (
	tavilyEndpoint = "https://api.tavily.com/search"
	maxResults     = 5
)

// Client calls the Tavily search API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Tavily client. The API key comes from config.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   tavilyEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults hits.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily search: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, body)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tavily search: decode response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, models.SearchResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return results, nil
}

// Summarizer condenses search results into an operator-facing note.
type Summarizer interface {
	SummarizeBackground(ctx context.Context, name, email string, results []models.SearchResult) (string, error)
}

// Searcher is the query surface CheckApplicant needs; *Client
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// CheckApplicant searches the web for the applicant's name and email
// and asks the summarizer for a short report. Search failures degrade
// to partial results rather than failing the check.
func CheckApplicant(ctx context.Context, searcher Searcher, summarizer Summarizer, name, email string) (models.BackgroundCheck, error) {
	check := models.BackgroundCheck{
		ApplicantName:  name,
		ApplicantEmail: email,
		CheckedAt:      time.Now().UTC(),
	}

	var searchErr error
	if name != "" {
		check.NameResults, searchErr = searcher.Search(ctx, fmt.Sprintf("%q professional background", name))
	}
	if email != "" {
		results, err := searcher.Search(ctx, fmt.Sprintf("%q", email))
		if err != nil {
			searchErr = err
		} else {
			check.EmailResults = results
		}
	}

	combined := append(append([]models.SearchResult{}, check.NameResults...), check.EmailResults...)
	if len(combined) == 0 && searchErr != nil {
		return check, fmt.Errorf("background check: %w", searchErr)
	}

	summary, err := summarizer.SummarizeBackground(ctx, name, email, combined)
	if err != nil {
		return check, fmt.Errorf("background check: summarize: %w", err)
	}
	check.Summary = summary
	return check, nil
}

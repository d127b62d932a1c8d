// Package llm wraps the Vertex AI Gemini API for the screening
// pipeline: resume extraction, missing-information judgment, reply
// drafting and background check summaries.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// Rate-limit handling for the Gemini API free tier.
const (
	requestDelay = 4 * time.Second
	maxRetries   = 3
	retryBackoff = 10 * time.Second
)

// VertexAIClient wraps the Vertex AI Gemini API.
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	projectID string
	location  string

	mu       sync.Mutex
	lastCall time.Time
}

// NewVertexAIClient creates a new Vertex AI client for the given
// project and location. Location defaults to us-central1.
func NewVertexAIClient(ctx context.Context, projectID, location string) (*VertexAIClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex ai: project ID is empty")
	}
	if location == "" {
		location = "us-central1"
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-flash")

	// Low temperature keeps the structured extractions consistent.
	model.SetTemperature(0.2)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(2048)

	return &VertexAIClient{
		client:    client,
		model:     model,
		projectID: projectID,
		location:  location,
	}, nil
}

// GenerateContent sends a text prompt to the model and returns the
// response text, retrying on rate-limit errors.
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return v.generate(ctx, genai.Text(prompt))
}

// GenerateWithImages sends a prompt alongside one or more PNG images,
// for resume pages rendered from attachments.
func (v *VertexAIClient) GenerateWithImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.ImageData("png", img))
	}
	parts = append(parts, genai.Text(prompt))
	return v.generate(ctx, parts...)
}

func (v *VertexAIClient) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	if err := v.pace(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		resp, err := v.model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("failed to generate content: %w", err)
		}

		if len(resp.Candidates) == 0 {
			return "", fmt.Errorf("no response candidates returned")
		}

		var result strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				result.WriteString(string(text))
			}
		}
		return result.String(), nil
	}
	return "", fmt.Errorf("failed to generate content after %d retries: %w", maxRetries, lastErr)
}

// isRateLimitError reports whether err looks like API quota exhaustion.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

// pace keeps at least requestDelay between consecutive model calls.
func (v *VertexAIClient) pace(ctx context.Context) error {
	v.mu.Lock()
	now := time.Now()
	wait := requestDelay - now.Sub(v.lastCall)
	if wait < 0 {
		wait = 0
	}
	v.lastCall = now.Add(wait)
	v.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Close closes the Vertex AI client.
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}

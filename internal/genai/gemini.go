// Package genai provides the generative-model client that phrases final
// answers from retrieved transcript context.
package genai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	httpTimeout    = 60 * time.Second
)

// Answerer phrases an answer to a question given retrieved context chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, contextChunks []string) (string, error)
}

// Config holds generative-model settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests
}

// Client calls the Gemini generateContent API. The key is checked at first
// use.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Gemini client, applying defaults for model and URL.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeout},
	}
}

var _ Answerer = (*Client)(nil)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Answer builds a grounded prompt from the retrieved chunks and asks the
// model to answer strictly from them.
func (c *Client) Answer(ctx context.Context, question string, contextChunks []string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("genai: GOOGLE_API_KEY is not set")
	}
	if len(contextChunks) == 0 {
		return "No relevant context found for the question.", nil
	}

	prompt := buildPrompt(question, contextChunks)
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("genai: API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("genai: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("genai: model returned no candidates")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func buildPrompt(question string, contextChunks []string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the transcript excerpts below. ")
	b.WriteString("If the excerpts do not contain the answer, say so.\n\n")
	for i, chunk := range contextChunks {
		fmt.Fprintf(&b, "Excerpt %d:\n%s\n\n", i+1, chunk)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

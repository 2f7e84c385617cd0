// Package pinecone provides the REST client for the remote vector index.
package pinecone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/autovoyce/autovoyce/internal/vector"
)

const defaultTimeout = 30 * time.Second

// Config holds connection details for the index.
type Config struct {
	APIKey  string
	HostURL string
	Timeout time.Duration
}

// Client talks to a Pinecone-style index over its data-plane REST API.
// Credentials are validated at first use, not construction, so the server can
// start without the index configured.
type Client struct {
	apiKey string
	host   string
	http   *http.Client
}

// NewClient creates a client. Missing credentials are not an error here.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey: cfg.APIKey,
		host:   strings.TrimRight(cfg.HostURL, "/"),
		http:   &http.Client{Timeout: timeout},
	}
}

var _ vector.Index = (*Client)(nil)

func (c *Client) checkConfig() error {
	if c.apiKey == "" {
		return fmt.Errorf("pinecone: PINECONE_API_KEY is not set")
	}
	if c.host == "" {
		return fmt.Errorf("pinecone: PINECONE_HOST_URL is not set")
	}
	return nil
}

type upsertRequest struct {
	Vectors   []vector.Vector `json:"vectors"`
	Namespace string          `json:"namespace"`
}

// Upsert writes vectors into the namespace.
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	if namespace == "" {
		return vector.ErrMissingNamespace
	}
	if len(vectors) == 0 {
		return nil
	}
	return c.post(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors, Namespace: namespace}, nil)
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query returns the topK nearest vectors within the namespace.
func (c *Client) Query(ctx context.Context, namespace string, values []float32, topK int) ([]vector.Match, error) {
	if namespace == "" {
		return nil, vector.ErrMissingNamespace
	}
	if topK <= 0 {
		topK = 5
	}

	var resp queryResponse
	err := c.post(ctx, "/query", queryRequest{
		Vector:          values,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := vector.Match{ID: m.ID, Score: m.Score}
		if text, ok := m.Metadata["chunk_text"].(string); ok {
			match.Text = text
		}
		matches = append(matches, match)
	}
	return matches, nil
}

type deleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

// DeleteNamespace removes every vector in the namespace.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return vector.ErrMissingNamespace
	}
	return c.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true, Namespace: namespace}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if err := c.checkConfig(); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pinecone: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("pinecone: build request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pinecone: decode %s response: %w", path, err)
	}
	return nil
}

// Package youtube provides the video search and transcript collaborators for
// autovoyce. Both are thin HTTP clients; nothing here owns session or
// namespace state.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	serpAPIBaseURL    = "https://serpapi.com/search.json"
	searchHTTPTimeout = 30 * time.Second
)

// videoIDPattern extracts the watch id from a canonical video link.
var videoIDPattern = regexp.MustCompile(`v=([a-zA-Z0-9_-]+)`)

// Video is the metadata returned for user selection.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration"`
	Views     string `json:"views"`
}

// Searcher finds videos for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Video, error)
}

// SearchClient queries the SerpAPI YouTube engine.
type SearchClient struct {
	apiKey  string
	baseURL string
	limit   int
	http    *http.Client
}

// SearchConfig holds search provider settings.
type SearchConfig struct {
	APIKey  string
	BaseURL string // override for tests
	Limit   int    // max videos returned, 0 selects 10
}

// NewSearchClient creates a SerpAPI-backed searcher. The key is checked at
// first use.
func NewSearchClient(cfg SearchConfig) *SearchClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = serpAPIBaseURL
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	return &SearchClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		limit:   limit,
		http:    &http.Client{Timeout: searchHTTPTimeout},
	}
}

var _ Searcher = (*SearchClient)(nil)

// rawVideo tolerates the provider's loose schema: channel may be an object or
// a bare string, views a number or a string.
type rawVideo struct {
	Link      string          `json:"link"`
	Title     string          `json:"title"`
	Channel   json.RawMessage `json:"channel"`
	Thumbnail json.RawMessage `json:"thumbnail"`
	Length    string          `json:"length"`
	Views     json.RawMessage `json:"views"`
}

type searchResponse struct {
	Error        string     `json:"error"`
	VideoResults []rawVideo `json:"video_results"`
}

// Search returns ranked video metadata for the query: one entry per unique
// video id, first-seen order, capped at the configured limit.
func (c *SearchClient) Search(ctx context.Context, query string) ([]Video, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("youtube: SERP_API_KEY is not set")
	}

	params := url.Values{}
	params.Set("engine", "youtube")
	params.Set("search_query", query)
	params.Set("api_key", c.apiKey)
	params.Set("gl", "in")
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("youtube: search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("youtube: decode search response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("youtube: search API error: %s", parsed.Error)
	}

	videos := normalize(parsed.VideoResults, c.limit)
	log.Debug().
		Str("query", query).
		Int("results", len(parsed.VideoResults)).
		Int("kept", len(videos)).
		Msg("Video search complete")
	return videos, nil
}

// normalize converts raw provider results into Videos: extract a stable id
// from each canonical link, drop entries without one, de-duplicate by id
// preserving first-seen order, and cap at limit.
func normalize(results []rawVideo, limit int) []Video {
	seen := make(map[string]bool, len(results))
	videos := make([]Video, 0, limit)
	for _, r := range results {
		id := ExtractVideoID(r.Link)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		videos = append(videos, Video{
			ID:        id,
			Title:     orDefault(r.Title, "Unknown Title"),
			Channel:   channelName(r.Channel),
			Link:      r.Link,
			Thumbnail: stringField(r.Thumbnail),
			Duration:  orDefault(r.Length, "N/A"),
			Views:     orDefault(stringField(r.Views), "N/A"),
		})
		if len(videos) == limit {
			break
		}
	}
	return videos
}

// ExtractVideoID pulls the watch id out of a video link, or "" if absent.
func ExtractVideoID(link string) string {
	m := videoIDPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

func channelName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "Unknown Channel"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	return "Unknown Channel"
}

// stringField renders a loosely typed JSON field (string, number, or object
// with a "static" url) as a string.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strings.TrimSuffix(fmt.Sprintf("%.0f", n), ".")
	}
	var obj struct {
		Static string `json:"static"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Static
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	timedTextBaseURL      = "https://www.youtube.com/api/timedtext"
	transcriptHTTPTimeout = 30 * time.Second

	// transcriptCacheTTL is how long a fetched transcript stays cached.
	// Transcripts are immutable in practice, so the TTL only bounds memory.
	transcriptCacheTTL     = time.Hour
	transcriptCacheSweep   = 10 * time.Minute
	transcriptDefaultLangs = "en"
)

// Fetcher retrieves the transcript text for a video id.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// TranscriptClient fetches captions from the timedtext endpoint.
type TranscriptClient struct {
	baseURL string
	lang    string
	http    *http.Client
}

// TranscriptConfig holds transcript provider settings.
type TranscriptConfig struct {
	BaseURL string // override for tests
	Lang    string // caption language, default "en"
}

// NewTranscriptClient creates a timedtext-backed fetcher.
func NewTranscriptClient(cfg TranscriptConfig) *TranscriptClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = timedTextBaseURL
	}
	lang := cfg.Lang
	if lang == "" {
		lang = transcriptDefaultLangs
	}
	return &TranscriptClient{
		baseURL: baseURL,
		lang:    lang,
		http:    &http.Client{Timeout: transcriptHTTPTimeout},
	}
}

var _ Fetcher = (*TranscriptClient)(nil)

type timedText struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

// Fetch returns the caption track for a video, joined into one plain-text
// transcript. A video with no captions is an error, not an empty string.
func (c *TranscriptClient) Fetch(ctx context.Context, videoID string) (string, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", c.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("youtube: build transcript request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube: transcript request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube: transcript API returned %d for video %s", resp.StatusCode, videoID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("youtube: read transcript: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("youtube: no transcript available for video %s", videoID)
	}

	var parsed timedText
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("youtube: parse transcript for video %s: %w", videoID, err)
	}

	parts := make([]string, 0, len(parsed.Texts))
	for _, t := range parsed.Texts {
		if s := strings.TrimSpace(html.UnescapeString(t.Body)); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("youtube: no transcript available for video %s", videoID)
	}
	return strings.Join(parts, " "), nil
}

// CachedFetcher memoizes transcript fetches so re-processing a video within
// the TTL does not hit the provider again. Errors are not cached.
type CachedFetcher struct {
	inner Fetcher
	cache *gocache.Cache
}

// NewCachedFetcher wraps a fetcher with a TTL cache.
func NewCachedFetcher(inner Fetcher) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		cache: gocache.New(transcriptCacheTTL, transcriptCacheSweep),
	}
}

var _ Fetcher = (*CachedFetcher)(nil)

// Fetch returns the cached transcript when present, otherwise delegates and
// caches the result.
func (c *CachedFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	if cached, ok := c.cache.Get(videoID); ok {
		return cached.(string), nil
	}
	text, err := c.inner.Fetch(ctx, videoID)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(videoID, text)
	return text, nil
}

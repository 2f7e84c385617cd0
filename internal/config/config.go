// Package config provides configuration management for autovoyce.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the default HTTP port for the API server.
	DefaultPort = 8000

	// DefaultSearchLimit caps how many videos a search returns for selection.
	DefaultSearchLimit = 10

	// DefaultSessionTimeout is how long an idle session survives before the
	// cleaner reclaims it and drops its index namespace.
	DefaultSessionTimeout = 5 * time.Minute

	// DefaultCleanupInterval is how often the cleaner sweeps for idle sessions.
	DefaultCleanupInterval = 60 * time.Second

	// DefaultQueryTopK is how many chunks a retrieval query pulls from the index.
	DefaultQueryTopK = 5

	// DefaultMaxEventsPerSession bounds the in-memory event history per session.
	DefaultMaxEventsPerSession = 1000
)

// DefaultAllowedOrigins is used when ALLOWED_ORIGINS is not set.
var DefaultAllowedOrigins = []string{"http://localhost:3000"}

// Config holds the application configuration. All values come from the
// environment; cmd/server loads a .env file first so local development matches
// the deployed environment shape.
type Config struct {
	Port int

	// Search provider (SerpAPI)
	SerpAPIKey  string
	SearchLimit int

	// Vector index (Pinecone-style remote index)
	IndexAPIKey  string
	IndexHostURL string

	// Embedding provider (OpenAI-compatible)
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string

	// Generative model (Gemini)
	GoogleAPIKey string
	GenModel     string

	// Session lifecycle
	SessionTimeout  time.Duration
	CleanupInterval time.Duration

	// Retrieval
	QueryTopK int

	// Event log
	MaxEventsPerSession int

	// CORS
	AllowedOrigins []string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Missing credentials are not an error here: each client
// checks its own key at first use so the server can start without every
// provider configured.
func Load() *Config {
	cfg := &Config{
		Port:                envInt("PORT", DefaultPort),
		SerpAPIKey:          os.Getenv("SERP_API_KEY"),
		SearchLimit:         envInt("SEARCH_LIMIT", DefaultSearchLimit),
		IndexAPIKey:         os.Getenv("PINECONE_API_KEY"),
		IndexHostURL:        os.Getenv("PINECONE_HOST_URL"),
		EmbeddingAPIKey:     os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingBaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingModel:      os.Getenv("EMBEDDING_MODEL"),
		GoogleAPIKey:        os.Getenv("GOOGLE_API_KEY"),
		GenModel:            os.Getenv("GEN_MODEL"),
		SessionTimeout:      envSeconds("SESSION_TIMEOUT_SECONDS", DefaultSessionTimeout),
		CleanupInterval:     envSeconds("CLEANUP_INTERVAL_SECONDS", DefaultCleanupInterval),
		QueryTopK:           envInt("QUERY_TOP_K", DefaultQueryTopK),
		MaxEventsPerSession: envInt("MAX_EVENTS_PER_SESSION", DefaultMaxEventsPerSession),
		AllowedOrigins:      DefaultAllowedOrigins,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, p := range strings.Split(origins, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, p)
			}
		}
	}

	if cfg.GenModel == "" {
		cfg.GenModel = "gemini-2.5-flash"
	}

	return cfg
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

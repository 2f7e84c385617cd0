package genai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Answer(context.Background(), "q", []string{"some context"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestAnswerWithNoContextShortCircuits(t *testing.T) {
	// No server configured: the call must not reach the network.
	client := NewClient(Config{APIKey: "k", BaseURL: "http://example.invalid"})
	got, err := client.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "No relevant context found for the question.", got)
}

func TestAnswerSendsGroundedPrompt(t *testing.T) {
	var gotPath string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" The answer. "}]}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "secret", Model: "gemini-2.5-flash", BaseURL: srv.URL})
	got, err := client.Answer(context.Background(), "what is discussed?", []string{"chunk one", "chunk two"})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "The answer.", got)

	require.Len(t, gotBody.Contents, 1)
	prompt := gotBody.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "chunk one")
	assert.Contains(t, prompt, "chunk two")
	assert.Contains(t, prompt, "Question: what is discussed?")
}

func TestAnswerEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Answer(context.Background(), "q", []string{"ctx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

package pinecone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autovoyce/autovoyce/internal/vector"
)

func TestCredentialsCheckedAtFirstUse(t *testing.T) {
	client := NewClient(Config{})

	err := client.Upsert(context.Background(), "session_aaaa0000", []vector.Vector{{ID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PINECONE_API_KEY")
}

func TestNamespaceRequired(t *testing.T) {
	client := NewClient(Config{APIKey: "k", HostURL: "http://example.invalid"})

	assert.ErrorIs(t, client.Upsert(context.Background(), "", nil), vector.ErrMissingNamespace)
	_, err := client.Query(context.Background(), "", nil, 5)
	assert.ErrorIs(t, err, vector.ErrMissingNamespace)
	assert.ErrorIs(t, client.DeleteNamespace(context.Background(), ""), vector.ErrMissingNamespace)
}

func TestQueryWireFormat(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"matches":[{"id":"c1","score":0.9,"metadata":{"chunk_text":"hello"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "secret", HostURL: srv.URL})
	matches, err := client.Query(context.Background(), "session_aaaa0000", []float32{1, 2}, 7)
	require.NoError(t, err)

	assert.Equal(t, "/query", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "session_aaaa0000", gotBody["namespace"])
	assert.Equal(t, float64(7), gotBody["topK"])
	assert.Equal(t, true, gotBody["includeMetadata"])

	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ID)
	assert.Equal(t, "hello", matches[0].Text)
}

func TestDeleteNamespaceWireFormat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/delete", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", HostURL: srv.URL})
	require.NoError(t, client.DeleteNamespace(context.Background(), "session_aaaa0000"))

	assert.Equal(t, true, gotBody["deleteAll"])
	assert.Equal(t, "session_aaaa0000", gotBody["namespace"])
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", HostURL: srv.URL})
	err := client.Upsert(context.Background(), "session_aaaa0000", []vector.Vector{{ID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "namespace quota exceeded")
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	// No server: an empty upsert must not touch the network at all.
	client := NewClient(Config{APIKey: "k", HostURL: "http://example.invalid"})
	assert.NoError(t, client.Upsert(context.Background(), "session_aaaa0000", nil))
}

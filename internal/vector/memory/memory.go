// Package memory provides an in-process vector.Index used by tests and local
// runs without a remote index.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/autovoyce/autovoyce/internal/vector"
)

// Index stores vectors per namespace and ranks queries by cosine similarity.
type Index struct {
	mu   sync.RWMutex
	data map[string][]vector.Vector
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{data: make(map[string][]vector.Vector)}
}

var _ vector.Index = (*Index)(nil)

// Upsert appends vectors to the namespace.
func (idx *Index) Upsert(_ context.Context, namespace string, vectors []vector.Vector) error {
	if namespace == "" {
		return vector.ErrMissingNamespace
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.data[namespace] = append(idx.data[namespace], vectors...)
	return nil
}

// Query returns the topK most similar vectors within the namespace.
func (idx *Index) Query(_ context.Context, namespace string, values []float32, topK int) ([]vector.Match, error) {
	if namespace == "" {
		return nil, vector.ErrMissingNamespace
	}
	if topK <= 0 {
		topK = 5
	}

	idx.mu.RLock()
	stored := idx.data[namespace]
	matches := make([]vector.Match, 0, len(stored))
	for _, v := range stored {
		m := vector.Match{ID: v.ID, Score: cosine(values, v.Values)}
		if text, ok := v.Metadata["chunk_text"].(string); ok {
			m.Text = text
		}
		matches = append(matches, m)
	}
	idx.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace drops the namespace and everything in it.
func (idx *Index) DeleteNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return vector.ErrMissingNamespace
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.data, namespace)
	return nil
}

// Count returns how many vectors a namespace holds.
func (idx *Index) Count(namespace string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.data[namespace])
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

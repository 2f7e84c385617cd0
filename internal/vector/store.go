package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Embedder turns text into vectors. Implemented by the embedding package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits transcript text into index-sized pieces.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// Store is the namespace-isolated upload/search adapter over the remote
// index.
type Store struct {
	index    Index
	embedder Embedder
	chunker  Chunker
}

// NewStore creates a store over the given index, embedder and chunker.
func NewStore(index Index, embedder Embedder, chunker Chunker) *Store {
	return &Store{index: index, embedder: embedder, chunker: chunker}
}

// Upload chunks, embeds and upserts text under the given namespace, returning
// the number of chunks written. Chunk ids are fresh UUIDs on every call, so
// repeated uploads to the same namespace are additive, never overwriting.
func (s *Store) Upload(ctx context.Context, namespace, text string) (int, error) {
	if namespace == "" {
		return 0, ErrMissingNamespace
	}
	if text == "" {
		return 0, nil
	}

	chunks, err := s.chunker.Chunk(text)
	if err != nil {
		return 0, fmt.Errorf("chunk text: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]Vector, len(chunks))
	for i, chunk := range chunks {
		vectors[i] = Vector{
			ID:     uuid.NewString(),
			Values: embeddings[i],
			Metadata: map[string]any{
				"chunk_text": chunk,
				"chunk_id":   i,
				"source":     "youtube_transcript",
			},
		}
	}

	if err := s.index.Upsert(ctx, namespace, vectors); err != nil {
		return 0, fmt.Errorf("upsert %d vectors: %w", len(vectors), err)
	}

	log.Info().
		Str("namespace", namespace).
		Int("chunks", len(vectors)).
		Msg("Uploaded chunks to index")

	return len(vectors), nil
}

// Search embeds the query and returns the chunk texts of the topK nearest
// matches within the namespace, best first.
func (s *Store) Search(ctx context.Context, namespace, query string, topK int) ([]string, error) {
	if namespace == "" {
		return nil, ErrMissingNamespace
	}

	values, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, namespace, values, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	return texts, nil
}

// DeleteNamespace drops all of a namespace's data from the index. Best
// effort: one delete call, partial failure is reported to the caller and not
// retried here.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return ErrMissingNamespace
	}
	return s.index.DeleteNamespace(ctx, namespace)
}

// Package chunker splits transcript text into overlapping token windows for
// embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

const (
	// DefaultChunkTokens is the window size in tokens.
	DefaultChunkTokens = 300

	// DefaultOverlapTokens is how many tokens consecutive windows share, so a
	// sentence cut at a boundary still appears whole in one chunk.
	DefaultOverlapTokens = 50
)

// TokenChunker slices text into fixed-size token windows using a BPE
// tokenizer, decoding each window back to text.
type TokenChunker struct {
	codec   tokenizer.Codec
	size    int
	overlap int
}

// New creates a token chunker. size <= 0 or overlap < 0 select the defaults;
// overlap is clamped below size.
func New(size, overlap int) (*TokenChunker, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("chunker: load tokenizer: %w", err)
	}
	if size <= 0 {
		size = DefaultChunkTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlapTokens
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &TokenChunker{codec: codec, size: size, overlap: overlap}, nil
}

// Chunk splits text into windows of at most size tokens, each overlapping the
// previous by overlap tokens. Whitespace-only input yields no chunks.
func (c *TokenChunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("chunker: encode: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(ids); start += step {
		end := start + c.size
		if end > len(ids) {
			end = len(ids)
		}
		piece, err := c.codec.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("chunker: decode window: %w", err)
		}
		if piece = strings.TrimSpace(piece); piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(ids) {
			break
		}
	}
	return chunks, nil
}

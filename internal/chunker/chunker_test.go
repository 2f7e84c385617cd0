package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	c, err := New(0, 0)
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\t\n"} {
		chunks, err := c.Chunk(input)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	c, err := New(0, 0)
	require.NoError(t, err)

	chunks, err := c.Chunk("a short transcript about nothing much")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short transcript about nothing much", chunks[0])
}

func TestChunkLongTextSplits(t *testing.T) {
	c, err := New(20, 5)
	require.NoError(t, err)

	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 30)
	chunks, err := c.Chunk(long)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	// Every word of the input appears in some chunk.
	joined := strings.Join(chunks, " ")
	assert.Contains(t, joined, "quick brown fox")
}

func TestChunkOverlapSharesText(t *testing.T) {
	c, err := New(20, 10)
	require.NoError(t, err)

	long := strings.Repeat("alpha beta gamma delta epsilon ", 20)
	chunks, err := c.Chunk(long)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Consecutive windows share the overlap region.
	tail := chunks[0][len(chunks[0])/2:]
	words := strings.Fields(tail)
	require.NotEmpty(t, words)
	assert.Contains(t, chunks[1], words[len(words)-1])
}

func TestNewClampsOverlap(t *testing.T) {
	c, err := New(10, 50)
	require.NoError(t, err)

	// Must terminate: step stays positive even with a nonsense overlap.
	chunks, err := c.Chunk(strings.Repeat("word ", 100))
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

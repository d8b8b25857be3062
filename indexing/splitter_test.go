package indexing

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	s := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	assert.Equal(t, []string{"Binary search halves the range."}, s.Split("  Binary search halves the range.  "))
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("\n\n\n"))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "First paragraph is here.\n\nSecond paragraph is here.\n\nThird one."
	assert.Equal(t, []string{
		"First paragraph is here.",
		"Second paragraph is here.\n\nThird one.",
	}, s.Split(text))
}

func TestSplitBoundsAndOverlap(t *testing.T) {
	s := NewSplitter(100, 30)
	words := make([]string, 300)
	for i := range words {
		words[i] = []string{"graph", "tree", "heap", "queue", "stack"}[i%5]
	}
	text := strings.Join(words, " ")

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.NotEmpty(t, c)
	}
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		tail := prevWords[len(prevWords)-1]
		assert.True(t, strings.HasPrefix(chunks[i], tail) || strings.Contains(chunks[i], tail),
			"chunk %d should overlap the previous one", i)
	}
}

func TestSplitLongWordFallsBackToRunes(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.Split(strings.Repeat("é", 25))
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, 0, s.ChunkOverlap)
	assert.Equal(t, 0, NewSplitter(10, 10).ChunkOverlap)
}

package retrieval_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coursemind/internal/retrieval"
	"coursemind/internal/text"
)

func videoChunk(sourceID string, seq int, content string, score float32) retrieval.SearchResult {
	return retrieval.SearchResult{
		Content:       content,
		Score:         score,
		SourceID:      sourceID,
		SourceTitle:   "Lesson " + sourceID,
		SourceType:    "video",
		SequenceIndex: seq,
		Position:      text.Position{TimestampStart: "00:00:10", TimestampEnd: "00:00:40"},
	}
}

func TestAssembler_SiblingExpansion(t *testing.T) {
	store := new(MockStore)
	selected := []retrieval.SearchResult{videoChunk("v1", 1, "middle", 0.55)}

	store.On("ChunksBySource", mock.Anything, "v1", 0, 2).Return([]retrieval.SearchResult{
		videoChunk("v1", 0, "first", 0),
		videoChunk("v1", 1, "middle", 0),
		videoChunk("v1", 2, "last", 0),
	}, nil)

	a := retrieval.NewAssembler(store, 1)
	out, err := a.Assemble(context.Background(), selected, retrieval.AssembleOptions{CharBudget: 10000})
	require.NoError(t, err)

	assert.Contains(t, out.Context, "first")
	assert.Contains(t, out.Context, "middle")
	assert.Contains(t, out.Context, "last")
	assert.Less(t, strings.Index(out.Context, "first"), strings.Index(out.Context, "middle"))
	assert.Less(t, strings.Index(out.Context, "middle"), strings.Index(out.Context, "last"))

	require.Len(t, out.Attributions, 1)
	assert.Equal(t, "v1", out.Attributions[0].SourceID)
	assert.Equal(t, float32(0.55), out.Attributions[0].RelevanceScore)
}

func TestAssembler_DeduplicatesOverlappingWindows(t *testing.T) {
	store := new(MockStore)
	selected := []retrieval.SearchResult{
		videoChunk("v1", 1, "one", 0.6),
		videoChunk("v1", 2, "two", 0.5),
	}

	store.On("ChunksBySource", mock.Anything, "v1", 0, 2).Return([]retrieval.SearchResult{
		videoChunk("v1", 0, "zero", 0),
		videoChunk("v1", 1, "one", 0),
		videoChunk("v1", 2, "two", 0),
	}, nil)
	store.On("ChunksBySource", mock.Anything, "v1", 1, 3).Return([]retrieval.SearchResult{
		videoChunk("v1", 1, "one", 0),
		videoChunk("v1", 2, "two", 0),
		videoChunk("v1", 3, "three", 0),
	}, nil)

	a := retrieval.NewAssembler(store, 1)
	out, err := a.Assemble(context.Background(), selected, retrieval.AssembleOptions{CharBudget: 10000})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out.Context, "one"))
	assert.Equal(t, 1, strings.Count(out.Context, "two"))
	assert.Contains(t, out.Context, "zero")
	assert.Contains(t, out.Context, "three")
	assert.Len(t, out.Attributions, 1)
}

func TestAssembler_BudgetAndAttributionsPerSource(t *testing.T) {
	store := new(MockStore)

	long := strings.Repeat("a", 400)
	selA := videoChunk("vA", 0, long, 0.7)
	selB := videoChunk("vB", 0, long, 0.6)

	store.On("ChunksBySource", mock.Anything, "vA", -1, 1).Return([]retrieval.SearchResult{selA}, nil)
	store.On("ChunksBySource", mock.Anything, "vB", -1, 1).Return([]retrieval.SearchResult{selB}, nil)

	a := retrieval.NewAssembler(store, 1)
	budget := 500
	out, err := a.Assemble(context.Background(), []retrieval.SearchResult{selA, selB}, retrieval.AssembleOptions{CharBudget: budget})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(out.Context), budget)
	// Every distinct source keeps its attribution even when its text was
	// truncated away.
	require.Len(t, out.Attributions, 2)
	assert.Equal(t, "vA", out.Attributions[0].SourceID)
	assert.Equal(t, "vB", out.Attributions[1].SourceID)
}

func TestAssembler_TruncatesOnRuneBoundary(t *testing.T) {
	store := new(MockStore)

	sel := videoChunk("v1", 0, strings.Repeat("ü", 300), 0.7)
	store.On("ChunksBySource", mock.Anything, "v1", -1, 1).Return([]retrieval.SearchResult{sel}, nil)

	a := retrieval.NewAssembler(store, 1)
	// An odd byte budget lands mid-rune in the two-byte run; the cut must
	// back up rather than emit half a character.
	out, err := a.Assemble(context.Background(), []retrieval.SearchResult{sel}, retrieval.AssembleOptions{CharBudget: 101})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Context), 101)
	assert.True(t, utf8.ValidString(out.Context))
}

func TestAssembler_PrioritySourcesComeFirst(t *testing.T) {
	store := new(MockStore)

	selA := videoChunk("vA", 0, "alpha", 0.9)
	selB := videoChunk("vB", 0, "beta", 0.3)

	store.On("ChunksBySource", mock.Anything, "vA", -1, 1).Return([]retrieval.SearchResult{selA}, nil)
	store.On("ChunksBySource", mock.Anything, "vB", -1, 1).Return([]retrieval.SearchResult{selB}, nil)

	a := retrieval.NewAssembler(store, 1)
	out, err := a.Assemble(context.Background(), []retrieval.SearchResult{selA, selB}, retrieval.AssembleOptions{
		CharBudget:      10000,
		PrioritySources: []string{"vB"},
	})
	require.NoError(t, err)

	// vB is the previous turn's source, so its block leads despite the
	// lower score.
	assert.Less(t, strings.Index(out.Context, "beta"), strings.Index(out.Context, "alpha"))
	assert.Equal(t, "vB", out.Attributions[0].SourceID)
}

func TestAssembler_EmptySelection(t *testing.T) {
	store := new(MockStore)
	a := retrieval.NewAssembler(store, 1)

	out, err := a.Assemble(context.Background(), nil, retrieval.AssembleOptions{CharBudget: 100})
	require.NoError(t, err)
	assert.Empty(t, out.Context)
	assert.Empty(t, out.Attributions)
	store.AssertNotCalled(t, "ChunksBySource")
}

func TestAssembler_PDFLabel(t *testing.T) {
	store := new(MockStore)
	sel := retrieval.SearchResult{
		Content:       "page text",
		Score:         0.5,
		SourceID:      "doc1",
		SourceTitle:   "Course Handbook",
		SourceType:    "pdf",
		SequenceIndex: 0,
		Position:      text.Position{PageNumber: 3},
	}
	store.On("ChunksBySource", mock.Anything, "doc1", -1, 1).Return([]retrieval.SearchResult{sel}, nil)

	a := retrieval.NewAssembler(store, 1)
	out, err := a.Assemble(context.Background(), []retrieval.SearchResult{sel}, retrieval.AssembleOptions{CharBudget: 10000})
	require.NoError(t, err)
	assert.Contains(t, out.Context, "[PDF: Course Handbook, Page 3]")
}

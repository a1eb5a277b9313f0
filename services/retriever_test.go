package services

import (
	"testing"

	"docqa-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(chunks ...models.Chunk) *models.Document {
	for i := range chunks {
		chunks[i].ChunkIndex = i
		if chunks[i].DocumentID == "" {
			chunks[i].DocumentID = "doc"
		}
		if chunks[i].PageNumber == 0 {
			chunks[i].PageNumber = 1
		}
	}
	return &models.Document{ID: "doc", OriginalName: "report.pdf", TotalPages: 10, Chunks: chunks}
}

func chunkIDs(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func TestFindRelevant_EndToEndExample(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "c0", Content: "Revenue grew 12% in Q1."},
		models.Chunk{ID: "c1", Content: "Costs declined slightly."},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "revenue growth", "", 0)

	assert.Equal(t, []string{"c0"}, chunkIDs(ranked))
}

func TestFindRelevant_RanksOnlyMatchingChunkFirst(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "c0", Content: "Introduction to the survey methodology."},
		models.Chunk{ID: "c1", Content: "The turbine efficiency improved after calibration."},
		models.Chunk{ID: "c2", Content: "Appendix with raw tables."},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "turbine calibration", "", 0)

	require.NotEmpty(t, ranked)
	assert.Equal(t, "c1", ranked[0].ID)
}

func TestFindRelevant_IgnoresShortQueryWords(t *testing.T) {
	doc := testDocument(models.Chunk{ID: "c0", Content: "it is on a go"})

	assert.Empty(t, NewRetriever(5).FindRelevant(doc, "it is on a go", "", 0))
}

func TestFindRelevant_SelectedTextVerbatimOutranksPartialOverlap(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "partial", Content: "Every attention layer projects keys and values for each head."},
		models.Chunk{ID: "verbatim", Content: "The multi-head attention layer projects queries."},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "how does projection work", "Multi-Head Attention Layer", 0)

	assert.Equal(t, []string{"verbatim", "partial"}, chunkIDs(ranked))
}

func TestFindRelevant_PageScopeAndBoost(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "p1", PageNumber: 1, Content: "budget figures"},
		models.Chunk{ID: "p2", PageNumber: 2, Content: "budget figures"},
		models.Chunk{ID: "p3", PageNumber: 3, Content: "budget figures"},
		models.Chunk{ID: "p5", PageNumber: 5, Content: "budget figures"},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "budget", "", 2)

	// p5 is outside [1,3]; p2 gets the same-page boost
	assert.Equal(t, []string{"p2", "p1", "p3"}, chunkIDs(ranked))
}

func TestFindRelevant_PageScopeClampedAtOne(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "p1", PageNumber: 1, Content: "budget"},
		models.Chunk{ID: "p2", PageNumber: 2, Content: "budget"},
		models.Chunk{ID: "p3", PageNumber: 3, Content: "budget"},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "budget", "", 1)

	assert.Equal(t, []string{"p1", "p2"}, chunkIDs(ranked))
}

func TestFindRelevant_PageScopeFallsBackToWholeDocument(t *testing.T) {
	doc := testDocument(
		models.Chunk{ID: "p1", PageNumber: 1, Content: "quarterly revenue"},
		models.Chunk{ID: "p2", PageNumber: 2, Content: "nothing relevant"},
	)

	ranked := NewRetriever(5).FindRelevant(doc, "revenue", "", 9)

	assert.Equal(t, []string{"p1"}, chunkIDs(ranked))
}

func TestFindRelevant_FallbackEmptyWhenNothingMatches(t *testing.T) {
	doc := testDocument(models.Chunk{ID: "p1", PageNumber: 1, Content: "quarterly revenue"})

	assert.Empty(t, NewRetriever(5).FindRelevant(doc, "unrelated words", "", 9))
}

func TestFindRelevant_TopKAndStableTies(t *testing.T) {
	var chunks []models.Chunk
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		chunks = append(chunks, models.Chunk{ID: id, Content: "shared keyword"})
	}
	chunks = append(chunks, models.Chunk{ID: "best", Content: "shared keyword twice keyword extra"})
	doc := testDocument(chunks...)

	ranked := NewRetriever(5).FindRelevant(doc, "shared keyword extra", "", 0)

	assert.Equal(t, []string{"best", "a", "b", "c", "d"}, chunkIDs(ranked))
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"revenue", "growth", "the"}, keywords("Revenue  growth of the Q1", 2))
	assert.Equal(t, []string{"revenue", "growth"}, keywords("Revenue growth of the Q1", 3))
	assert.Empty(t, keywords("", 2))
}

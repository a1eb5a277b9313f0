package services

import (
	"sort"
	"strings"

	"docqa-platform/internal/logger"
	"docqa-platform/models"
)

// Retriever ranks the chunks of a document by lexical overlap with a query.
type Retriever struct {
	topK int
}

func NewRetriever(topK int) *Retriever {
	if topK < 1 {
		topK = 1
	}
	return &Retriever{topK: topK}
}

type scoredChunk struct {
	chunk models.Chunk
	score int
}

// FindRelevant returns at most topK chunks with a positive score, best first.
// A selectedPage of 0 means no page hint. A page-scoped search that finds
// nothing is retried once over the whole document.
func (r *Retriever) FindRelevant(doc *models.Document, query, selectedText string, selectedPage int) []models.Chunk {
	results := r.rank(doc.Chunks, query, selectedText, selectedPage)
	if len(results) == 0 && selectedPage > 0 {
		logger.Debug("No results in page range, searching full document",
			"document_id", doc.ID,
			"selected_page", selectedPage,
		)
		results = r.rank(doc.Chunks, query, selectedText, 0)
	}
	return results
}

func (r *Retriever) rank(chunks []models.Chunk, query, selectedText string, selectedPage int) []models.Chunk {
	candidates := chunks
	if selectedPage > 0 {
		minPage := selectedPage - 1
		if minPage < 1 {
			minPage = 1
		}
		maxPage := selectedPage + 1
		candidates = make([]models.Chunk, 0, len(chunks))
		for _, c := range chunks {
			if c.PageNumber >= minPage && c.PageNumber <= maxPage {
				candidates = append(candidates, c)
			}
		}
	}

	queryWords := keywords(query, 2)
	selectedLower := strings.ToLower(selectedText)
	selectedWords := keywords(selectedText, 3)

	scored := make([]scoredChunk, 0, len(candidates))
	for _, c := range candidates {
		score := scoreChunk(c, queryWords, selectedLower, selectedWords, selectedPage)
		if score > 0 {
			scored = append(scored, scoredChunk{chunk: c, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	ranked := make([]models.Chunk, len(scored))
	for i, sc := range scored {
		ranked[i] = sc.chunk
	}
	return ranked
}

func scoreChunk(c models.Chunk, queryWords []string, selectedLower string, selectedWords []string, selectedPage int) int {
	content := strings.ToLower(c.Content)
	score := 0

	for _, w := range queryWords {
		if strings.Contains(content, w) {
			score++
		}
	}

	if selectedLower != "" {
		if strings.Contains(content, selectedLower) {
			score += 10
		} else {
			for _, w := range selectedWords {
				if strings.Contains(content, w) {
					score += 2
				}
			}
		}
	}

	if selectedPage > 0 && c.PageNumber == selectedPage {
		score += 5
	}
	return score
}

// keywords lowercases s and keeps the whitespace-separated words longer
// than minLen runes.
func keywords(s string, minLen int) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(w)) > minLen {
			words = append(words, w)
		}
	}
	return words
}

package services

import (
	"strings"

	"docqa-platform/models"
)

// MaxChunksPerDocument bounds ingestion so a pathological document cannot
// hang an upload.
const MaxChunksPerDocument = 1000

// ChunkText splits text into fixed-size overlapping chunks tagged with an
// estimated page number. Offsets are rune offsets into the trimmed text.
//
// Fragments whose trimmed length is below MinChunkSize are dropped, not merged.
// Page numbers assume text is spread evenly over totalPages.
func ChunkText(text, documentID string, totalPages int, cfg models.ChunkingConfig) []models.Chunk {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	if totalPages < 1 {
		totalPages = 1
	}
	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	charsPerPage := ceilDiv(len(runes), totalPages)
	if charsPerPage < 1 {
		charsPerPage = 1
	}

	var chunks []models.Chunk
	start := 0
	for start < len(runes) && len(chunks) < MaxChunksPerDocument {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(content)) >= cfg.MinChunkSize && content != "" {
			page := ceilDiv(start, charsPerPage) + 1
			if page > totalPages {
				page = totalPages
			}
			index := len(chunks)
			chunks = append(chunks, models.Chunk{
				ID:         models.ChunkID(documentID, index),
				DocumentID: documentID,
				PageNumber: page,
				ChunkIndex: index,
				Content:    content,
				StartChar:  start,
				EndChar:    end,
			})
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

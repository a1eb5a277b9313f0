package services

import (
	"regexp"
	"strconv"
	"strings"

	"docqa-platform/models"
	"docqa-platform/utils"
)

const citationPreviewChars = 200

// citationMarker matches bracketed source references such as [1], [1, 2],
// [1-3] and [2–4].
var citationMarker = regexp.MustCompile(`\[\s*\d+\s*(?:[,\-–]\s*\d+\s*)*\]`)

// BuildCitations turns the chunks cited by an answer into citations. The
// score decreases by 0.1 per rank and is not a calibrated confidence.
func BuildCitations(cited []models.Chunk) []models.Citation {
	citations := make([]models.Citation, len(cited))
	for rank, c := range cited {
		citations[rank] = models.Citation{
			PageNumber:     c.PageNumber,
			ChunkID:        c.ID,
			Text:           utils.Truncate(c.Content, citationPreviewChars),
			RelevanceScore: 1 - float64(rank)*0.1,
			StartChar:      c.StartChar,
			EndChar:        c.EndChar,
		}
	}
	return citations
}

// CitedChunks returns the ranked chunks referenced by markers in answer, in
// ranked order and each at most once. When no marker resolves, the first two
// ranked chunks are returned.
func CitedChunks(answer string, ranked []models.Chunk) []models.Chunk {
	if len(ranked) == 0 {
		return nil
	}

	referenced := citationNumbers(answer, len(ranked))
	var cited []models.Chunk
	for i, c := range ranked {
		if referenced[i+1] {
			cited = append(cited, c)
		}
	}
	if len(cited) > 0 {
		return cited
	}

	if len(ranked) > 2 {
		ranked = ranked[:2]
	}
	return append([]models.Chunk(nil), ranked...)
}

// citationNumbers collects the source numbers in [1, limit] referenced by the
// markers in text.
func citationNumbers(text string, limit int) map[int]bool {
	found := make(map[int]bool)
	for _, marker := range citationMarker.FindAllString(text, -1) {
		body := strings.Trim(marker, "[]")
		for _, part := range strings.Split(body, ",") {
			lo, hi, ok := parseCitationRange(part)
			if !ok {
				continue
			}
			if lo < 1 {
				lo = 1
			}
			if hi > limit {
				hi = limit
			}
			for n := lo; n <= hi; n++ {
				found[n] = true
			}
		}
	}
	return found
}

func parseCitationRange(part string) (int, int, bool) {
	part = strings.ReplaceAll(part, "–", "-")
	bounds := strings.SplitN(part, "-", 2)

	lo, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, false
	}
	if len(bounds) == 1 {
		return lo, lo, true
	}
	hi, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

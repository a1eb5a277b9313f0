package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"docqa-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ExtractionResult is the plain text of a document and its page count.
type ExtractionResult struct {
	Text  string
	Pages int
}

// PDFExtractor pulls plain text out of PDF files.
type PDFExtractor struct {
	maxSize int64
}

func NewPDFExtractor(maxSize int64) *PDFExtractor {
	return &PDFExtractor{maxSize: maxSize}
}

// Extract reads a whole PDF from r and returns its text, pages joined by a
// blank line. Pages that fail to decode are skipped.
func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader) (result *ExtractionResult, err error) {
	limit := e.maxSize
	if limit <= 0 {
		limit = 200 << 20
	}
	content, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidFile, limit)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: not a PDF document", ErrInvalidFile)
	}

	// the parser panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: malformed PDF: %v", ErrInvalidFile, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create PDF reader: %v", ErrInvalidFile, err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract page text", "page", i, "error", err)
			continue
		}
		texts = append(texts, text)
	}

	if pages < 1 {
		pages = 1
	}
	return &ExtractionResult{
		Text:  strings.Join(texts, "\n\n"),
		Pages: pages,
	}, nil
}

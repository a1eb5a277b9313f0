package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	_, err := NewPDFExtractor(0).Extract(context.Background(), strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestPDFExtractor_RejectsOversize(t *testing.T) {
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), 64)...)

	_, err := NewPDFExtractor(32).Extract(context.Background(), bytes.NewReader(content))
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")
}

func TestPDFExtractor_MalformedPDF(t *testing.T) {
	_, err := NewPDFExtractor(0).Extract(context.Background(), strings.NewReader("%PDF-1.4\nnot really a pdf"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}

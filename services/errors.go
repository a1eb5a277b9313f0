package services

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyDocument    = errors.New("no text could be extracted from document")
	ErrInvalidFile      = errors.New("invalid file")
	ErrInvalidChunking  = errors.New("invalid chunking configuration")
)

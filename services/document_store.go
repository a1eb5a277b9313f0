package services

import (
	"sort"
	"sync"

	"docqa-platform/models"
)

// DocumentStore is the in-memory collection of parsed documents.
// Readers get copies; the only mutation after Put is the cached summary.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*models.Document)}
}

// Put stores doc, replacing any document with the same id.
func (s *DocumentStore) Put(doc *models.Document) {
	stored := cloneDocument(doc)
	s.mu.Lock()
	s.docs[doc.ID] = stored
	s.mu.Unlock()
}

// Get returns a copy of the document, or ErrDocumentNotFound.
func (s *DocumentStore) Get(id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

// Name returns the display name of a document, if stored.
func (s *DocumentStore) Name(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return "", false
	}
	return doc.OriginalName, true
}

// List returns the listing view of every document, oldest upload first.
func (s *DocumentStore) List() []models.DocumentInfo {
	s.mu.RLock()
	infos := make([]models.DocumentInfo, 0, len(s.docs))
	for _, doc := range s.docs {
		infos = append(infos, models.DocumentInfo{
			ID:         doc.ID,
			Name:       doc.OriginalName,
			Pages:      doc.TotalPages,
			Chunks:     doc.TotalChunks(),
			UploadedAt: doc.UploadedAt,
			HasSummary: doc.Summary != "",
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UploadedAt.Before(infos[j].UploadedAt)
	})
	return infos
}

// Delete removes a document and reports whether it existed.
func (s *DocumentStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	return true
}

// RecordSummary overwrites the cached summary and the map summaries of the
// given chunks.
func (s *DocumentStore) RecordSummary(id, summary string, chunkSummaries []models.ChunkSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Summary = summary
	for _, cs := range chunkSummaries {
		if cs.ChunkIndex >= 0 && cs.ChunkIndex < len(doc.Chunks) && doc.Chunks[cs.ChunkIndex].ID == cs.ChunkID {
			doc.Chunks[cs.ChunkIndex].Summary = cs.Summary
		}
	}
	return nil
}

func cloneDocument(doc *models.Document) *models.Document {
	c := *doc
	c.Chunks = make([]models.Chunk, len(doc.Chunks))
	copy(c.Chunks, doc.Chunks)
	return &c
}

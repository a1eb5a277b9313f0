package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"docqa-platform/internal/config"
	"docqa-platform/internal/logger"
	"docqa-platform/models"

	"github.com/google/uuid"
)

// SessionManager holds short-term conversation memory per document thread.
// Callers receive copies; all mutation goes through the manager.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*models.ConversationSession
	maxMessages int
	timeout     time.Duration
	now         func() time.Time
}

func NewSessionManager(cfg config.MemoryConfig) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*models.ConversationSession),
		maxMessages: cfg.MaxMessages,
		timeout:     cfg.SessionTimeout,
		now:         time.Now,
	}
}

// GetOrCreate reuses sessionID when it exists and belongs to documentID,
// otherwise it starts a new session for the document.
func (m *SessionManager) GetOrCreate(documentID, documentName, sessionID string) models.ConversationSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if s, ok := m.sessions[sessionID]; ok && s.DocumentID == documentID {
			s.LastActivityAt = m.now()
			return cloneSession(s)
		}
	}

	if documentName == "" {
		documentName = "Unknown"
	}
	now := m.now()
	s := &models.ConversationSession{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		DocumentName:   documentName,
		Messages:       []models.ConversationMessage{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[s.ID] = s

	logger.Info("Created conversation session", "session_id", s.ID, "document_id", documentID)
	return cloneSession(s)
}

// Append adds a turn and drops the oldest pair while the session holds more
// than maxMessages pairs. It returns the resulting message count.
func (m *SessionManager) Append(sessionID string, role models.Role, content string, citations []models.Citation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}

	now := m.now()
	s.Messages = append(s.Messages, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Citations: citations,
	})
	s.LastActivityAt = now

	for len(s.Messages) > m.maxMessages*2 {
		s.Messages = append([]models.ConversationMessage(nil), s.Messages[2:]...)
	}
	return len(s.Messages), nil
}

// BuildContext renders the most recent maxMessages entries as a transcript.
func (m *SessionManager) BuildContext(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || len(s.Messages) == 0 {
		return ""
	}

	recent := s.Messages
	if len(recent) > m.maxMessages {
		recent = recent[len(recent)-m.maxMessages:]
	}

	lines := make([]string, len(recent))
	for i, msg := range recent {
		speaker := "Assistant"
		if msg.Role == models.RoleUser {
			speaker = "User"
		}
		lines[i] = speaker + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}

// Get returns a copy of a session.
func (m *SessionManager) Get(sessionID string) (models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return models.ConversationSession{}, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

// List returns the listing view of every session, most recent activity first.
func (m *SessionManager) List() []models.SessionInfo {
	m.mu.Lock()
	infos := make([]models.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, models.SessionInfo{
			ID:           s.ID,
			DocumentID:   s.DocumentID,
			DocumentName: s.DocumentName,
			MessageCount: len(s.Messages),
			LastActivity: s.LastActivityAt,
		})
	}
	m.mu.Unlock()

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastActivity.After(infos[j].LastActivity)
	})
	return infos
}

func (m *SessionManager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// ClearDocument deletes every session of a document and returns how many.
func (m *SessionManager) ClearDocument(documentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for id, s := range m.sessions {
		if s.DocumentID == documentID {
			delete(m.sessions, id)
			cleared++
		}
	}
	return cleared
}

// CleanupExpired deletes sessions idle for longer than the timeout and
// returns how many were removed.
func (m *SessionManager) CleanupExpired() int {
	m.mu.Lock()
	now := m.now()
	var stale []string
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) > m.timeout {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	if len(stale) == 0 {
		return 0
	}

	removed := 0
	m.mu.Lock()
	for _, id := range stale {
		// a session touched since the scan stays
		if s, ok := m.sessions[id]; ok && now.Sub(s.LastActivityAt) > m.timeout {
			delete(m.sessions, id)
			removed++
		}
	}
	m.mu.Unlock()

	logger.Info("Cleaned up expired conversation sessions", "count", removed)
	return removed
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func cloneSession(s *models.ConversationSession) models.ConversationSession {
	c := *s
	c.Messages = append([]models.ConversationMessage{}, s.Messages...)
	return c
}

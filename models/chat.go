package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is a single turn held in session memory.
type ConversationMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Citations []Citation `json:"citations,omitempty"`
}

// ConversationSession is the short-term memory for one document thread.
type ConversationSession struct {
	ID             string                `json:"id"`
	DocumentID     string                `json:"document_id"`
	DocumentName   string                `json:"document_name"`
	Messages       []ConversationMessage `json:"messages"`
	CreatedAt      time.Time             `json:"created_at"`
	LastActivityAt time.Time             `json:"last_activity_at"`
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// QueryRequest is a question about an uploaded document.
type QueryRequest struct {
	DocumentID   string `json:"document_id" binding:"required"`
	Query        string `json:"query" binding:"required,min=1,max=4000"`
	SelectedText string `json:"selected_text,omitempty"`
	SelectedPage int    `json:"selected_page,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// QueryResponse is the non-streaming answer to a QueryRequest.
type QueryResponse struct {
	Answer             string     `json:"answer"`
	Citations          []Citation `json:"citations"`
	DocumentID         string     `json:"document_id"`
	Confidence         float64    `json:"confidence"`
	SessionID          string     `json:"session_id"`
	ConversationLength int        `json:"conversation_length"`
}

// StreamEventType tags the payload of a StreamEvent.
type StreamEventType string

const (
	StreamProcessing StreamEventType = "processing"
	StreamSources    StreamEventType = "sources"
	StreamTextChunk  StreamEventType = "text_chunk"
	StreamComplete   StreamEventType = "complete"
	StreamError      StreamEventType = "error"
)

// StreamEvent is one frame of a streaming query.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Content   interface{}     `json:"content"`
	Timestamp string          `json:"timestamp"`
}

// StreamStatus is the content of processing and complete events.
type StreamStatus struct {
	Message            string `json:"message"`
	SessionID          string `json:"session_id"`
	ConversationLength int    `json:"conversation_length"`
}

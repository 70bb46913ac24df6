// Package sse implements Server-Sent Events for pushing captured notes
// and session lifecycle changes to connected readers.
package sse

import (
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventNoteCreated fires when a question/answer pair is captured.
	EventNoteCreated EventType = "note.created"
	// EventSessionStarted fires when a voice session opens.
	EventSessionStarted EventType = "session.started"
	// EventSessionEnded fires when a voice session closes.
	EventSessionEnded EventType = "session.ended"
	// EventBookChanged fires when the current book selection changes.
	EventBookChanged EventType = "book.current_changed"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// OwnerID filters delivery to one owner's clients. Empty means
	// broadcast to all.
	OwnerID string `json:"-"`
}

// NewNoteCreatedEvent builds a note.created event for the note's owner.
func NewNoteCreatedEvent(note *domain.Note) Event {
	return Event{
		Type:      EventNoteCreated,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"note": note},
		OwnerID:   note.OwnerID,
	}
}

// NewSessionEvent builds a session lifecycle event for the session's owner.
func NewSessionEvent(eventType EventType, session *domain.Session) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"session": session},
		OwnerID:   session.OwnerID,
	}
}

// NewBookChangedEvent builds a current-book change event for the owner.
func NewBookChangedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookChanged,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"book": book},
		OwnerID:   book.OwnerID,
	}
}

// NewHeartbeatEvent builds a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"status": "ok"},
	}
}

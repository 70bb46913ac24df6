package domain

import "time"

// SessionStatus tracks the lifecycle of a voice reading session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session is one live voice conversation about the owner's current book.
// ConversationID is minted at session start and stamped on every note
// captured during the session.
type Session struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	CallID         string        `json:"callId,omitempty"`
	BookID         string        `json:"bookId"`
	OwnerID        string        `json:"ownerId"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"startedAt"`
	EndedAt        time.Time     `json:"endedAt,omitzero"`
}

// Package voice turns raw conversational voice events into paired
// question/answer notes.
package voice

import "time"

// EventType is the canonical kind of a session event.
type EventType string

const (
	// EventTranscript carries a fragment of recognized speech.
	EventTranscript EventType = "transcript"
	// EventSpeechStarted fires when the assistant begins speaking.
	EventSpeechStarted EventType = "speech-started"
	// EventSpeechStopped fires when the user stops speaking.
	EventSpeechStopped EventType = "speech-stopped"
	// EventSessionEnded fires when the call is over.
	EventSessionEnded EventType = "session-ended"
)

// Role identifies which party a transcript fragment belongs to.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Event is a provider-agnostic session event. Providers deliver these
// as loosely-shaped webhook JSON; Normalize maps them into this form.
type Event struct {
	Type      EventType
	Role      Role
	Text      string
	Final     bool
	Timestamp time.Time
}

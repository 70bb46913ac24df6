package voice

import (
	"strings"
	"time"
)

// Normalize maps a raw webhook payload into a canonical Event. Providers
// disagree on field names and finality markers, so this is deliberately
// permissive. Returns false for payloads that carry no usable event.
func Normalize(raw map[string]any) (Event, bool) {
	ev := Event{Timestamp: time.Now().UTC()}

	switch eventType(raw) {
	case "transcript", "speech-transcript", "message":
		ev.Type = EventTranscript
	case "speech-started", "speech-start", "assistant-speech-started":
		ev.Type = EventSpeechStarted
		ev.Role = RoleAssistant
		if stringField(raw, "role") == "user" {
			return Event{}, false
		}
		return ev, true
	case "speech-stopped", "speech-end", "user-speech-stopped", "speech-update-stopped":
		ev.Type = EventSpeechStopped
		ev.Role = RoleUser
		if stringField(raw, "role") == "assistant" {
			ev.Role = RoleAssistant
		}
		return ev, true
	case "session-ended", "call-ended", "end-of-call", "hang", "call.ended":
		ev.Type = EventSessionEnded
		return ev, true
	case "speech-update":
		// Vapi folds start/stop into one type with a status field.
		role := stringField(raw, "role")
		switch stringField(raw, "status") {
		case "started":
			if role == "assistant" || role == "" {
				ev.Type = EventSpeechStarted
				ev.Role = RoleAssistant
				return ev, true
			}
			return Event{}, false
		case "stopped":
			ev.Type = EventSpeechStopped
			ev.Role = RoleUser
			if role == "assistant" {
				ev.Role = RoleAssistant
			}
			return ev, true
		default:
			return Event{}, false
		}
	default:
		return Event{}, false
	}

	// Transcript events need a role and some text.
	switch stringField(raw, "role") {
	case "assistant", "bot", "ai":
		ev.Role = RoleAssistant
	case "user", "human", "customer":
		ev.Role = RoleUser
	default:
		return Event{}, false
	}

	ev.Text = strings.TrimSpace(textField(raw))
	if ev.Text == "" {
		return Event{}, false
	}

	ev.Final = isFinal(raw)
	return ev, true
}

// eventType digs the event kind out of the payload. Some providers nest
// the event under a "message" envelope.
func eventType(raw map[string]any) string {
	if t := stringField(raw, "type"); t != "" {
		return strings.ToLower(t)
	}
	if t := stringField(raw, "event"); t != "" {
		return strings.ToLower(t)
	}
	if msg, ok := raw["message"].(map[string]any); ok {
		return eventType(msg)
	}
	return ""
}

// textField tries the transcript text fields providers use, in order.
func textField(raw map[string]any) string {
	for _, key := range []string{"text", "transcript", "content", "message"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// isFinal recognizes the finality markers seen across providers.
func isFinal(raw map[string]any) bool {
	for _, key := range []string{"final", "isFinal", "is_final", "finalized"} {
		if v, ok := raw[key].(bool); ok {
			return v
		}
	}
	if strings.EqualFold(stringField(raw, "status"), "final") {
		return true
	}
	if strings.EqualFold(stringField(raw, "transcriptType"), "final") {
		return true
	}
	return false
}

func stringField(raw map[string]any, key string) string {
	v, _ := raw[key].(string)
	return v
}

package voice

import "context"

// CallOptions carries everything the provider needs to open a
// conversation about a specific book.
type CallOptions struct {
	ConversationID string
	BookTitle      string
	Author         string
	ChapterNumber  int
	// WebhookURL receives the provider's session events.
	WebhookURL string
}

// Transport is the outbound control surface of a conversational voice
// provider. Implementations start and stop calls and gate the user's
// microphone while the assistant is speaking.
type Transport interface {
	Start(ctx context.Context, opts CallOptions) (callID string, err error)
	Stop(ctx context.Context, callID string) error
	SetMuted(ctx context.Context, callID string, muted bool) error
}

package api

import (
	"context"
	"crypto/subtle"
	"encoding/json/v2"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readingcompanion/companion-server/internal/domain"
	domainerrors "github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions",
		Summary:     "Start session",
		Description: "Opens a voice session about the current book",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStartSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActiveSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/current",
		Summary:     "Get active session",
		Description: "Returns the owner's active session, if any",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetActiveSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "stopSession",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Stop session",
		Description: "Ends a session, flushing any buffered exchange",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStopSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "postSessionEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/events",
		Summary:     "Ingest session event",
		Description: "Webhook endpoint for voice provider transcript events",
		Tags:        []string{"Sessions"},
	}, s.handleSessionEvent)
}

// === DTOs ===

// StartSessionInput contains parameters for starting a session. The
// body is optional; omitted fields fall back to the current book.
type StartSessionInput struct {
	Authorization string `header:"Authorization"`
	Body          *struct {
		BookTitle     string `json:"bookTitle,omitempty" doc:"Override the book title used in the conversation"`
		Author        string `json:"author,omitempty" doc:"Override the author"`
		ChapterNumber int    `json:"chapterNumber,omitempty" minimum:"0" doc:"Chapter the reader is on"`
	} `required:"false"`
}

// ActiveSessionInput contains parameters for the active-session lookup.
type ActiveSessionInput struct {
	Authorization string `header:"Authorization"`
}

// SessionOutput wraps a session for Huma.
type SessionOutput struct {
	Body *domain.Session
}

// SessionIDInput contains parameters for operations on one session.
type SessionIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Session ID"`
}

// SessionEventInput carries one raw provider webhook event. The payload
// shape varies by provider and event type, so it stays unparsed here.
type SessionEventInput struct {
	Secret  string `header:"X-Webhook-Secret"`
	ID      string `path:"id" doc:"Session ID"`
	RawBody []byte
}

// === Handlers ===

func (s *Server) handleStartSession(ctx context.Context, input *StartSessionInput) (*SessionOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	var opts session.StartOptions
	if input.Body != nil {
		opts = session.StartOptions{
			BookTitle:     input.Body.BookTitle,
			Author:        input.Body.Author,
			ChapterNumber: input.Body.ChapterNumber,
		}
	}

	sess, err := s.sessions.Start(ctx, ownerID, opts)
	if err != nil {
		return nil, err
	}

	return &SessionOutput{Body: sess}, nil
}

func (s *Server) handleGetActiveSession(ctx context.Context, input *ActiveSessionInput) (*SessionOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	sess, ok := s.sessions.Get(ownerID)
	if !ok {
		return nil, domainerrors.NotFound("no active session")
	}

	return &SessionOutput{Body: sess}, nil
}

func (s *Server) handleStopSession(ctx context.Context, input *SessionIDInput) (*MessageOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Stop(ctx, ownerID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Session ended"}}, nil
}

func (s *Server) handleSessionEvent(ctx context.Context, input *SessionEventInput) (*MessageOutput, error) {
	if s.webhookSecret != "" {
		if subtle.ConstantTimeCompare([]byte(input.Secret), []byte(s.webhookSecret)) != 1 {
			return nil, huma.Error401Unauthorized("Invalid webhook secret")
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(input.RawBody, &raw); err != nil {
		return nil, domainerrors.Validation("malformed event payload")
	}

	if err := s.sessions.HandleEvent(ctx, input.ID, raw); err != nil {
		// Events for already-ended sessions arrive after hangup; the
		// provider should not retry them.
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Debug("event for unknown session dropped", "session_id", input.ID)
			return &MessageOutput{Body: MessageResponse{Message: "Ignored"}}, nil
		}
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Accepted"}}, nil
}

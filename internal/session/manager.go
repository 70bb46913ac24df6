// Package session manages live voice reading sessions: one per owner,
// each wired to a provider call and a pairing engine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/id"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/sse"
	"github.com/readingcompanion/companion-server/internal/store"
	"github.com/readingcompanion/companion-server/internal/voice"
)

// Store is the persistence surface the manager and its engines need.
type Store interface {
	voice.NoteStore
	voice.BookResolver
}

// Emitter pushes events to connected clients.
type Emitter interface {
	Emit(event sse.Event)
}

// NoteIndexer keeps the search index in step with captured notes.
type NoteIndexer interface {
	IndexNote(ctx context.Context, n *domain.Note) error
}

// Config tunes the manager.
type Config struct {
	// Engine is the pairing configuration handed to each session's engine.
	Engine voice.Config
	// WebhookBaseURL is the externally reachable base of this server.
	// Session event webhooks are registered under it. Empty disables
	// webhook registration (events can still be posted directly).
	WebhookBaseURL string
}

type activeSession struct {
	session  *domain.Session
	engine   *voice.Engine
	stopOnce sync.Once
}

// Manager owns all active sessions. One session per owner at a time.
type Manager struct {
	store     Store
	transport voice.Transport
	emitter   Emitter
	logger    *logger.Logger
	cfg       Config

	indexer NoteIndexer

	mu       sync.Mutex
	sessions map[string]*activeSession // by session ID
	byOwner  map[string]string         // owner ID -> session ID
}

// SetNoteIndexer sets the search indexer used for captured notes.
// Set after construction to avoid a dependency cycle in wiring.
func (m *Manager) SetNoteIndexer(indexer NoteIndexer) {
	m.indexer = indexer
}

// NewManager creates a session manager.
func NewManager(st Store, transport voice.Transport, emitter Emitter, log *logger.Logger, cfg Config) *Manager {
	return &Manager{
		store:     st,
		transport: transport,
		emitter:   emitter,
		logger:    log,
		cfg:       cfg,
		sessions:  make(map[string]*activeSession),
		byOwner:   make(map[string]string),
	}
}

// StartOptions override parts of the conversation context. Zero values
// fall back to the owner's current book.
type StartOptions struct {
	BookTitle     string
	Author        string
	ChapterNumber int
}

// Start opens a voice session about the owner's current book.
// Fails when the owner already has an active session or has no current
// book selected.
func (m *Manager) Start(ctx context.Context, ownerID string, startOpts StartOptions) (*domain.Session, error) {
	m.mu.Lock()
	if _, active := m.byOwner[ownerID]; active {
		m.mu.Unlock()
		return nil, errors.Conflict("a session is already active")
	}
	m.mu.Unlock()

	book, err := m.store.GetCurrentBook(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Validation("select a current book before starting a session")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "resolve current book")
	}

	sessionID := id.MustGenerate("sess")
	conversationID := uuid.NewString()

	sess := &domain.Session{
		ID:             sessionID,
		ConversationID: conversationID,
		BookID:         book.ID,
		OwnerID:        ownerID,
		Status:         domain.SessionActive,
		StartedAt:      time.Now().UTC(),
	}

	engine := voice.NewEngine(m.store, m.store, m.logger, m.cfg.Engine,
		ownerID, conversationID, func(n *domain.Note) {
			if m.indexer != nil {
				if err := m.indexer.IndexNote(context.Background(), n); err != nil {
					m.logger.WithError(err).Warn("index captured note", "note_id", n.ID)
				}
			}
			m.emitter.Emit(sse.NewNoteCreatedEvent(n))
		})

	opts := voice.CallOptions{
		ConversationID: conversationID,
		BookTitle:      book.Title,
		Author:         book.Author,
		ChapterNumber:  startOpts.ChapterNumber,
	}
	if startOpts.BookTitle != "" {
		opts.BookTitle = startOpts.BookTitle
		opts.Author = startOpts.Author
	}
	if m.cfg.WebhookBaseURL != "" {
		opts.WebhookURL = m.cfg.WebhookBaseURL + "/api/v1/sessions/" + sessionID + "/events"
	}

	callID, err := m.transport.Start(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "start voice call")
	}
	sess.CallID = callID

	m.mu.Lock()
	// Re-check under the lock; a racing start loses.
	if _, active := m.byOwner[ownerID]; active {
		m.mu.Unlock()
		if stopErr := m.transport.Stop(ctx, callID); stopErr != nil {
			m.logger.WithError(stopErr).Warn("stop orphaned call", "call_id", callID)
		}
		return nil, errors.Conflict("a session is already active")
	}
	m.sessions[sessionID] = &activeSession{session: sess, engine: engine}
	m.byOwner[ownerID] = sessionID
	m.mu.Unlock()

	m.logger.Info("session started",
		"session_id", sessionID, "owner_id", ownerID, "book_id", book.ID, "call_id", callID)
	m.emitter.Emit(sse.NewSessionEvent(sse.EventSessionStarted, sess))

	return sess, nil
}

// Stop ends a session: hangs up the call, flushes any buffered pair, and
// marks the session ended.
func (m *Manager) Stop(ctx context.Context, ownerID, sessionID string) error {
	m.mu.Lock()
	active, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok || active.session.OwnerID != ownerID {
		return errors.NotFound("session not found")
	}

	m.end(ctx, active, true)
	return nil
}

// Get returns the owner's active session, if any.
func (m *Manager) Get(ownerID string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessionID, ok := m.byOwner[ownerID]
	if !ok {
		return nil, false
	}
	return m.sessions[sessionID].session, true
}

// HandleEvent feeds one raw provider event into a session. Unknown
// payload shapes are dropped, the provider sends plenty we do not need.
func (m *Manager) HandleEvent(ctx context.Context, sessionID string, raw map[string]any) error {
	m.mu.Lock()
	active, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return errors.NotFound("session not found")
	}

	ev, usable := voice.Normalize(raw)
	if !usable {
		m.logger.Debug("unrecognized session event dropped", "session_id", sessionID)
		return nil
	}

	// Gate the user's microphone around assistant speech so the
	// transcriber never hears the assistant.
	if ev.Role == voice.RoleAssistant {
		switch ev.Type {
		case voice.EventSpeechStarted:
			m.setMuted(ctx, active.session, true)
		case voice.EventSpeechStopped:
			m.setMuted(ctx, active.session, false)
		}
	}

	active.engine.HandleEvent(ctx, ev)

	if ev.Type == voice.EventSessionEnded {
		// The provider hung up; the engine already flushed.
		m.end(ctx, active, false)
	}
	return nil
}

// Shutdown stops every active session, flushing buffered pairs.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	remaining := make([]*activeSession, 0, len(m.sessions))
	for _, active := range m.sessions {
		remaining = append(remaining, active)
	}
	m.mu.Unlock()

	for _, active := range remaining {
		m.end(ctx, active, true)
	}
	return nil
}

// end tears a session down exactly once. hangUp controls whether the
// provider call is still live and needs stopping.
func (m *Manager) end(ctx context.Context, active *activeSession, hangUp bool) {
	active.stopOnce.Do(func() {
		sess := active.session

		if hangUp && sess.CallID != "" {
			if err := m.transport.Stop(ctx, sess.CallID); err != nil {
				m.logger.WithError(err).Warn("stop voice call", "call_id", sess.CallID)
			}
		}

		active.engine.Flush(ctx)

		sess.Status = domain.SessionEnded
		sess.EndedAt = time.Now().UTC()

		m.mu.Lock()
		delete(m.sessions, sess.ID)
		delete(m.byOwner, sess.OwnerID)
		m.mu.Unlock()

		m.logger.Info("session ended", "session_id", sess.ID, "owner_id", sess.OwnerID)
		m.emitter.Emit(sse.NewSessionEvent(sse.EventSessionEnded, sess))
	})
}

// setMuted toggles the user's microphone, logging rather than failing.
func (m *Manager) setMuted(ctx context.Context, sess *domain.Session, muted bool) {
	if sess.CallID == "" {
		return
	}
	if err := m.transport.SetMuted(ctx, sess.CallID, muted); err != nil {
		m.logger.WithError(err).Warn("set microphone mute",
			"call_id", sess.CallID, "muted", muted)
	}
}

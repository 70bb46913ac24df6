package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/sse"
	"github.com/readingcompanion/companion-server/internal/store"
	"github.com/readingcompanion/companion-server/internal/voice"
)

type memStore struct {
	mu      sync.Mutex
	book    *domain.Book
	notes   []*domain.Note
	bookErr error
}

func (m *memStore) SaveNote(_ context.Context, n *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
	return nil
}

func (m *memStore) GetCurrentBook(context.Context, string) (*domain.Book, error) {
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	return m.book, nil
}

func (m *memStore) noteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

type fakeTransport struct {
	mu       sync.Mutex
	started  int
	lastOpts voice.CallOptions
	stopped  []string
	muteLog  []bool
	startErr error
}

func (f *fakeTransport) Start(_ context.Context, opts voice.CallOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started++
	f.lastOpts = opts
	return "call-1", nil
}

func (f *fakeTransport) Stop(_ context.Context, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, callID)
	return nil
}

func (f *fakeTransport) SetMuted(_ context.Context, _ string, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muteLog = append(f.muteLog, muted)
	return nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (f *fakeEmitter) Emit(event sse.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEmitter) byType(t sse.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func testManager(t *testing.T, st *memStore, tr *fakeTransport, em *fakeEmitter) *Manager {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "pretty"})
	return NewManager(st, tr, em, log, Config{
		Engine: voice.Config{SameTurnWindow: 500 * time.Millisecond, FlushDelay: time.Hour},
	})
}

func readyStore() *memStore {
	return &memStore{book: &domain.Book{ID: "book-1", Title: "Deep Work", Author: "Cal Newport"}}
}

func TestStartAndStopSession(t *testing.T) {
	st, tr, em := readyStore(), &fakeTransport{}, &fakeEmitter{}
	m := testManager(t, st, tr, em)
	ctx := context.Background()

	sess, err := m.Start(ctx, "apple:u1", StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != domain.SessionActive || sess.CallID != "call-1" {
		t.Errorf("session = %+v", sess)
	}
	if sess.ConversationID == "" {
		t.Error("conversation ID not minted")
	}

	if _, ok := m.Get("apple:u1"); !ok {
		t.Error("active session not retrievable")
	}

	if err := m.Stop(ctx, "apple:u1", sess.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(tr.stopped) != 1 || tr.stopped[0] != "call-1" {
		t.Errorf("call not stopped: %v", tr.stopped)
	}
	if _, ok := m.Get("apple:u1"); ok {
		t.Error("session still active after stop")
	}
	if em.byType(sse.EventSessionStarted) != 1 || em.byType(sse.EventSessionEnded) != 1 {
		t.Errorf("lifecycle events: %v", em.events)
	}

	// Stopping again is a NotFound, not a second teardown.
	if err := m.Stop(ctx, "apple:u1", sess.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second stop: %v", err)
	}
	if len(tr.stopped) != 1 {
		t.Errorf("call stopped twice: %v", tr.stopped)
	}
}

func TestStartContextOverrides(t *testing.T) {
	st, tr := readyStore(), &fakeTransport{}
	m := testManager(t, st, tr, &fakeEmitter{})

	_, err := m.Start(context.Background(), "apple:u1", StartOptions{
		BookTitle:     "Atomic Habits",
		Author:        "James Clear",
		ChapterNumber: 4,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if tr.lastOpts.BookTitle != "Atomic Habits" || tr.lastOpts.Author != "James Clear" {
		t.Errorf("overrides not applied: %+v", tr.lastOpts)
	}
	if tr.lastOpts.ChapterNumber != 4 {
		t.Errorf("chapter = %d", tr.lastOpts.ChapterNumber)
	}
}

func TestStartRequiresCurrentBook(t *testing.T) {
	st := &memStore{bookErr: store.ErrNotFound}
	m := testManager(t, st, &fakeTransport{}, &fakeEmitter{})

	_, err := m.Start(context.Background(), "apple:u1", StartOptions{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStartOnePerOwner(t *testing.T) {
	st, tr := readyStore(), &fakeTransport{}
	m := testManager(t, st, tr, &fakeEmitter{})
	ctx := context.Background()

	if _, err := m.Start(ctx, "apple:u1", StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(ctx, "apple:u1", StartOptions{}); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	// A different owner is unaffected.
	if _, err := m.Start(ctx, "apple:u2", StartOptions{}); err != nil {
		t.Errorf("second owner blocked: %v", err)
	}
}

func TestHandleEventCapturesNote(t *testing.T) {
	st, tr, em := readyStore(), &fakeTransport{}, &fakeEmitter{}
	m := testManager(t, st, tr, em)
	ctx := context.Background()

	sess, err := m.Start(ctx, "apple:u1", StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	events := []map[string]any{
		{"type": "speech-update", "status": "started", "role": "assistant"},
		{"type": "transcript", "role": "assistant", "text": "What makes work deep?", "final": true},
		{"type": "speech-update", "status": "stopped", "role": "assistant"},
		{"type": "transcript", "role": "user", "transcript": "Concentration.", "isFinal": true},
		{"type": "speech-update", "status": "stopped", "role": "user"},
	}
	for _, raw := range events {
		if err := m.HandleEvent(ctx, sess.ID, raw); err != nil {
			t.Fatalf("handle event %v: %v", raw, err)
		}
	}

	if st.noteCount() != 1 {
		t.Fatalf("expected 1 captured note, got %d", st.noteCount())
	}
	note := st.notes[0]
	if note.ConversationID != sess.ConversationID {
		t.Errorf("note conversation = %q, want %q", note.ConversationID, sess.ConversationID)
	}
	if em.byType(sse.EventNoteCreated) != 1 {
		t.Error("note.created not emitted")
	}

	// Mic muted while the assistant spoke, open afterwards.
	want := []bool{true, false}
	if len(tr.muteLog) != 2 || tr.muteLog[0] != want[0] || tr.muteLog[1] != want[1] {
		t.Errorf("mute log = %v, want %v", tr.muteLog, want)
	}
}

func TestProviderHangupEndsSession(t *testing.T) {
	st, tr, em := readyStore(), &fakeTransport{}, &fakeEmitter{}
	m := testManager(t, st, tr, em)
	ctx := context.Background()

	sess, _ := m.Start(ctx, "apple:u1", StartOptions{})
	_ = m.HandleEvent(ctx, sess.ID, map[string]any{"type": "transcript", "role": "assistant", "text": "Final thoughts?", "final": true})
	_ = m.HandleEvent(ctx, sess.ID, map[string]any{"type": "transcript", "role": "user", "text": "Worth rereading.", "final": true})

	if err := m.HandleEvent(ctx, sess.ID, map[string]any{"type": "call-ended"}); err != nil {
		t.Fatalf("handle hangup: %v", err)
	}

	// Buffered pair flushed, session gone, call not re-stopped.
	if st.noteCount() != 1 {
		t.Errorf("expected flushed note, got %d", st.noteCount())
	}
	if _, ok := m.Get("apple:u1"); ok {
		t.Error("session still active after provider hangup")
	}
	if len(tr.stopped) != 0 {
		t.Errorf("hung-up call should not be stopped again: %v", tr.stopped)
	}
	if em.byType(sse.EventSessionEnded) != 1 {
		t.Error("session.ended not emitted")
	}
}

func TestHandleEventUnknownSession(t *testing.T) {
	m := testManager(t, readyStore(), &fakeTransport{}, &fakeEmitter{})

	err := m.HandleEvent(context.Background(), "sess-missing", map[string]any{"type": "call-ended"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestHandleEventJunkIgnored(t *testing.T) {
	st := readyStore()
	m := testManager(t, st, &fakeTransport{}, &fakeEmitter{})
	ctx := context.Background()

	sess, _ := m.Start(ctx, "apple:u1", StartOptions{})
	if err := m.HandleEvent(ctx, sess.ID, map[string]any{"type": "model-output", "output": "x"}); err != nil {
		t.Errorf("junk event should be dropped silently: %v", err)
	}
	if st.noteCount() != 0 {
		t.Error("junk event produced a note")
	}
}

func TestShutdownFlushesSessions(t *testing.T) {
	st, tr, em := readyStore(), &fakeTransport{}, &fakeEmitter{}
	m := testManager(t, st, tr, em)
	ctx := context.Background()

	sess, _ := m.Start(ctx, "apple:u1", StartOptions{})
	_ = m.HandleEvent(ctx, sess.ID, map[string]any{"type": "transcript", "role": "assistant", "text": "What changed for you?", "final": true})
	_ = m.HandleEvent(ctx, sess.ID, map[string]any{"type": "transcript", "role": "user", "text": "My mornings.", "final": true})

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if st.noteCount() != 1 {
		t.Errorf("shutdown did not flush buffered pair, notes = %d", st.noteCount())
	}
	if len(tr.stopped) != 1 {
		t.Errorf("shutdown did not hang up call: %v", tr.stopped)
	}
}

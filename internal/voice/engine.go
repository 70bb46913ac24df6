package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/id"
	"github.com/readingcompanion/companion-server/internal/logger"
)

// NoteStore persists captured notes. The store's uniqueness constraint
// on (conversation, turn) is the final arbiter against duplicates.
type NoteStore interface {
	SaveNote(ctx context.Context, n *domain.Note) error
}

// BookResolver supplies the owner's current book at commit time.
type BookResolver interface {
	GetCurrentBook(ctx context.Context, ownerID string) (*domain.Book, error)
}

// Config tunes the pairing windows.
type Config struct {
	// SameTurnWindow is how close together two finals must land to be
	// treated as re-emissions of the same utterance.
	SameTurnWindow time.Duration
	// FlushDelay is how long the engine waits after the last user final
	// before committing the pair without an explicit stop signal.
	FlushDelay time.Duration
}

// DefaultConfig returns the production pairing windows.
func DefaultConfig() Config {
	return Config{
		SameTurnWindow: 500 * time.Millisecond,
		FlushDelay:     600 * time.Millisecond,
	}
}

// Engine pairs assistant questions with user answers for one session.
// It buffers transcript finals, supersedes re-emitted finals, and
// commits exactly one note per completed turn.
//
// All entry points are safe for concurrent use; a single mutex
// serializes event handling against timer-driven flushes.
type Engine struct {
	store  NoteStore
	books  BookResolver
	log    *logger.Logger
	cfg    Config
	onNote func(*domain.Note)

	ownerID        string
	conversationID string

	mu              sync.Mutex
	turnIndex       int
	pendingQuestion string
	questionType    string
	topic           string
	chapterNumber   int
	chapterName     string
	bufferedAnswer  string
	lastFinalAt     time.Time
	flushTimer      *time.Timer
}

// NewEngine creates a pairing engine for one conversation. onNote, when
// non-nil, is invoked after each successfully persisted note.
func NewEngine(store NoteStore, books BookResolver, log *logger.Logger, cfg Config,
	ownerID, conversationID string, onNote func(*domain.Note)) *Engine {
	if cfg.SameTurnWindow <= 0 {
		cfg.SameTurnWindow = DefaultConfig().SameTurnWindow
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultConfig().FlushDelay
	}
	return &Engine{
		store:          store,
		books:          books,
		log:            log,
		cfg:            cfg,
		onNote:         onNote,
		ownerID:        ownerID,
		conversationID: conversationID,
	}
}

// HandleEvent feeds one canonical event into the engine.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case EventTranscript:
		if !ev.Final {
			return
		}
		switch ev.Role {
		case RoleAssistant:
			e.handleQuestion(ctx, ev)
		case RoleUser:
			e.handleAnswer(ev)
		}
	case EventSpeechStopped:
		e.stopTimer()
		e.commit(ctx)
	case EventSessionEnded:
		e.stopTimer()
		e.commit(ctx)
	case EventSpeechStarted:
		// Mic handling belongs to the session layer.
	}
}

// Flush commits any buffered pair immediately. Called on session end.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimer()
	e.commit(ctx)
}

// handleQuestion processes an assistant final. A new question first
// closes out any completed turn, then takes the floor; an unanswered
// pending question is replaced outright (the engine never queues two).
func (e *Engine) handleQuestion(ctx context.Context, ev Event) {
	text, ann := ParseAnnotation(ev.Text)
	if text == "" {
		return
	}

	e.stopTimer()
	e.commit(ctx)

	e.pendingQuestion = text
	e.bufferedAnswer = ""
	e.questionType = ""
	e.topic = ""
	e.chapterNumber = 0
	e.chapterName = ""
	e.applyAnnotation(ann)

	if e.questionType == "" {
		if e.turnIndex == 0 {
			e.questionType = "broad"
		} else {
			e.questionType = "probe"
		}
	}
	if e.topic == "" {
		e.topic = TopicFromText(text)
	}
}

func (e *Engine) applyAnnotation(ann *Annotation) {
	if ann == nil {
		return
	}
	if ann.QuestionType != "" {
		e.questionType = ann.QuestionType
	}
	if ann.Topic != "" {
		e.topic = ann.Topic
	}
	if ann.ChapterNumber > 0 {
		e.chapterNumber = ann.ChapterNumber
	}
	if ann.ChapterName != "" {
		e.chapterName = ann.ChapterName
	}
}

// handleAnswer buffers a user final. Re-emissions inside the same-turn
// window keep the longest text; a final outside the window starts a new
// buffered answer, replacing the old one. Speech with no question on
// the floor is held in the buffer too, but never persisted alone.
// Every final re-arms the debounce flush.
func (e *Engine) handleAnswer(ev Event) {
	withinWindow := e.bufferedAnswer != "" &&
		ev.Timestamp.Sub(e.lastFinalAt) <= e.cfg.SameTurnWindow

	if withinWindow {
		// A shorter re-emission inside the window loses.
		if len(ev.Text) > len(e.bufferedAnswer) {
			e.bufferedAnswer = ev.Text
		}
	} else {
		e.bufferedAnswer = ev.Text
	}
	e.lastFinalAt = ev.Timestamp

	e.stopTimer()
	e.flushTimer = time.AfterFunc(e.cfg.FlushDelay, e.timerFlush)
}

// timerFlush runs when the debounce window elapses with no stop signal.
func (e *Engine) timerFlush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commit(context.Background())
}

// stopTimer cancels a pending debounce flush. Caller holds the mutex.
func (e *Engine) stopTimer() {
	if e.flushTimer != nil {
		e.flushTimer.Stop()
		e.flushTimer = nil
	}
}

// commit persists the buffered pair, if complete. Turn state is cleared
// only once the save lands (the store swallows duplicate-turn conflicts
// as success), so a failed write leaves the pair in place for the next
// flush trigger instead of silently losing it. Caller holds the mutex.
func (e *Engine) commit(ctx context.Context) {
	answer := strings.TrimSpace(e.bufferedAnswer)
	if e.pendingQuestion == "" || answer == "" {
		return
	}

	book, err := e.books.GetCurrentBook(ctx, e.ownerID)
	if err != nil {
		e.log.WithError(err).Warn("no current book, captured pair not committed",
			"conversation_id", e.conversationID, "turn_index", e.turnIndex)
		return
	}

	note := &domain.Note{
		ID:             id.MustGenerate("note"),
		ConversationID: e.conversationID,
		TurnIndex:      e.turnIndex,
		BookID:         book.ID,
		BookTitle:      book.Title,
		Author:         book.Author,
		ChapterNumber:  e.chapterNumber,
		ChapterName:    e.chapterName,
		Question:       e.pendingQuestion,
		Answer:         answer,
		QuestionType:   e.questionType,
		Topic:          e.topic,
		Tags:           domain.NoteTags(book.Title, book.Author, e.chapterNumber, e.questionType, e.topic),
		CreatedAt:      time.Now().UTC(),
		OwnerID:        e.ownerID,
	}

	if err := e.store.SaveNote(ctx, note); err != nil {
		e.log.WithError(err).Error("save captured note",
			"conversation_id", e.conversationID, "turn_index", e.turnIndex)
		return
	}

	e.pendingQuestion = ""
	e.bufferedAnswer = ""
	e.turnIndex++

	e.log.Debug("captured note",
		"note_id", note.ID, "conversation_id", e.conversationID, "turn_index", note.TurnIndex)

	if e.onNote != nil {
		e.onNote(note)
	}
}

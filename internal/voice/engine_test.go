package voice

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/logger"
)

type fakeStore struct {
	mu    sync.Mutex
	notes []*domain.Note
}

func (f *fakeStore) SaveNote(_ context.Context, n *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeStore) all() []*domain.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Note(nil), f.notes...)
}

type fakeResolver struct {
	book *domain.Book
	err  error
}

func (f *fakeResolver) GetCurrentBook(context.Context, string) (*domain.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.book, nil
}

func testEngine(t *testing.T, store *fakeStore, resolver *fakeResolver, cfg Config) *Engine {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "pretty"})
	return NewEngine(store, resolver, log, cfg, "apple:u1", "conv-1", nil)
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{book: &domain.Book{
		ID: "book-1", Title: "Deep Work", Author: "Cal Newport",
	}}
}

// slowCfg keeps the debounce timer out of the way so tests drive flushes
// explicitly.
func slowCfg() Config {
	return Config{SameTurnWindow: 500 * time.Millisecond, FlushDelay: time.Hour}
}

func question(text string, at time.Time) Event {
	return Event{Type: EventTranscript, Role: RoleAssistant, Text: text, Final: true, Timestamp: at}
}

func answer(text string, at time.Time) Event {
	return Event{Type: EventTranscript, Role: RoleUser, Text: text, Final: true, Timestamp: at}
}

func TestPairCommitsOnSpeechStopped(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration without distraction.", base.Add(2*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped, Timestamp: base.Add(3 * time.Second)})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	n := notes[0]
	if n.Question != "What makes work deep?" {
		t.Errorf("question = %q", n.Question)
	}
	if n.Answer != "Concentration without distraction." {
		t.Errorf("answer = %q", n.Answer)
	}
	if n.ConversationID != "conv-1" || n.TurnIndex != 0 {
		t.Errorf("turn identity: %+v", n)
	}
	if n.QuestionType != "broad" {
		t.Errorf("first turn should default to broad, got %q", n.QuestionType)
	}
	if n.BookID != "book-1" || n.BookTitle != "Deep Work" {
		t.Errorf("book not attached: %+v", n)
	}
	want := []string{"Deep Work", "Cal Newport", "broad", n.Topic}
	if len(n.Tags) != len(want) {
		t.Fatalf("tags = %v", n.Tags)
	}
	for i, tag := range want {
		if n.Tags[i] != tag {
			t.Errorf("tags[%d] = %q, want %q", i, n.Tags[i], tag)
		}
	}
}

func TestLongestFinalWinsWithinWindow(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What stood out?", base))
	e.HandleEvent(ctx, answer("The focus", base.Add(time.Second)))
	e.HandleEvent(ctx, answer("The focus chapter really landed.", base.Add(1200*time.Millisecond)))
	// A late, shorter re-emission loses.
	e.HandleEvent(ctx, answer("The focus chapter", base.Add(1400*time.Millisecond)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Answer != "The focus chapter really landed." {
		t.Errorf("answer = %q", notes[0].Answer)
	}
}

func TestLateFinalReplacesBuffer(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What stood out?", base))
	e.HandleEvent(ctx, answer("The focus chapter.", base.Add(time.Second)))
	// Past the window this is a fresh answer, not a growing final.
	e.HandleEvent(ctx, answer("Also the bit on rituals.", base.Add(3*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Answer != "Also the bit on rituals." {
		t.Errorf("answer = %q", notes[0].Answer)
	}
}

func TestNewQuestionSupersedesPending(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	// The replacement wins even when it is shorter than the pending one.
	e.HandleEvent(ctx, question("What did you think of the pacing in this chapter?", base))
	e.HandleEvent(ctx, question("Why?", base.Add(200*time.Millisecond)))
	e.HandleEvent(ctx, answer("It dragged in the middle.", base.Add(2*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Question != "Why?" {
		t.Errorf("question = %q", notes[0].Question)
	}
	if notes[0].TurnIndex != 0 {
		t.Errorf("superseded question must not advance the turn, got %d", notes[0].TurnIndex)
	}
}

func TestNoPrematureCommit(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	// Stop with nothing said: no note, and the question stays pending.
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})
	if len(store.all()) != 0 {
		t.Fatal("committed with no answer")
	}

	e.HandleEvent(ctx, answer("Focus.", base.Add(5*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})
	notes := store.all()
	if len(notes) != 1 || notes[0].Answer != "Focus." {
		t.Fatalf("late answer lost: %v", notes)
	}
}

func TestDebounceFlush(t *testing.T) {
	store := &fakeStore{}
	cfg := Config{SameTurnWindow: 10 * time.Millisecond, FlushDelay: 20 * time.Millisecond}
	e := testEngine(t, store, defaultResolver(), cfg)
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))

	// No stop signal ever arrives; the debounce timer must commit.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.all()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(store.all()) != 1 {
		t.Fatal("debounce flush never committed")
	}

	// A stop signal arriving after the timer flush adds nothing.
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})
	if len(store.all()) != 1 {
		t.Errorf("late stop produced extra note: %d", len(store.all()))
	}
}

func TestDoubleSpeechStoppedSingleNote(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	if got := len(store.all()); got != 1 {
		t.Errorf("expected 1 note, got %d", got)
	}
}

func TestSessionEndFlushes(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("Final thoughts?", base))
	e.HandleEvent(ctx, answer("Worth rereading.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSessionEnded})

	notes := store.all()
	if len(notes) != 1 || notes[0].Answer != "Worth rereading." {
		t.Fatalf("session end did not flush: %v", notes)
	}
}

func TestNextQuestionCommitsPreviousTurn(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))
	e.HandleEvent(ctx, question("Why does that matter to you?", base.Add(4*time.Second)))
	e.HandleEvent(ctx, answer("I get distracted constantly.", base.Add(6*time.Second)))
	e.Flush(ctx)

	notes := store.all()
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].TurnIndex != 0 || notes[1].TurnIndex != 1 {
		t.Errorf("turn indexes: %d, %d", notes[0].TurnIndex, notes[1].TurnIndex)
	}
	if notes[1].QuestionType != "probe" {
		t.Errorf("followup should default to probe, got %q", notes[1].QuestionType)
	}
}

func TestAnswerWithoutQuestionNeverPersisted(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	// Held in the buffer, but never a note on its own.
	e.HandleEvent(ctx, answer("Talking to myself.", base))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})
	if len(store.all()) != 0 {
		t.Fatal("answer with no question must not produce a note")
	}

	// The next real turn is unaffected by the held speech.
	e.HandleEvent(ctx, question("What makes work deep?", base.Add(2*time.Second)))
	e.HandleEvent(ctx, answer("Focus.", base.Add(3*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 || notes[0].Answer != "Focus." {
		t.Fatalf("expected one note with the real answer, got %v", notes)
	}
}

func TestMissingBookKeepsTurnState(t *testing.T) {
	store := &fakeStore{}
	resolver := &fakeResolver{err: errors.NotFound("no current book")}
	e := testEngine(t, store, resolver, slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	if len(store.all()) != 0 {
		t.Fatal("nothing should persist without a current book")
	}

	// The pair stayed buffered; the next trigger commits it once a book
	// is resolvable again.
	resolver.err = nil
	resolver.book = &domain.Book{ID: "book-1", Title: "Deep Work"}
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected held pair to commit, got %d notes", len(notes))
	}
	if notes[0].Question != "What makes work deep?" || notes[0].Answer != "Concentration." {
		t.Errorf("held pair mangled: %+v", notes[0])
	}
}

type flakyStore struct {
	mu       sync.Mutex
	failures int
	notes    []*domain.Note
}

func (f *flakyStore) SaveNote(_ context.Context, n *domain.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.Internal("disk full")
	}
	f.notes = append(f.notes, n)
	return nil
}

func (f *flakyStore) all() []*domain.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Note(nil), f.notes...)
}

func TestFailedSaveKeepsTurnState(t *testing.T) {
	store := &flakyStore{failures: 1}
	log := logger.New(logger.Config{Writer: io.Discard, Format: "pretty"})
	e := NewEngine(store, defaultResolver(), log, slowCfg(), "apple:u1", "conv-1", nil)
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	if len(store.all()) != 0 {
		t.Fatal("save should have failed")
	}

	// The pair survives the failure; the next trigger re-attempts.
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected retried commit, got %d notes", len(notes))
	}
	if notes[0].Answer != "Concentration." || notes[0].TurnIndex != 0 {
		t.Errorf("retried note mangled: %+v", notes[0])
	}
}

func TestTurnIndexAdvancesOnlyOnCommit(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, answer("Concentration.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	// An unanswered question in between must not leave a gap.
	e.HandleEvent(ctx, question("Anything else?", base.Add(4*time.Second)))
	e.HandleEvent(ctx, question("What about rituals?", base.Add(8*time.Second)))
	e.HandleEvent(ctx, answer("They anchor the morning.", base.Add(10*time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].TurnIndex != 0 || notes[1].TurnIndex != 1 {
		t.Errorf("turn indexes: %d, %d", notes[0].TurnIndex, notes[1].TurnIndex)
	}
}

func TestAnnotationOverridesHeuristics(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question(
		`How do rituals shape your day? [[meta:{"question_type":"probe","topic":"rituals","chapter":4}]]`, base))
	e.HandleEvent(ctx, answer("They anchor the morning.", base.Add(time.Second)))
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	notes := store.all()
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	n := notes[0]
	if n.Question != "How do rituals shape your day?" {
		t.Errorf("annotation block not stripped: %q", n.Question)
	}
	if n.QuestionType != "probe" || n.Topic != "rituals" || n.ChapterNumber != 4 {
		t.Errorf("annotation not applied: %+v", n)
	}
	hasCh := false
	for _, tag := range n.Tags {
		if tag == "Ch 4" {
			hasCh = true
		}
	}
	if !hasCh {
		t.Errorf("chapter tag missing: %v", n.Tags)
	}
}

func TestPartialsIgnored(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(t, store, defaultResolver(), slowCfg())
	ctx := context.Background()
	base := time.Now()

	e.HandleEvent(ctx, question("What makes work deep?", base))
	e.HandleEvent(ctx, Event{Type: EventTranscript, Role: RoleUser, Text: "Conc", Final: false, Timestamp: base.Add(time.Second)})
	e.HandleEvent(ctx, Event{Type: EventSpeechStopped})

	if len(store.all()) != 0 {
		t.Error("partials must not form an answer")
	}
}

package service

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/search"
	"github.com/readingcompanion/companion-server/internal/store"
)

type fakeNoteStore struct {
	notes   map[string]*domain.Note
	books   map[string]*domain.Book
	current string
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{
		notes: make(map[string]*domain.Note),
		books: make(map[string]*domain.Book),
	}
}

func (f *fakeNoteStore) SaveNote(_ context.Context, n *domain.Note) error {
	cp := *n
	f.notes[n.ID] = &cp
	return nil
}

func (f *fakeNoteStore) GetNote(_ context.Context, ownerID, noteID string) (*domain.Note, error) {
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return n, nil
}

func (f *fakeNoteStore) ListNotes(_ context.Context, ownerID string, _ domain.NoteFilter) ([]*domain.Note, error) {
	var out []*domain.Note
	for _, n := range f.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNoteStore) UpdateNote(_ context.Context, ownerID, noteID string, update domain.NoteUpdate) (*domain.Note, error) {
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if update.Answer != nil {
		n.Answer = *update.Answer
	}
	return n, nil
}

func (f *fakeNoteStore) DeleteNote(_ context.Context, ownerID, noteID string) error {
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.notes, noteID)
	return nil
}

func (f *fakeNoteStore) ListNoteOwners(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var owners []string
	for _, n := range f.notes {
		if !seen[n.OwnerID] {
			seen[n.OwnerID] = true
			owners = append(owners, n.OwnerID)
		}
	}
	return owners, nil
}

func (f *fakeNoteStore) GetBook(_ context.Context, ownerID, bookID string) (*domain.Book, error) {
	b, ok := f.books[bookID]
	if !ok || b.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeNoteStore) GetCurrentBook(_ context.Context, ownerID string) (*domain.Book, error) {
	if f.current == "" {
		return nil, store.ErrNotFound
	}
	return f.GetBook(context.Background(), ownerID, f.current)
}

type fakeNoteIndex struct {
	indexed map[string]*domain.Note
	removed []string
}

func newFakeNoteIndex() *fakeNoteIndex {
	return &fakeNoteIndex{indexed: make(map[string]*domain.Note)}
}

func (f *fakeNoteIndex) IndexNote(_ context.Context, n *domain.Note) error {
	f.indexed[n.ID] = n
	return nil
}

func (f *fakeNoteIndex) RemoveNote(_ context.Context, noteID string) error {
	f.removed = append(f.removed, noteID)
	delete(f.indexed, noteID)
	return nil
}

func (f *fakeNoteIndex) Search(_ context.Context, _, _ string, _ int) (*search.Result, error) {
	return &search.Result{}, nil
}

func newTestNoteService(t *testing.T) (*NoteService, *fakeNoteStore, *fakeNoteIndex) {
	t.Helper()
	st := newFakeNoteStore()
	idx := newFakeNoteIndex()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "pretty"})
	return NewNoteService(st, idx, log), st, idx
}

func TestCreateNoteAttachesToCurrentBook(t *testing.T) {
	svc, st, idx := newTestNoteService(t)
	st.books["book-1"] = &domain.Book{ID: "book-1", Title: "Deep Work", Author: "Cal Newport", OwnerID: "apple:u1"}
	st.current = "book-1"

	note, err := svc.CreateNote(context.Background(), "apple:u1", CreateNoteInput{
		Question: "What makes work deep?",
		Answer:   "Concentration without distraction.",
	})
	require.NoError(t, err)

	assert.Equal(t, "book-1", note.BookID)
	assert.Equal(t, "Deep Work", note.BookTitle)
	assert.Equal(t, "Cal Newport", note.Author)
	assert.NotEmpty(t, note.Topic)
	assert.Contains(t, note.Tags, "Deep Work")
	assert.Contains(t, st.notes, note.ID)
	assert.Contains(t, idx.indexed, note.ID)
}

func TestCreateNoteExplicitBook(t *testing.T) {
	svc, st, _ := newTestNoteService(t)
	st.books["book-1"] = &domain.Book{ID: "book-1", Title: "Deep Work", OwnerID: "apple:u1"}
	st.books["book-2"] = &domain.Book{ID: "book-2", Title: "Atomic Habits", OwnerID: "apple:u1"}
	st.current = "book-1"

	note, err := svc.CreateNote(context.Background(), "apple:u1", CreateNoteInput{
		Question: "Why do small habits compound?",
		Answer:   "Each repetition casts a vote for an identity.",
		BookID:   "book-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "book-2", note.BookID)
	assert.Equal(t, "Atomic Habits", note.BookTitle)
}

func TestCreateNoteRequiresBook(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.CreateNote(context.Background(), "apple:u1", CreateNoteInput{
		Question: "q", Answer: "a",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateNoteRequiresQuestionAndAnswer(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.CreateNote(context.Background(), "apple:u1", CreateNoteInput{Question: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestUpdateNoteReindexes(t *testing.T) {
	svc, st, idx := newTestNoteService(t)
	st.notes["note-1"] = &domain.Note{ID: "note-1", OwnerID: "apple:u1", Question: "q", Answer: "a"}

	answer := "edited"
	note, err := svc.UpdateNote(context.Background(), "apple:u1", "note-1", domain.NoteUpdate{Answer: &answer})
	require.NoError(t, err)
	assert.Equal(t, "edited", note.Answer)
	require.Contains(t, idx.indexed, "note-1")
	assert.Equal(t, "edited", idx.indexed["note-1"].Answer)
}

func TestUpdateNoteNotFound(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	answer := "edited"
	_, err := svc.UpdateNote(context.Background(), "apple:u1", "note-missing", domain.NoteUpdate{Answer: &answer})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeleteNoteRemovesFromIndex(t *testing.T) {
	svc, st, idx := newTestNoteService(t)
	st.notes["note-1"] = &domain.Note{ID: "note-1", OwnerID: "apple:u1"}

	require.NoError(t, svc.DeleteNote(context.Background(), "apple:u1", "note-1"))
	assert.NotContains(t, st.notes, "note-1")
	assert.Equal(t, []string{"note-1"}, idx.removed)
}

func TestDeleteNoteWrongOwner(t *testing.T) {
	svc, st, _ := newTestNoteService(t)
	st.notes["note-1"] = &domain.Note{ID: "note-1", OwnerID: "apple:u1"}

	err := svc.DeleteNote(context.Background(), "apple:u2", "note-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, st.notes, "note-1")
}

func TestSearchNotesRequiresQuery(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.SearchNotes(context.Background(), "apple:u1", "", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestReindexAll(t *testing.T) {
	svc, st, idx := newTestNoteService(t)
	st.notes["note-1"] = &domain.Note{ID: "note-1", OwnerID: "apple:u1"}
	st.notes["note-2"] = &domain.Note{ID: "note-2", OwnerID: "google:u2"}

	require.NoError(t, svc.ReindexAll(context.Background()))
	assert.Len(t, idx.indexed, 2)
}

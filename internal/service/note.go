package service

import (
	"context"
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/id"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/search"
	"github.com/readingcompanion/companion-server/internal/store"
	"github.com/readingcompanion/companion-server/internal/voice"
)

// NoteStore is the persistence surface the note service needs.
type NoteStore interface {
	SaveNote(ctx context.Context, n *domain.Note) error
	GetNote(ctx context.Context, ownerID, noteID string) (*domain.Note, error)
	ListNotes(ctx context.Context, ownerID string, filter domain.NoteFilter) ([]*domain.Note, error)
	UpdateNote(ctx context.Context, ownerID, noteID string, update domain.NoteUpdate) (*domain.Note, error)
	DeleteNote(ctx context.Context, ownerID, noteID string) error
	ListNoteOwners(ctx context.Context) ([]string, error)
	GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error)
	GetCurrentBook(ctx context.Context, ownerID string) (*domain.Book, error)
}

// NoteIndex is the search surface the note service needs.
type NoteIndex interface {
	IndexNote(ctx context.Context, n *domain.Note) error
	RemoveNote(ctx context.Context, noteID string) error
	Search(ctx context.Context, ownerID, queryText string, limit int) (*search.Result, error)
}

// NoteService manages captured and hand-written notes.
type NoteService struct {
	store  NoteStore
	index  NoteIndex
	logger *logger.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(st NoteStore, index NoteIndex, log *logger.Logger) *NoteService {
	return &NoteService{
		store:  st,
		index:  index,
		logger: log,
	}
}

// CreateNoteInput carries the fields for a hand-written note.
type CreateNoteInput struct {
	Question      string
	Answer        string
	BookID        string // empty means the current book
	ChapterNumber int
	ChapterName   string
	Topic         string
}

// CreateNote stores a hand-written note against a book. Without an
// explicit book it attaches to the current one.
func (s *NoteService) CreateNote(ctx context.Context, ownerID string, input CreateNoteInput) (*domain.Note, error) {
	if input.Question == "" || input.Answer == "" {
		return nil, errors.Validation("question and answer are required")
	}

	var book *domain.Book
	var err error
	if input.BookID != "" {
		book, err = s.store.GetBook(ctx, ownerID, input.BookID)
	} else {
		book, err = s.store.GetCurrentBook(ctx, ownerID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Validation("no book to attach the note to")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "resolve book")
	}

	topic := input.Topic
	if topic == "" {
		topic = voice.TopicFromText(input.Question)
	}

	note := &domain.Note{
		ID:            id.MustGenerate("note"),
		BookID:        book.ID,
		BookTitle:     book.Title,
		Author:        book.Author,
		ChapterNumber: input.ChapterNumber,
		ChapterName:   input.ChapterName,
		Question:      input.Question,
		Answer:        input.Answer,
		Topic:         topic,
		Tags:          domain.NoteTags(book.Title, book.Author, input.ChapterNumber, "", topic),
		CreatedAt:     time.Now().UTC(),
		OwnerID:       ownerID,
	}

	if err := s.store.SaveNote(ctx, note); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "save note")
	}
	if err := s.index.IndexNote(ctx, note); err != nil {
		s.logger.WithError(err).Warn("index note", "note_id", note.ID)
	}

	s.logger.Info("note created", "note_id", note.ID, "owner_id", ownerID)
	return note, nil
}

// ListNotes returns the owner's notes newest first, narrowed by filter.
func (s *NoteService) ListNotes(ctx context.Context, ownerID string, filter domain.NoteFilter) ([]*domain.Note, error) {
	return s.store.ListNotes(ctx, ownerID, filter)
}

// GetNote returns one note.
func (s *NoteService) GetNote(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.store.GetNote(ctx, ownerID, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("note not found")
	}
	return note, err
}

// UpdateNote edits a note and refreshes the search index.
func (s *NoteService) UpdateNote(ctx context.Context, ownerID, noteID string, update domain.NoteUpdate) (*domain.Note, error) {
	note, err := s.store.UpdateNote(ctx, ownerID, noteID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("note not found")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "update note")
	}

	if err := s.index.IndexNote(ctx, note); err != nil {
		s.logger.WithError(err).Warn("reindex note", "note_id", noteID)
	}
	return note, nil
}

// DeleteNote removes a note from the store and the search index.
func (s *NoteService) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	if err := s.store.DeleteNote(ctx, ownerID, noteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFound("note not found")
		}
		return errors.Wrap(err, errors.CodeInternal, "delete note")
	}
	if err := s.index.RemoveNote(ctx, noteID); err != nil {
		s.logger.WithError(err).Warn("remove note from index", "note_id", noteID)
	}
	return nil
}

// SearchNotes runs a full-text query over the owner's notes.
func (s *NoteService) SearchNotes(ctx context.Context, ownerID, query string, limit int) (*search.Result, error) {
	if query == "" {
		return nil, errors.Validation("query is required")
	}
	return s.index.Search(ctx, ownerID, query, limit)
}

// ReindexAll rebuilds the search index from the store. Used at startup
// when the index was recreated.
func (s *NoteService) ReindexAll(ctx context.Context) error {
	ownerIDs, err := s.store.ListNoteOwners(ctx)
	if err != nil {
		return err
	}
	for _, ownerID := range ownerIDs {
		notes, err := s.store.ListNotes(ctx, ownerID, domain.NoteFilter{})
		if err != nil {
			return err
		}
		for _, n := range notes {
			if err := s.index.IndexNote(ctx, n); err != nil {
				return err
			}
		}
	}
	return nil
}

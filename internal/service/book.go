// Package service orchestrates domain operations between the API layer
// and the store.
package service

import (
	"context"
	"time"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/id"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/sse"
	"github.com/readingcompanion/companion-server/internal/store"
)

// BookStore is the persistence surface the book service needs.
type BookStore interface {
	UpsertBook(ctx context.Context, b *domain.Book) error
	GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error)
	ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error)
	GetCurrentBook(ctx context.Context, ownerID string) (*domain.Book, error)
	SetCurrentBook(ctx context.Context, ownerID, bookID string) error
	DeleteBook(ctx context.Context, ownerID, bookID string) error
}

// Catalog searches an external book metadata source.
type Catalog interface {
	Search(ctx context.Context, query string) ([]domain.BookSearchResult, error)
}

// Emitter pushes events to connected clients.
type Emitter interface {
	Emit(event sse.Event)
}

// BookService manages the reader's library and current selection.
type BookService struct {
	store   BookStore
	catalog Catalog
	emitter Emitter
	logger  *logger.Logger
}

// NewBookService creates a new book service.
func NewBookService(st BookStore, catalog Catalog, emitter Emitter, log *logger.Logger) *BookService {
	return &BookService{
		store:   st,
		catalog: catalog,
		emitter: emitter,
		logger:  log,
	}
}

// AddBookInput carries the fields for adding a book to the library.
type AddBookInput struct {
	// ID is the catalog identifier (ISBN or work key) when the book came
	// from search. Empty for manual entries.
	ID       string
	Title    string
	Author   string
	CoverURL string
}

// AddBook adds a book to the owner's library, or refreshes it if it is
// already there. Becomes the current book when it is the first one.
func (s *BookService) AddBook(ctx context.Context, ownerID string, input AddBookInput) (*domain.Book, error) {
	if input.Title == "" {
		return nil, errors.Validation("title is required")
	}

	existing, err := s.store.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list books")
	}

	bookID := input.ID
	if bookID == "" {
		bookID = id.MustGenerate("book")
	}

	book := &domain.Book{
		ID:        bookID,
		Title:     input.Title,
		Author:    input.Author,
		CoverURL:  input.CoverURL,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.UpsertBook(ctx, book); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "save book")
	}

	// First book in the library becomes the current one.
	if len(existing) == 0 {
		if err := s.store.SetCurrentBook(ctx, ownerID, bookID); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "set first book current")
		}
		book.IsCurrent = true
		s.emitter.Emit(sse.NewBookChangedEvent(book))
	}

	s.logger.Info("book added", "book_id", bookID, "owner_id", ownerID, "title", input.Title)
	return s.store.GetBook(ctx, ownerID, bookID)
}

// ListBooks returns the owner's library, current book first.
func (s *BookService) ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx, ownerID)
}

// GetCurrentBook returns the owner's current book.
func (s *BookService) GetCurrentBook(ctx context.Context, ownerID string) (*domain.Book, error) {
	book, err := s.store.GetCurrentBook(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("no current book selected")
	}
	return book, err
}

// SetCurrentBook makes the given book the owner's current selection.
func (s *BookService) SetCurrentBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	if err := s.store.SetCurrentBook(ctx, ownerID, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("book not found")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "set current book")
	}

	book, err := s.store.GetBook(ctx, ownerID, bookID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "reload book")
	}

	s.logger.Info("current book changed", "book_id", bookID, "owner_id", ownerID)
	s.emitter.Emit(sse.NewBookChangedEvent(book))
	return book, nil
}

// DeleteBook removes a book from the library. Its notes survive with
// their denormalized title and author.
func (s *BookService) DeleteBook(ctx context.Context, ownerID, bookID string) error {
	if err := s.store.DeleteBook(ctx, ownerID, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFound("book not found")
		}
		return errors.Wrap(err, errors.CodeInternal, "delete book")
	}
	s.logger.Info("book deleted", "book_id", bookID, "owner_id", ownerID)
	return nil
}

// SearchCatalog looks up candidate books in the metadata catalog.
func (s *BookService) SearchCatalog(ctx context.Context, query string) ([]domain.BookSearchResult, error) {
	if query == "" {
		return nil, errors.Validation("query is required")
	}
	results, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "catalog search")
	}
	return results, nil
}

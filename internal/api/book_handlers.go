package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the owner's library, current book first",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "addBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Add book",
		Description: "Adds a book to the library",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search book catalog",
		Description: "Searches OpenLibrary for candidate books",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/current",
		Summary:     "Get current book",
		Description: "Returns the book new voice notes attach to",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCurrentBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/current",
		Summary:     "Set current book",
		Description: "Makes the given book the current selection",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetCurrentBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book from the library; its notes survive",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)
}

// === DTOs ===

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	Authorization string `header:"Authorization"`
}

// ListBooksResponse contains the owner's library.
type ListBooksResponse struct {
	Books []*domain.Book `json:"books" doc:"Books in the library"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// AddBookRequest is the request body for adding a book.
type AddBookRequest struct {
	ID       string `json:"id,omitempty" validate:"omitempty,max=100" doc:"Catalog ID from search, empty for manual entries"`
	Title    string `json:"title" validate:"required,min=1,max=300" doc:"Book title"`
	Author   string `json:"author,omitempty" validate:"omitempty,max=200" doc:"Author name"`
	CoverURL string `json:"coverUrl,omitempty" validate:"omitempty,url" doc:"Cover image URL"`
}

// AddBookInput wraps the add book request for Huma.
type AddBookInput struct {
	Authorization string `header:"Authorization"`
	Body          AddBookRequest
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body *domain.Book
}

// BookIDInput contains parameters for operations on one book.
type BookIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
}

// CatalogSearchInput contains parameters for catalog search.
type CatalogSearchInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Search query"`
}

// CatalogSearchResponse contains catalog candidates.
type CatalogSearchResponse struct {
	Results []domain.BookSearchResult `json:"results" doc:"Candidate books"`
}

// CatalogSearchOutput wraps the catalog search response for Huma.
type CatalogSearchOutput struct {
	Body CatalogSearchResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	books, err := s.services.Book.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []*domain.Book{}
	}

	return &ListBooksOutput{Body: ListBooksResponse{Books: books}}, nil
}

func (s *Server) handleAddBook(ctx context.Context, input *AddBookInput) (*BookOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	book, err := s.services.Book.AddBook(ctx, ownerID, service.AddBookInput{
		ID:       input.Body.ID,
		Title:    input.Body.Title,
		Author:   input.Body.Author,
		CoverURL: input.Body.CoverURL,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: book}, nil
}

func (s *Server) handleSearchCatalog(ctx context.Context, input *CatalogSearchInput) (*CatalogSearchOutput, error) {
	if _, err := s.authenticateRequest(input.Authorization); err != nil {
		return nil, err
	}

	results, err := s.services.Book.SearchCatalog(ctx, input.Query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.BookSearchResult{}
	}

	return &CatalogSearchOutput{Body: CatalogSearchResponse{Results: results}}, nil
}

func (s *Server) handleGetCurrentBook(ctx context.Context, input *ListBooksInput) (*BookOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.GetCurrentBook(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: book}, nil
}

func (s *Server) handleSetCurrentBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.SetCurrentBook(ctx, ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*MessageOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Book.DeleteBook(ctx, ownerID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

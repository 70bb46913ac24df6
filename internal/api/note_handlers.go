package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/search"
	"github.com/readingcompanion/companion-server/internal/service"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes",
		Summary:     "List notes",
		Description: "Returns the owner's notes newest first, narrowed by filters",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "createNote",
		Method:      http.MethodPost,
		Path:        "/api/v1/notes",
		Summary:     "Create note",
		Description: "Stores a hand-written note against a book",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchNotes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/search",
		Summary:     "Search notes",
		Description: "Runs a full-text query over the owner's notes",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNote",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Get note",
		Description: "Returns a note by ID",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateNote",
		Method:      http.MethodPatch,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Update note",
		Description: "Edits a note",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteNote",
		Method:      http.MethodDelete,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Delete note",
		Description: "Deletes a note",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteNote)
}

// === DTOs ===

// ListNotesInput contains parameters for listing notes.
type ListNotesInput struct {
	Authorization string `header:"Authorization"`
	Book          string `query:"book" doc:"Filter by book ID"`
	Chapter       int    `query:"chapter" doc:"Filter by chapter number"`
	Query         string `query:"q" doc:"Substring filter over question, answer, topic, and book title"`
	Limit         int    `query:"limit" doc:"Maximum notes to return"`
}

// ListNotesResponse contains a list of notes.
type ListNotesResponse struct {
	Notes []*domain.Note `json:"notes" doc:"Notes, newest first"`
}

// ListNotesOutput wraps the list notes response for Huma.
type ListNotesOutput struct {
	Body ListNotesResponse
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Question      string `json:"question" validate:"required,min=1,max=2000" doc:"The question that prompted the note"`
	Answer        string `json:"answer" validate:"required,min=1,max=10000" doc:"The reader's answer"`
	BookID        string `json:"bookId,omitempty" validate:"omitempty,max=100" doc:"Book to attach to, defaults to the current book"`
	ChapterNumber int    `json:"chapterNumber,omitempty" validate:"omitempty,gte=0" doc:"Chapter number, zero means unset"`
	ChapterName   string `json:"chapterName,omitempty" validate:"omitempty,max=200" doc:"Chapter name"`
	Topic         string `json:"topic,omitempty" validate:"omitempty,max=100" doc:"Topic, derived from the question when empty"`
}

// CreateNoteInput wraps the create note request for Huma.
type CreateNoteInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateNoteRequest
}

// NoteOutput wraps a single note for Huma.
type NoteOutput struct {
	Body *domain.Note
}

// NoteIDInput contains parameters for operations on one note.
type NoteIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Question      *string   `json:"question,omitempty" validate:"omitempty,min=1,max=2000" doc:"The question"`
	Answer        *string   `json:"answer,omitempty" validate:"omitempty,min=1,max=10000" doc:"The answer"`
	ChapterNumber *int      `json:"chapterNumber,omitempty" validate:"omitempty,gte=0" doc:"Chapter number"`
	ChapterName   *string   `json:"chapterName,omitempty" validate:"omitempty,max=200" doc:"Chapter name"`
	Topic         *string   `json:"topic,omitempty" validate:"omitempty,max=100" doc:"Topic"`
	Tags          *[]string `json:"tags,omitempty" doc:"Tags, replaces the existing set"`
}

// UpdateNoteInput wraps the update note request for Huma.
type UpdateNoteInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Note ID"`
	Body          UpdateNoteRequest
}

// SearchNotesInput contains parameters for searching notes.
type SearchNotesInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Search query"`
	Limit         int    `query:"limit" doc:"Maximum hits to return"`
}

// SearchNotesOutput wraps the search result for Huma.
type SearchNotesOutput struct {
	Body *search.Result
}

// === Handlers ===

func (s *Server) handleListNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	notes, err := s.services.Note.ListNotes(ctx, ownerID, domain.NoteFilter{
		BookID:        input.Book,
		ChapterNumber: input.Chapter,
		Query:         input.Query,
		Limit:         input.Limit,
	})
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []*domain.Note{}
	}

	return &ListNotesOutput{Body: ListNotesResponse{Notes: notes}}, nil
}

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	note, err := s.services.Note.CreateNote(ctx, ownerID, service.CreateNoteInput{
		Question:      input.Body.Question,
		Answer:        input.Body.Answer,
		BookID:        input.Body.BookID,
		ChapterNumber: input.Body.ChapterNumber,
		ChapterName:   input.Body.ChapterName,
		Topic:         input.Body.Topic,
	})
	if err != nil {
		return nil, err
	}

	return &NoteOutput{Body: note}, nil
}

func (s *Server) handleSearchNotes(ctx context.Context, input *SearchNotesInput) (*SearchNotesOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Note.SearchNotes(ctx, ownerID, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchNotesOutput{Body: result}, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *NoteIDInput) (*NoteOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	note, err := s.services.Note.GetNote(ctx, ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	return &NoteOutput{Body: note}, nil
}

func (s *Server) handleUpdateNote(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	note, err := s.services.Note.UpdateNote(ctx, ownerID, input.ID, domain.NoteUpdate{
		Question:      input.Body.Question,
		Answer:        input.Body.Answer,
		ChapterNumber: input.Body.ChapterNumber,
		ChapterName:   input.Body.ChapterName,
		Topic:         input.Body.Topic,
		Tags:          input.Body.Tags,
	})
	if err != nil {
		return nil, err
	}

	return &NoteOutput{Body: note}, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, input *NoteIDInput) (*MessageOutput, error) {
	ownerID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Note.DeleteNote(ctx, ownerID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Note deleted"}}, nil
}

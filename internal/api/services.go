package api

import (
	"github.com/readingcompanion/companion-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth *service.AuthService
	Book *service.BookService
	Note *service.NoteService
}

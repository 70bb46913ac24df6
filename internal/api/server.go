// Package api provides the HTTP API server and handlers for the reading companion.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readingcompanion/companion-server/internal/auth"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/search"
	"github.com/readingcompanion/companion-server/internal/session"
	"github.com/readingcompanion/companion-server/internal/sse"
	"github.com/readingcompanion/companion-server/internal/store/sqlite"
	"github.com/readingcompanion/companion-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         *sqlite.Store
	services      *Services
	sessions      *session.Manager
	sseHandler    *sse.Handler
	sseManager    *sse.Manager
	searchIndex   *search.NoteIndex
	tokens        *auth.TokenService
	validator     *validation.Validator
	webhookSecret string

	router          *chi.Mux
	api             huma.API
	logger          *logger.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *sqlite.Store, services *Services, sessions *session.Manager, sseHandler *sse.Handler, sseManager *sse.Manager, searchIndex *search.NoteIndex, tokens *auth.TokenService, webhookSecret string, log *logger.Logger) *Server {
	s := &Server{
		store:           st,
		services:        services,
		sessions:        sessions,
		sseHandler:      sseHandler,
		sseManager:      sseManager,
		searchIndex:     searchIndex,
		tokens:          tokens,
		validator:       validation.New(),
		webhookSecret:   webhookSecret,
		router:          chi.NewRouter(),
		logger:          log,
		authRateLimiter: NewRateLimiter(20, time.Minute, 10),
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Reading Companion API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerNoteRoutes()
	s.registerSessionRoutes()

	// SSE streaming lives outside huma; OpenAPI cannot describe a
	// long-lived event stream.
	s.router.Get("/api/v1/events/stream", s.sseHandler.ServeHTTP)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(AuthRateLimitMiddleware(s.authRateLimiter, s.logger))
}

// MessageResponse is a simple confirmation body.
type MessageResponse struct {
	Message string `json:"message" doc:"Confirmation message"`
}

// MessageOutput wraps a confirmation message for Huma.
type MessageOutput struct {
	Body MessageResponse
}

package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/readingcompanion/companion-server/internal/api"
	"github.com/readingcompanion/companion-server/internal/auth"
	"github.com/readingcompanion/companion-server/internal/config"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/service"
	"github.com/readingcompanion/companion-server/internal/session"
	"github.com/readingcompanion/companion-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	sessions := do.MustInvoke[*session.Manager](i)

	services := &api.Services{
		Auth: do.MustInvoke[*service.AuthService](i),
		Book: do.MustInvoke[*service.BookService](i),
		Note: do.MustInvoke[*service.NoteService](i),
	}

	sseHandler := sse.NewHandler(sseHandle.Manager, tokens, log)

	handler := api.NewServer(storeHandle.Store, services, sessions, sseHandler,
		sseHandle.Manager, indexHandle.NoteIndex, tokens, cfg.Voice.WebhookSecret, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}

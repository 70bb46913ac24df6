package providers

import (
	"github.com/samber/do/v2"

	"github.com/readingcompanion/companion-server/internal/config"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/metadata/openlibrary"
	"github.com/readingcompanion/companion-server/internal/session"
	"github.com/readingcompanion/companion-server/internal/voice"
	"github.com/readingcompanion/companion-server/internal/voice/vapi"
)

// ProvideVoiceTransport provides the Vapi call transport.
func ProvideVoiceTransport(i do.Injector) (voice.Transport, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return vapi.NewClient(cfg.Voice.ProviderURL, cfg.Voice.ProviderKey, log), nil
}

// ProvideOpenLibraryClient provides the book metadata catalog client.
func ProvideOpenLibraryClient(i do.Injector) (*openlibrary.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return openlibrary.NewClient(cfg.OpenLibrary.BaseURL, log), nil
}

// ProvideSessionManager provides the voice session manager.
func ProvideSessionManager(i do.Injector) (*session.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	transport := do.MustInvoke[voice.Transport](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	manager := session.NewManager(storeHandle.Store, transport, sseHandle.Manager, log, session.Config{
		Engine:         voice.DefaultConfig(),
		WebhookBaseURL: cfg.Voice.WebhookBaseURL,
	})

	// Captured notes go through the manager, not the note service, so the
	// search index is wired in directly.
	manager.SetNoteIndexer(indexHandle.NoteIndex)

	return manager, nil
}

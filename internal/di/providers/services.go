package providers

import (
	"github.com/samber/do/v2"

	"github.com/readingcompanion/companion-server/internal/auth"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/metadata/openlibrary"
	"github.com/readingcompanion/companion-server/internal/service"
)

// ProvideAuthService provides the identity exchange service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(tokens, log), nil
}

// ProvideBookService provides the library service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*openlibrary.Client](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, catalog, sseHandle.Manager, log), nil
}

// ProvideNoteService provides the note service.
func ProvideNoteService(i do.Injector) (*service.NoteService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNoteService(storeHandle.Store, indexHandle.NoteIndex, log), nil
}

package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readingcompanion/companion-server/internal/config"
	"github.com/readingcompanion/companion-server/internal/logger"
	"github.com/readingcompanion/companion-server/internal/search"
	"github.com/readingcompanion/companion-server/internal/service"
)

// SearchIndexHandle wraps the note search index with shutdown capability.
type SearchIndexHandle struct {
	*search.NoteIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve note index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewNoteIndex(cfg.Storage.DataPath, log)
	if err != nil {
		return nil, err
	}

	return &SearchIndexHandle{NoteIndex: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds the index from the store when it
// comes up empty, which happens after a mapping change or corruption.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	noteService := do.MustInvoke[*service.NoteService](i)

	count, err := indexHandle.DocumentCount()
	if err != nil {
		log.WithError(err).Warn("search index count failed, skipping reindex")
		return
	}
	if count > 0 {
		return
	}

	go func() {
		if err := noteService.ReindexAll(context.Background()); err != nil {
			log.WithError(err).Error("search reindex failed")
			return
		}
		log.Info("search reindex complete")
	}()
}

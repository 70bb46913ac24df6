package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/logger"
)

// NoteIndex wraps a Bleve index over captured notes.
//
// All public methods are safe for concurrent use.
type NoteIndex struct {
	index  bleve.Index
	path   string
	logger *logger.Logger
	mu     sync.RWMutex
}

// mappingVersion is incremented whenever the index mapping changes,
// which forces a recreate on startup.
const mappingVersion = "1"

// NewNoteIndex creates or opens the note search index under dataPath.
// A corrupted or outdated index is removed and recreated; the SQLite
// store remains the source of truth, so a rebuild only costs reindexing.
func NewNoteIndex(dataPath string, log *logger.Logger) (*NoteIndex, error) {
	indexPath := filepath.Join(dataPath, "notes.bleve")
	versionPath := filepath.Join(dataPath, "notes.bleve.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			log.Info("search index mapping outdated, recreating",
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.WithError(err).Warn("failed to open existing search index, recreating",
				"path", indexPath)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			log.WithError(writeErr).Warn("failed to write search version file")
		}
		log.Info("created note search index", "path", indexPath)
	} else {
		log.Info("opened note search index", "path", indexPath)
	}

	return &NoteIndex{
		index:  index,
		path:   indexPath,
		logger: log,
	}, nil
}

// Close closes the index and releases resources.
func (s *NoteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexNote adds or updates a note in the index.
func (s *NoteIndex) IndexNote(_ context.Context, n *domain.Note) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := FromNote(n)
	return s.index.Index(doc.ID, doc.ToMap())
}

// RemoveNote deletes a note from the index.
func (s *NoteIndex) RemoveNote(_ context.Context, noteID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(noteID)
}

// DocumentCount returns the number of indexed notes.
func (s *NoteIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Hit is one search result.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	BookTitle  string            `json:"bookTitle,omitempty"`
	Topic      string            `json:"topic,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Result is a page of search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"tookMs"`
	Hits   []Hit  `json:"hits"`
}

// Search runs a full-text query scoped to one owner's notes.
func (s *NoteIndex) Search(_ context.Context, ownerID, queryText string, limit int) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	matchQuery := bleve.NewMatchQuery(queryText)
	matchQuery.SetFuzziness(1)

	ownerQuery := bleve.NewTermQuery(ownerID)
	ownerQuery.SetField("owner_id")

	searchQuery := bleve.NewConjunctionQuery(
		query.Query(ownerQuery),
		query.Query(matchQuery),
	)

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	req.Fields = []string{"question", "answer", "book_title", "topic"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("question")
	req.Highlight.AddField("answer")

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &Result{
		Query:  queryText,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := Hit{
			ID:        hit.ID,
			Score:     hit.Score,
			Question:  stringValue(hit.Fields, "question"),
			Answer:    stringValue(hit.Fields, "answer"),
			BookTitle: stringValue(hit.Fields, "book_title"),
			Topic:     stringValue(hit.Fields, "topic"),
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

func stringValue(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

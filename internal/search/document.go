// Package search provides full-text note search using Bleve.
package search

import (
	"github.com/readingcompanion/companion-server/internal/domain"
)

// NoteDocument is the shape of a note in the Bleve index. Question and
// answer text are the primary search targets; book title, topic, and
// tags round out recall. Owner is a keyword field used for scoping.
type NoteDocument struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	BookID    string   `json:"book_id,omitempty"`
	BookTitle string   `json:"book_title,omitempty"`
	Author    string   `json:"author,omitempty"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Topic     string   `json:"topic,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

// FromNote converts a domain note into its index document.
func FromNote(n *domain.Note) *NoteDocument {
	return &NoteDocument{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		BookID:    n.BookID,
		BookTitle: n.BookTitle,
		Author:    n.Author,
		Question:  n.Question,
		Answer:    n.Answer,
		Topic:     n.Topic,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map so field names match the mapping.
func (d *NoteDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"owner_id":   d.OwnerID,
		"question":   d.Question,
		"answer":     d.Answer,
		"created_at": d.CreatedAt,
	}
	if d.BookID != "" {
		m["book_id"] = d.BookID
	}
	if d.BookTitle != "" {
		m["book_title"] = d.BookTitle
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Topic != "" {
		m["topic"] = d.Topic
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

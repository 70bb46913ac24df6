// Package domain defines the core entities of the reading companion.
package domain

import "time"

// Book is a title the reader is working through. At most one book per
// owner is current at a time; the current book anchors new voice notes.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	OwnerID   string    `json:"ownerId"`
	IsCurrent bool      `json:"isCurrent"`
	CreatedAt time.Time `json:"createdAt"`
}

// BookSearchResult is a candidate from the metadata catalog, not yet
// part of the local library.
type BookSearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
	Year     int    `json:"year,omitempty"`
}

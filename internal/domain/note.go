package domain

import "time"

// Note is one captured question/answer exchange from a reading session.
//
// ConversationID and TurnIndex identify the exchange within its session;
// together they make saves idempotent. ChapterNumber zero means unset.
type Note struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	TurnIndex      int       `json:"turnIndex"`
	BookID         string    `json:"bookId,omitempty"`
	BookTitle      string    `json:"bookTitle"`
	Author         string    `json:"author,omitempty"`
	ChapterNumber  int       `json:"chapterNumber,omitempty"`
	ChapterName    string    `json:"chapterName,omitempty"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	QuestionType   string    `json:"questionType,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	OwnerID        string    `json:"ownerId"`
}

// NoteFilter narrows note listings. Zero values mean no constraint.
type NoteFilter struct {
	BookID        string
	ChapterNumber int
	Query         string
	Limit         int
}

// NoteUpdate carries the editable fields of a note. Nil pointers leave
// the stored value untouched.
type NoteUpdate struct {
	Question      *string   `json:"question,omitempty"`
	Answer        *string   `json:"answer,omitempty"`
	ChapterNumber *int      `json:"chapterNumber,omitempty"`
	ChapterName   *string   `json:"chapterName,omitempty"`
	Topic         *string   `json:"topic,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
}

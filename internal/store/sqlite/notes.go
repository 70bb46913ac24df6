package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/store"
)

// noteColumns is the ordered list of columns selected in note queries.
// Must match the scan order in scanNote.
const noteColumns = `id, conversation_id, turn_index, book_id, book_title, author,
	chapter_number, chapter_name, question, answer, question_type, topic, tags,
	created_at, owner_id`

// scanNote scans a sql.Row (or sql.Rows via its Scan method) into a domain.Note.
func scanNote(scanner interface{ Scan(dest ...any) error }) (*domain.Note, error) {
	var n domain.Note

	var (
		conversationID sql.NullString
		bookID         sql.NullString
		author         sql.NullString
		chapterNumber  sql.NullInt64
		chapterName    sql.NullString
		questionType   sql.NullString
		topic          sql.NullString
		tags           sql.NullString
		createdAt      string
	)

	err := scanner.Scan(
		&n.ID,
		&conversationID,
		&n.TurnIndex,
		&bookID,
		&n.BookTitle,
		&author,
		&chapterNumber,
		&chapterName,
		&n.Question,
		&n.Answer,
		&questionType,
		&topic,
		&tags,
		&createdAt,
		&n.OwnerID,
	)
	if err != nil {
		return nil, err
	}

	n.ConversationID = conversationID.String
	n.BookID = bookID.String
	n.Author = author.String
	n.ChapterNumber = int(chapterNumber.Int64)
	n.ChapterName = chapterName.String
	n.QuestionType = questionType.String
	n.Topic = topic.String
	n.Tags = parseTags(tags.String)

	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

// SaveNote persists a captured note. Saves are idempotent two ways:
// re-saving the same ID refreshes the row, and a different ID that lands
// on an already-captured (conversation, turn) pair is silently dropped.
// The second case is what makes webhook retries safe.
func (s *Store) SaveNote(ctx context.Context, n *domain.Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, conversation_id, turn_index, book_id, book_title, author,
			chapter_number, chapter_name, question, answer, question_type, topic, tags,
			created_at, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			question_type = excluded.question_type,
			topic = excluded.topic,
			tags = excluded.tags`,
		n.ID,
		nullString(n.ConversationID),
		n.TurnIndex,
		nullString(n.BookID),
		n.BookTitle,
		nullString(n.Author),
		nullInt64(int64(n.ChapterNumber)),
		nullString(n.ChapterName),
		n.Question,
		n.Answer,
		nullString(n.QuestionType),
		nullString(n.Topic),
		nullString(joinTags(n.Tags)),
		formatTime(n.CreatedAt),
		n.OwnerID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if s.logger != nil {
				s.logger.Debug("duplicate turn capture ignored",
					"conversation_id", n.ConversationID, "turn_index", n.TurnIndex)
			}
			return nil
		}
		return err
	}
	return nil
}

// GetNote retrieves a note by ID, scoped to the owner.
// Returns store.ErrNotFound if the note does not exist.
func (s *Store) GetNote(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND owner_id = ?`, noteID, ownerID)

	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotes returns the owner's notes newest first, narrowed by the filter.
// The Query field does a substring match over question, answer, book
// title, author, tags, and topic.
func (s *Store) ListNotes(ctx context.Context, ownerID string, filter domain.NoteFilter) ([]*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = ?`
	args := []any{ownerID}

	if filter.BookID != "" {
		query += ` AND book_id = ?`
		args = append(args, filter.BookID)
	}
	if filter.ChapterNumber > 0 {
		query += ` AND chapter_number = ?`
		args = append(args, filter.ChapterNumber)
	}
	if filter.Query != "" {
		query += ` AND (question LIKE ? OR answer LIKE ? OR book_title LIKE ?
			OR author LIKE ? OR tags LIKE ? OR topic LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like, like, like, like, like)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

// UpdateNote applies the non-nil fields of the update to a note.
// Returns store.ErrNotFound if the note does not exist for the owner,
// and the updated note otherwise.
func (s *Store) UpdateNote(ctx context.Context, ownerID, noteID string, update domain.NoteUpdate) (*domain.Note, error) {
	var sets []string
	var args []any

	if update.Question != nil {
		sets = append(sets, "question = ?")
		args = append(args, *update.Question)
	}
	if update.Answer != nil {
		sets = append(sets, "answer = ?")
		args = append(args, *update.Answer)
	}
	if update.ChapterNumber != nil {
		sets = append(sets, "chapter_number = ?")
		args = append(args, nullInt64(int64(*update.ChapterNumber)))
	}
	if update.ChapterName != nil {
		sets = append(sets, "chapter_name = ?")
		args = append(args, nullString(*update.ChapterName))
	}
	if update.Topic != nil {
		sets = append(sets, "topic = ?")
		args = append(args, nullString(*update.Topic))
	}
	if update.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, nullString(joinTags(*update.Tags)))
	}

	if len(sets) > 0 {
		query := `UPDATE notes SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND owner_id = ?`
		args = append(args, noteID, ownerID)

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	return s.GetNote(ctx, ownerID, noteID)
}

// DeleteNote removes a note.
// Returns store.ErrNotFound if the note does not exist for the owner.
func (s *Store) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND owner_id = ?`, noteID, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListNoteOwners returns the distinct owners that have notes. Used to
// rebuild the search index at startup.
func (s *Store) ListNoteOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM notes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return owners, nil
}

// joinTags serializes tags as a comma-separated string.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// parseTags splits a comma-separated tag string, dropping empties.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

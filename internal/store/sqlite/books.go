package sqlite

import (
	"context"
	"database/sql"

	"github.com/readingcompanion/companion-server/internal/domain"
	"github.com/readingcompanion/companion-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, cover_url, owner_id, is_current, created_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		author    sql.NullString
		coverURL  sql.NullString
		isCurrent int
		createdAt string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&author,
		&coverURL,
		&b.OwnerID,
		&isCurrent,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	b.Author = author.String
	b.CoverURL = coverURL.String
	b.IsCurrent = isCurrent != 0

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// UpsertBook inserts a book or refreshes its metadata if it already exists.
// The is_current flag and creation time of an existing row are preserved,
// so re-adding a book never steals or drops the current selection.
func (s *Store) UpsertBook(ctx context.Context, b *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, cover_url, owner_id, is_current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			cover_url = excluded.cover_url`,
		b.ID,
		b.Title,
		nullString(b.Author),
		nullString(b.CoverURL),
		b.OwnerID,
		boolToInt(b.IsCurrent),
		formatTime(b.CreatedAt),
	)
	return err
}

// GetBook retrieves a book by ID, scoped to the owner.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND owner_id = ?`, bookID, ownerID)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns the owner's books, current book first, then newest first.
func (s *Store) ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id = ?
		ORDER BY is_current DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// GetCurrentBook returns the owner's current book.
// Returns store.ErrNotFound when no book is selected.
func (s *Store) GetCurrentBook(ctx context.Context, ownerID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE owner_id = ? AND is_current = 1`, ownerID)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SetCurrentBook marks the given book as current and clears the flag on
// every other book the owner has. Runs in a transaction so at most one
// book is ever current.
// Returns store.ErrNotFound if the book does not exist for the owner.
func (s *Store) SetCurrentBook(ctx context.Context, ownerID, bookID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET is_current = 0 WHERE owner_id = ?`, ownerID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET is_current = 1 WHERE id = ? AND owner_id = ?`, bookID, ownerID)
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

	return tx.Commit()
}

// DeleteBook removes a book. Notes referencing it keep their denormalized
// title and author.
// Returns store.ErrNotFound if the book does not exist for the owner.
func (s *Store) DeleteBook(ctx context.Context, ownerID, bookID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = ? AND owner_id = ?`, bookID, ownerID)
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"database/sql"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/models"
)

const weeklyBookColumns = "id, week_id, komga_book_id, komga_series_id, series_name, book_number, book_title, read, tracked_series_id, mylar_issue_id, release_date, created_at"

// GetWeekBooks retrieves all books for a week, ordered by series name then
// book number. The ordering is lexicographic, matching the display order on
// the dashboard.
func (s *Store) GetWeekBooks(weekID string) ([]*models.WeeklyBook, error) {
	rows, err := s.db.Query(
		"SELECT "+weeklyBookColumns+" FROM weekly_books WHERE week_id = ? ORDER BY series_name ASC, book_number ASC", weekID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.WeeklyBook
	for rows.Next() {
		b, err := scanWeeklyBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// WeeklyBookExists reports whether a book is already recorded for a week.
func (s *Store) WeeklyBookExists(weekID, komgaBookID string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM weekly_books WHERE week_id = ? AND komga_book_id = ?", weekID, komgaBookID).Scan(&count)
	return count > 0, err
}

// InsertWeeklyBook records a book for a week and returns it with its id.
func (s *Store) InsertWeeklyBook(b *models.WeeklyBook) (*models.WeeklyBook, error) {
	b.CreatedAt = time.Now()
	res, err := s.db.Exec(`
		INSERT INTO weekly_books (week_id, komga_book_id, komga_series_id, series_name, book_number, book_title, read, tracked_series_id, mylar_issue_id, release_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.WeekID, b.KomgaBookID, b.KomgaSeriesID, b.SeriesName, b.BookNumber, b.BookTitle, b.Read, b.TrackedSeriesID, b.MylarIssueID, b.ReleaseDate, b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ID, _ = res.LastInsertId()
	return b, nil
}

// DeleteTrackedWeekBooks removes the tracked books for a week ahead of a
// regeneration. One-off books (tracked_series_id IS NULL) are preserved.
func (s *Store) DeleteTrackedWeekBooks(weekID string) error {
	_, err := s.db.Exec("DELETE FROM weekly_books WHERE week_id = ? AND tracked_series_id IS NOT NULL", weekID)
	return err
}

// ClearWeekBooks removes every book for a week, one-offs included, and
// returns how many rows were deleted.
func (s *Store) ClearWeekBooks(weekID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM weekly_books WHERE week_id = ?", weekID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetAvailableWeeks lists the distinct weeks with at least one book,
// newest first.
func (s *Store) GetAvailableWeeks() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT week_id FROM weekly_books ORDER BY week_id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weeks []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// HasBooksForWeek reports whether any books exist for the week.
func (s *Store) HasBooksForWeek(weekID string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM weekly_books WHERE week_id = ?", weekID).Scan(&count)
	return count > 0, err
}

// GetOneOffBook finds a one-off entry for a week by its library book id.
// Returns (nil, nil) when the book is absent or belongs to a tracked series.
func (s *Store) GetOneOffBook(weekID, komgaBookID string) (*models.WeeklyBook, error) {
	row := s.db.QueryRow(
		"SELECT "+weeklyBookColumns+" FROM weekly_books WHERE week_id = ? AND komga_book_id = ? AND tracked_series_id IS NULL",
		weekID, komgaBookID)
	b, err := scanWeeklyBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// LinkBookToSeries attaches a weekly book to a tracked series, converting a
// one-off into a tracked entry.
func (s *Store) LinkBookToSeries(bookID, trackedSeriesID int64) error {
	_, err := s.db.Exec("UPDATE weekly_books SET tracked_series_id = ? WHERE id = ?", trackedSeriesID, bookID)
	return err
}

func scanWeeklyBook(row rowScanner) (*models.WeeklyBook, error) {
	var b models.WeeklyBook
	var bookTitle, mylarIssueID, releaseDate sql.NullString
	var trackedSeriesID sql.NullInt64
	err := row.Scan(&b.ID, &b.WeekID, &b.KomgaBookID, &b.KomgaSeriesID, &b.SeriesName, &b.BookNumber,
		&bookTitle, &b.Read, &trackedSeriesID, &mylarIssueID, &releaseDate, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if bookTitle.Valid {
		b.BookTitle = &bookTitle.String
	}
	if trackedSeriesID.Valid {
		b.TrackedSeriesID = &trackedSeriesID.Int64
	}
	if mylarIssueID.Valid {
		b.MylarIssueID = &mylarIssueID.String
	}
	if releaseDate.Valid {
		b.ReleaseDate = &releaseDate.String
	}
	return &b, nil
}

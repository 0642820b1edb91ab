package store

import (
	"database/sql"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/models"
)

const runColumns = "id, run_type, status, books_found, readlist_created, readlist_id, readlist_name, error_message, started_at, completed_at"

// CreateRun inserts a new run record in the running state and returns its id.
func (s *Store) CreateRun(runType string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO pull_list_runs (run_type, status, books_found, readlist_created, started_at) VALUES (?, ?, 0, 0, ?)",
		runType, models.RunStatusRunning, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinalizeRun records the outcome of a run. errMsg accompanies failed runs
// and also successful runs where readlist maintenance failed.
func (s *Store) FinalizeRun(id int64, status string, booksFound int, readlistID, readlistName *string, errMsg *string) error {
	readlistCreated := readlistID != nil
	_, err := s.db.Exec(`
		UPDATE pull_list_runs
		SET status = ?, books_found = ?, readlist_created = ?, readlist_id = ?, readlist_name = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		status, booksFound, readlistCreated, readlistID, readlistName, errMsg, time.Now(), id)
	return err
}

// GetRecentRuns retrieves the most recent runs, newest first.
func (s *Store) GetRecentRuns(limit int) ([]*models.PullListRun, error) {
	rows, err := s.db.Query("SELECT "+runColumns+" FROM pull_list_runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.PullListRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetReadlistRunForWeek finds the latest successful run that created a
// readlist for the given week. Readlist names embed the week id, so the
// lookup matches on the name. Returns (nil, nil) when no such run exists.
func (s *Store) GetReadlistRunForWeek(weekID string) (*models.PullListRun, error) {
	row := s.db.QueryRow(
		"SELECT "+runColumns+" FROM pull_list_runs WHERE status = ? AND readlist_created = 1 AND readlist_name LIKE ? ORDER BY started_at DESC, id DESC LIMIT 1",
		models.RunStatusSuccess, "%"+weekID+"%")
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NotificationSentForWeek reports whether a pull-ready notification already
// went out for the week.
func (s *Store) NotificationSentForWeek(weekID string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM notification_log WHERE week_id = ?", weekID).Scan(&count)
	return count > 0, err
}

// RecordNotificationSent marks a week as notified.
func (s *Store) RecordNotificationSent(weekID string, itemsCount int) error {
	_, err := s.db.Exec("INSERT INTO notification_log (week_id, items_count, sent_at) VALUES (?, ?, ?)",
		weekID, itemsCount, time.Now())
	return err
}

func scanRun(row rowScanner) (*models.PullListRun, error) {
	var r models.PullListRun
	var readlistID, readlistName, errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.RunType, &r.Status, &r.BooksFound, &r.ReadlistCreated,
		&readlistID, &readlistName, &errMsg, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if readlistID.Valid {
		r.ReadlistID = &readlistID.String
	}
	if readlistName.Valid {
		r.ReadlistName = &readlistName.String
	}
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

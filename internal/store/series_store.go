package store

import (
	"database/sql"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/models"
)

// GetTrackedSeries retrieves tracked series ordered by name. When activeOnly
// is true, series that have been deactivated are excluded.
func (s *Store) GetTrackedSeries(activeOnly bool) ([]*models.TrackedSeries, error) {
	query := "SELECT id, name, publisher, komga_series_id, mylar_comic_id, active, created_at, updated_at FROM tracked_series"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []*models.TrackedSeries
	for rows.Next() {
		ts, err := scanTrackedSeries(rows)
		if err != nil {
			return nil, err
		}
		series = append(series, ts)
	}
	return series, rows.Err()
}

// GetTrackedSeriesByID retrieves a single tracked series by its primary key.
func (s *Store) GetTrackedSeriesByID(id int64) (*models.TrackedSeries, error) {
	row := s.db.QueryRow("SELECT id, name, publisher, komga_series_id, mylar_comic_id, active, created_at, updated_at FROM tracked_series WHERE id = ?", id)
	return scanTrackedSeries(row)
}

// GetTrackedSeriesByKomgaID looks up a tracked series by its library series id.
// Returns (nil, nil) when no series is tracked under that id.
func (s *Store) GetTrackedSeriesByKomgaID(komgaSeriesID string) (*models.TrackedSeries, error) {
	row := s.db.QueryRow("SELECT id, name, publisher, komga_series_id, mylar_comic_id, active, created_at, updated_at FROM tracked_series WHERE komga_series_id = ?", komgaSeriesID)
	ts, err := scanTrackedSeries(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// AddTrackedSeries inserts a new tracked series and returns it with its
// assigned id.
func (s *Store) AddTrackedSeries(name string, publisher *string, komgaSeriesID string, mylarComicID *string) (*models.TrackedSeries, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO tracked_series (name, publisher, komga_series_id, mylar_comic_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		name, publisher, komgaSeriesID, mylarComicID, now, now)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &models.TrackedSeries{
		ID:            id,
		Name:          name,
		Publisher:     publisher,
		KomgaSeriesID: komgaSeriesID,
		MylarComicID:  mylarComicID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RemoveTrackedSeries deletes a tracked series. Weekly books that referenced
// it keep their rows; the foreign key sets tracked_series_id to NULL, so past
// weeks still display the books.
func (s *Store) RemoveTrackedSeries(id int64) error {
	_, err := s.db.Exec("DELETE FROM tracked_series WHERE id = ?", id)
	return err
}

// ToggleTrackedSeries flips the active flag and returns the new value.
func (s *Store) ToggleTrackedSeries(id int64) (bool, error) {
	_, err := s.db.Exec("UPDATE tracked_series SET active = NOT active, updated_at = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return false, err
	}
	var active bool
	err = s.db.QueryRow("SELECT active FROM tracked_series WHERE id = ?", id).Scan(&active)
	return active, err
}

// UpdateTrackedSeriesMylarID associates a tracker comic id with an existing
// tracked series.
func (s *Store) UpdateTrackedSeriesMylarID(id int64, mylarComicID *string) error {
	_, err := s.db.Exec("UPDATE tracked_series SET mylar_comic_id = ?, updated_at = ? WHERE id = ?", mylarComicID, time.Now(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrackedSeries(row rowScanner) (*models.TrackedSeries, error) {
	var ts models.TrackedSeries
	var publisher, mylarComicID sql.NullString
	err := row.Scan(&ts.ID, &ts.Name, &publisher, &ts.KomgaSeriesID, &mylarComicID, &ts.Active, &ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if publisher.Valid {
		ts.Publisher = &publisher.String
	}
	if mylarComicID.Valid {
		ts.MylarComicID = &mylarComicID.String
	}
	return &ts, nil
}

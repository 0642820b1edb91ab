// This file defines the core data structures (models) for the application.
// These structs represent tracked series, weekly pull-list books, and the
// audit records of generation runs.

package models

import (
	"encoding/json"
	"time"
)

// Run types and statuses for PullListRun records.
const (
	RunTypeManual    = "manual"
	RunTypeScheduled = "scheduled"

	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// TrackedSeries is a comic series the user actively follows. It is the source
// of recurring pull-list entries.
type TrackedSeries struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Publisher     *string   `json:"publisher,omitempty"`
	KomgaSeriesID string    `json:"komga_series_id"`
	MylarComicID  *string   `json:"mylar_comic_id,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WeeklyBook is one issue placed into a specific comic week's pull list.
// TrackedSeriesID is nil for one-off books added by hand; the one-off flag is
// always derived from it and never stored on its own.
type WeeklyBook struct {
	ID              int64     `json:"id"`
	WeekID          string    `json:"week_id"`
	KomgaBookID     string    `json:"komga_book_id"`
	KomgaSeriesID   string    `json:"komga_series_id"`
	SeriesName      string    `json:"series_name"`
	BookNumber      string    `json:"book_number"`
	BookTitle       *string   `json:"book_title,omitempty"`
	Read            bool      `json:"read"`
	TrackedSeriesID *int64    `json:"tracked_series_id,omitempty"`
	MylarIssueID    *string   `json:"mylar_issue_id,omitempty"`
	ReleaseDate     *string   `json:"release_date,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsOneOff reports whether the book was added by hand rather than generated
// from a tracked series.
func (b *WeeklyBook) IsOneOff() bool {
	return b.TrackedSeriesID == nil
}

// MarshalJSON emits the derived one_off flag alongside the stored fields so
// clients never see the flag and the series link disagree.
func (b WeeklyBook) MarshalJSON() ([]byte, error) {
	type alias WeeklyBook
	return json.Marshal(struct {
		alias
		OneOff bool `json:"one_off"`
	}{alias(b), b.TrackedSeriesID == nil})
}

// PullListRun is an append-only audit record of one generation run.
type PullListRun struct {
	ID              int64      `json:"id"`
	RunType         string     `json:"run_type"`
	Status          string     `json:"status"`
	BooksFound      int        `json:"books_found"`
	ReadlistCreated bool       `json:"readlist_created"`
	ReadlistID      *string    `json:"readlist_id,omitempty"`
	ReadlistName    *string    `json:"readlist_name,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NotificationLog records that a pull-ready notification went out for a week,
// so repeated scheduled runs within the same week notify at most once.
type NotificationLog struct {
	ID         int64     `json:"id"`
	WeekID     string    `json:"week_id"`
	ItemsCount int       `json:"items_count"`
	SentAt     time.Time `json:"sent_at"`
}

// PullListItem is one line of a generation result. It is transient: items
// materialize into WeeklyBook rows but are never persisted directly.
type PullListItem struct {
	SeriesName     string  `json:"series_name"`
	KomgaSeriesID  string  `json:"komga_series_id"`
	MylarComicID   *string `json:"mylar_comic_id,omitempty"`
	KomgaBookID    *string `json:"komga_book_id,omitempty"` // nil means upcoming, not yet downloaded
	BookNumber     string  `json:"book_number"`
	BookTitle      *string `json:"book_title,omitempty"`
	Downloaded     bool    `json:"downloaded"`
	OneOff         bool    `json:"one_off"`
	Read           bool    `json:"read"`
	ReadPercentage int     `json:"read_percentage"`
	ReleaseDate    *string `json:"release_date,omitempty"`
	ThumbnailURL   string  `json:"thumbnail_url,omitempty"`
	ReadURL        string  `json:"read_url,omitempty"`
	MylarIssueID   *string `json:"mylar_issue_id,omitempty"`
}

// PullListResult is the outcome of one generation run.
type PullListResult struct {
	Success      bool            `json:"success"`
	Items        []*PullListItem `json:"items"`
	ReadlistID   *string         `json:"readlist_id,omitempty"`
	ReadlistName *string         `json:"readlist_name,omitempty"`
	WeekID       string          `json:"week_id"`
	Error        string          `json:"error,omitempty"`
}

// Package pulllist implements the weekly pull-list aggregation engine. A
// generation run reconciles the tracked series against the library service,
// augments the result with upcoming issues from the tracker when one is
// reachable, and optionally maintains an external readlist for the week.
package pulllist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/komga"
	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/mylar"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/week"
)

// Validation errors surfaced to API clients as 4xx responses.
var (
	ErrDuplicateBook = errors.New("book already in pull-list")
	ErrNotOneOff     = errors.New("book not found or already tracked")
)

// LibraryClient is the library-service surface the engine depends on. It is
// a hard dependency: its failures fail a run.
type LibraryClient interface {
	GetSeriesByID(ctx context.Context, seriesID string) (*komga.Series, error)
	GetSeriesBooks(ctx context.Context, seriesID string) ([]komga.Book, error)
	GetBookByID(ctx context.Context, bookID string) (*komga.Book, error)
	GetBooksByIDs(ctx context.Context, bookIDs []string) map[string]*komga.Book
	GetLatestBooks(ctx context.Context, size int) ([]komga.Book, error)
	FindReadlistByName(ctx context.Context, name string) (*komga.Readlist, error)
	CreateReadlist(ctx context.Context, name string, bookIDs []string) (*komga.Readlist, error)
	DeleteReadlist(ctx context.Context, readlistID string) error
	ReadURL(bookID string) string
}

// TrackerClient is the tracker-service surface. It is a soft dependency: any
// failure disables tracker augmentation for the run without failing it.
type TrackerClient interface {
	TestConnection(ctx context.Context) bool
	GetUpcoming(ctx context.Context, includeDownloaded bool) ([]mylar.UpcomingIssue, error)
}

// Service executes generation runs and manages the one-off book lifecycle.
type Service struct {
	store   *store.Store
	library LibraryClient
	tracker TrackerClient // nil when no tracker is configured
}

// NewService creates a pull-list service. tracker may be nil.
func NewService(st *store.Store, library LibraryClient, tracker TrackerClient) *Service {
	return &Service{store: st, library: library, tracker: tracker}
}

// ReadlistName derives the deterministic readlist name for a week. The week
// id is embedded so past runs can be matched back to their week.
func ReadlistName(weekID string) string {
	return "Pull List " + weekID
}

// Generate executes one aggregation run. It never returns an error: failures
// are reported through the result's Success and Error fields, and the run
// record is always finalized out of the running state.
func (s *Service) Generate(ctx context.Context, runType string, daysBack int, createReadlist bool) *models.PullListResult {
	weekID := week.IDForDate(time.Now())
	result := &models.PullListResult{WeekID: weekID, Items: []*models.PullListItem{}}

	runID, err := s.store.CreateRun(runType)
	if err != nil {
		result.Error = fmt.Sprintf("failed to record run: %v", err)
		return result
	}

	tracked, err := s.store.GetTrackedSeries(true)
	if err != nil {
		return s.failRun(runID, result, err)
	}
	if len(tracked) == 0 {
		if err := s.store.FinalizeRun(runID, models.RunStatusSuccess, 0, nil, nil, nil); err != nil {
			log.Printf("Error finalizing empty run %d: %v", runID, err)
		}
		result.Success = true
		return result
	}

	// Regenerate tracked content for the week; one-offs stay untouched.
	if err := s.store.DeleteTrackedWeekBooks(weekID); err != nil {
		return s.failRun(runID, result, err)
	}

	cutoff := time.Now().AddDate(0, 0, -daysBack)

	// Readlist candidates are the current week's downloaded books, ordered
	// by series then issue number before creation.
	type candidate struct {
		seriesName string
		bookNumber string
		bookID     string
	}
	var candidates []candidate

	for _, ts := range tracked {
		books, err := s.library.GetSeriesBooks(ctx, ts.KomgaSeriesID)
		if err != nil {
			return s.failRun(runID, result, fmt.Errorf("fetching books for %q: %w", ts.Name, err))
		}
		for i := range books {
			book := &books[i]
			if book.Created.Before(cutoff) {
				continue
			}

			releaseDate := book.Created.Format("2006-01-02")
			bookID := book.ID
			item := &models.PullListItem{
				SeriesName:     ts.Name,
				KomgaSeriesID:  ts.KomgaSeriesID,
				MylarComicID:   ts.MylarComicID,
				KomgaBookID:    &bookID,
				BookNumber:     book.Number,
				BookTitle:      book.Title(),
				Downloaded:     true,
				Read:           book.IsRead(),
				ReadPercentage: book.ReadPercentage(),
				ReleaseDate:    &releaseDate,
				ThumbnailURL:   fmt.Sprintf("/api/books/%s/thumbnail", book.ID),
				ReadURL:        s.library.ReadURL(book.ID),
			}
			result.Items = append(result.Items, item)

			// A book added near a boundary may belong to a different week
			// than the run itself.
			bookWeekID := week.IDForDate(book.Created)
			exists, err := s.store.WeeklyBookExists(bookWeekID, book.ID)
			if err != nil {
				return s.failRun(runID, result, err)
			}
			if !exists {
				_, err = s.store.InsertWeeklyBook(&models.WeeklyBook{
					WeekID:          bookWeekID,
					KomgaBookID:     book.ID,
					KomgaSeriesID:   ts.KomgaSeriesID,
					SeriesName:      ts.Name,
					BookNumber:      book.Number,
					BookTitle:       book.Title(),
					Read:            book.IsRead(),
					TrackedSeriesID: &ts.ID,
					ReleaseDate:     &releaseDate,
				})
				if err != nil {
					return s.failRun(runID, result, err)
				}
			}
			if bookWeekID == weekID {
				candidates = append(candidates, candidate{ts.Name, book.Number, book.ID})
			}
		}
	}

	s.augmentWithUpcoming(ctx, tracked, result)

	var runErrMsg *string
	if createReadlist && len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].seriesName != candidates[j].seriesName {
				return candidates[i].seriesName < candidates[j].seriesName
			}
			return candidates[i].bookNumber < candidates[j].bookNumber
		})
		bookIDs := make([]string, len(candidates))
		for i, c := range candidates {
			bookIDs[i] = c.bookID
		}
		if err := s.replaceReadlist(ctx, weekID, bookIDs, result); err != nil {
			// Books are recorded; a stale or missing readlist is a partial
			// success, not a run failure.
			msg := err.Error()
			runErrMsg = &msg
			log.Printf("Readlist maintenance failed for %s: %v", weekID, err)
		}
	}

	// Lexicographic on issue number, matching the stored display order.
	sort.Slice(result.Items, func(i, j int) bool {
		if result.Items[i].SeriesName != result.Items[j].SeriesName {
			return result.Items[i].SeriesName < result.Items[j].SeriesName
		}
		return result.Items[i].BookNumber < result.Items[j].BookNumber
	})

	if err := s.store.FinalizeRun(runID, models.RunStatusSuccess, len(result.Items), result.ReadlistID, result.ReadlistName, runErrMsg); err != nil {
		log.Printf("Error finalizing run %d: %v", runID, err)
	}
	result.Success = true
	if runErrMsg != nil {
		result.Error = *runErrMsg
	}
	return result
}

// augmentWithUpcoming appends not-yet-downloaded issues from the tracker.
// The tracker is probed first; every failure path downgrades to a skipped
// augmentation.
func (s *Service) augmentWithUpcoming(ctx context.Context, tracked []*models.TrackedSeries, result *models.PullListResult) {
	if s.tracker == nil {
		return
	}
	if !s.tracker.TestConnection(ctx) {
		log.Println("Tracker unreachable, skipping upcoming issues")
		return
	}
	upcoming, err := s.tracker.GetUpcoming(ctx, false)
	if err != nil {
		log.Printf("Tracker upcoming fetch failed, skipping: %v", err)
		return
	}

	byComicID := make(map[string]*models.TrackedSeries)
	for _, ts := range tracked {
		if ts.MylarComicID != nil {
			byComicID[*ts.MylarComicID] = ts
		}
	}

	for i := range upcoming {
		issue := &upcoming[i]
		ts, ok := byComicID[string(issue.ComicID)]
		if !ok {
			continue
		}
		number := string(issue.IssueNumber)

		// An issue that is both "upcoming" and already downloaded shows up
		// only once, as the downloaded item.
		duplicate := false
		for _, item := range result.Items {
			if item.KomgaSeriesID == ts.KomgaSeriesID && item.BookNumber == number {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		issueID := string(issue.IssueID)
		item := &models.PullListItem{
			SeriesName:    ts.Name,
			KomgaSeriesID: ts.KomgaSeriesID,
			MylarComicID:  ts.MylarComicID,
			BookNumber:    number,
			Downloaded:    false,
			MylarIssueID:  &issueID,
			// No book exists yet, so the cover comes from the series.
			ThumbnailURL: fmt.Sprintf("/api/series/%s/thumbnail", ts.KomgaSeriesID),
		}
		if issue.ReleaseDate != "" {
			rd := issue.ReleaseDate
			item.ReleaseDate = &rd
		}
		result.Items = append(result.Items, item)
	}
}

// replaceReadlist recreates the week's external readlist from scratch. An
// existing readlist with the same name is deleted first, never merged into.
func (s *Service) replaceReadlist(ctx context.Context, weekID string, bookIDs []string, result *models.PullListResult) error {
	name := ReadlistName(weekID)

	existing, err := s.library.FindReadlistByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up readlist %q: %w", name, err)
	}
	if existing != nil {
		if err := s.library.DeleteReadlist(ctx, existing.ID); err != nil {
			return fmt.Errorf("deleting stale readlist %q: %w", name, err)
		}
	}

	rl, err := s.library.CreateReadlist(ctx, name, bookIDs)
	if err != nil {
		return fmt.Errorf("creating readlist %q: %w", name, err)
	}
	result.ReadlistID = &rl.ID
	result.ReadlistName = &rl.Name
	return nil
}

func (s *Service) failRun(runID int64, result *models.PullListResult, cause error) *models.PullListResult {
	msg := cause.Error()
	if err := s.store.FinalizeRun(runID, models.RunStatusFailed, 0, nil, nil, &msg); err != nil {
		log.Printf("Error finalizing failed run %d: %v", runID, err)
	}
	result.Success = false
	result.Items = []*models.PullListItem{}
	result.Error = msg
	return result
}

// AddOneOffBook inserts a hand-picked book into a week. The row carries no
// tracked-series link, which is what makes it a one-off.
func (s *Service) AddOneOffBook(ctx context.Context, weekID, bookID string) (*models.WeeklyBook, error) {
	exists, err := s.store.WeeklyBookExists(weekID, bookID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateBook
	}

	book, err := s.library.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("fetching book: %w", err)
	}
	series, err := s.library.GetSeriesByID(ctx, book.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("fetching series: %w", err)
	}

	seriesName := series.Metadata.Title
	if seriesName == "" {
		seriesName = series.Name
	}
	releaseDate := book.Created.Format("2006-01-02")

	return s.store.InsertWeeklyBook(&models.WeeklyBook{
		WeekID:        weekID,
		KomgaBookID:   book.ID,
		KomgaSeriesID: book.SeriesID,
		SeriesName:    seriesName,
		BookNumber:    book.Number,
		BookTitle:     book.Title(),
		Read:          book.IsRead(),
		ReleaseDate:   &releaseDate,
	})
}

// PromoteOneOffToTracked converts a one-off book's series into a tracked
// series, creating the series if it is not tracked yet, and relinks the
// existing row. This is the only path that sets a weekly book's series link
// after creation.
func (s *Service) PromoteOneOffToTracked(ctx context.Context, weekID, bookID string) (*models.TrackedSeries, error) {
	book, err := s.store.GetOneOffBook(weekID, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrNotOneOff
	}

	ts, err := s.store.GetTrackedSeriesByKomgaID(book.KomgaSeriesID)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		var publisher *string
		if series, err := s.library.GetSeriesByID(ctx, book.KomgaSeriesID); err == nil {
			publisher = series.Publisher()
		}
		ts, err = s.store.AddTrackedSeries(book.SeriesName, publisher, book.KomgaSeriesID, nil)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.LinkBookToSeries(book.ID, ts.ID); err != nil {
		return nil, err
	}
	return ts, nil
}

// WeekItems loads a week's stored books and overlays fresh read progress
// from the library. Lookups fan out per book; a failed lookup leaves that
// book's stored state as-is rather than failing the page.
func (s *Service) WeekItems(ctx context.Context, weekID string) ([]*models.PullListItem, error) {
	books, err := s.store.GetWeekBooks(weekID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.KomgaBookID
	}
	fresh := s.library.GetBooksByIDs(ctx, ids)

	items := make([]*models.PullListItem, 0, len(books))
	for _, b := range books {
		bookID := b.KomgaBookID
		item := &models.PullListItem{
			SeriesName:    b.SeriesName,
			KomgaSeriesID: b.KomgaSeriesID,
			KomgaBookID:   &bookID,
			BookNumber:    b.BookNumber,
			BookTitle:     b.BookTitle,
			Downloaded:    true,
			OneOff:        b.IsOneOff(),
			Read:          b.Read,
			ReleaseDate:   b.ReleaseDate,
			MylarIssueID:  b.MylarIssueID,
			ThumbnailURL:  fmt.Sprintf("/api/books/%s/thumbnail", b.KomgaBookID),
			ReadURL:       s.library.ReadURL(b.KomgaBookID),
		}
		if book, ok := fresh[b.KomgaBookID]; ok {
			item.Read = book.IsRead()
			item.ReadPercentage = book.ReadPercentage()
		}
		items = append(items, item)
	}
	return items, nil
}

// WeekBooks returns the stored rows for a week without touching the library.
func (s *Service) WeekBooks(weekID string) ([]*models.WeeklyBook, error) {
	return s.store.GetWeekBooks(weekID)
}

// AvailableWeeks lists weeks that have at least one book, newest first.
func (s *Service) AvailableWeeks() ([]string, error) {
	return s.store.GetAvailableWeeks()
}

// ClearWeek deletes every book for a week and returns the deleted count.
func (s *Service) ClearWeek(weekID string) (int64, error) {
	return s.store.ClearWeekBooks(weekID)
}

// RecentRuns returns run history, most recent first.
func (s *Service) RecentRuns(limit int) ([]*models.PullListRun, error) {
	return s.store.GetRecentRuns(limit)
}

// ReadlistForWeek finds the latest successful run that created a readlist
// for the week, or nil when none exists.
func (s *Service) ReadlistForWeek(weekID string) (*models.PullListRun, error) {
	return s.store.GetReadlistRunForWeek(weekID)
}

// browseFetchSize bounds how far back the latest-books scan reaches before
// the week window is applied.
const browseFetchSize = 500

// BooksForBrowsing lists the library's recently added books for the one-off
// picker, windowed to the week: anything created on or after the week's
// start minus daysBack.
func (s *Service) BooksForBrowsing(ctx context.Context, weekID string, daysBack int) ([]komga.Book, error) {
	start, err := week.StartDate(weekID)
	if err != nil {
		return nil, err
	}
	cutoff := start.AddDate(0, 0, -daysBack)

	books, err := s.library.GetLatestBooks(ctx, browseFetchSize)
	if err != nil {
		return nil, err
	}
	filtered := make([]komga.Book, 0, len(books))
	for _, b := range books {
		if !b.Created.Before(cutoff) {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

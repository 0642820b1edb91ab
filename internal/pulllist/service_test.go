package pulllist_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/komga"
	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/mylar"
	"github.com/rhymeswithjazz/pull-list/internal/pulllist"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/testutil"
	"github.com/rhymeswithjazz/pull-list/internal/week"
)

// fakeLibrary is an in-memory stand-in for the library service.
type fakeLibrary struct {
	series    map[string]*komga.Series
	books     map[string][]komga.Book // keyed by series id
	readlists map[string]*komga.Readlist
	nextRLID  int
	failBooks bool
	failRL    bool
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		series:    make(map[string]*komga.Series),
		books:     make(map[string][]komga.Book),
		readlists: make(map[string]*komga.Readlist),
	}
}

func (f *fakeLibrary) addBook(seriesID, bookID, number string, created time.Time) {
	var b komga.Book
	b.ID = bookID
	b.SeriesID = seriesID
	b.Number = number
	b.Created = created
	b.Media.PagesCount = 22
	f.books[seriesID] = append(f.books[seriesID], b)
}

func (f *fakeLibrary) GetSeriesByID(_ context.Context, id string) (*komga.Series, error) {
	s, ok := f.series[id]
	if !ok {
		return nil, fmt.Errorf("series %s not found", id)
	}
	return s, nil
}

func (f *fakeLibrary) GetSeriesBooks(_ context.Context, seriesID string) ([]komga.Book, error) {
	if f.failBooks {
		return nil, errors.New("library unavailable")
	}
	return f.books[seriesID], nil
}

func (f *fakeLibrary) GetBookByID(_ context.Context, bookID string) (*komga.Book, error) {
	for _, books := range f.books {
		for i := range books {
			if books[i].ID == bookID {
				return &books[i], nil
			}
		}
	}
	return nil, fmt.Errorf("book %s not found", bookID)
}

func (f *fakeLibrary) GetBooksByIDs(ctx context.Context, ids []string) map[string]*komga.Book {
	out := make(map[string]*komga.Book)
	for _, id := range ids {
		if b, err := f.GetBookByID(ctx, id); err == nil {
			out[id] = b
		}
	}
	return out
}

func (f *fakeLibrary) GetLatestBooks(_ context.Context, size int) ([]komga.Book, error) {
	var all []komga.Book
	for _, books := range f.books {
		all = append(all, books...)
	}
	if len(all) > size {
		all = all[:size]
	}
	return all, nil
}

func (f *fakeLibrary) FindReadlistByName(_ context.Context, name string) (*komga.Readlist, error) {
	if f.failRL {
		return nil, errors.New("readlist endpoint broken")
	}
	for _, rl := range f.readlists {
		if rl.Name == name {
			return rl, nil
		}
	}
	return nil, nil
}

func (f *fakeLibrary) CreateReadlist(_ context.Context, name string, bookIDs []string) (*komga.Readlist, error) {
	if f.failRL {
		return nil, errors.New("readlist endpoint broken")
	}
	f.nextRLID++
	rl := &komga.Readlist{ID: fmt.Sprintf("rl-%d", f.nextRLID), Name: name, BookIDs: bookIDs}
	f.readlists[rl.ID] = rl
	return rl, nil
}

func (f *fakeLibrary) DeleteReadlist(_ context.Context, id string) error {
	delete(f.readlists, id)
	return nil
}

func (f *fakeLibrary) ReadURL(bookID string) string {
	return "http://komga.test/book/" + bookID + "/read"
}

// fakeTracker is an in-memory stand-in for the tracker service.
type fakeTracker struct {
	reachable bool
	upcoming  []mylar.UpcomingIssue
	failList  bool
}

func (f *fakeTracker) TestConnection(context.Context) bool { return f.reachable }

func (f *fakeTracker) GetUpcoming(context.Context, bool) ([]mylar.UpcomingIssue, error) {
	if f.failList {
		return nil, errors.New("tracker exploded")
	}
	return f.upcoming, nil
}

func setupService(t *testing.T) (*pulllist.Service, *store.Store, *fakeLibrary, *fakeTracker) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	lib := newFakeLibrary()
	tracker := &fakeTracker{reachable: true}
	return pulllist.NewService(st, lib, tracker), st, lib, tracker
}

func mustTrack(t *testing.T, st *store.Store, name, komgaID string, mylarID *string) *models.TrackedSeries {
	t.Helper()
	ts, err := st.AddTrackedSeries(name, nil, komgaID, mylarID)
	if err != nil {
		t.Fatalf("AddTrackedSeries failed: %v", err)
	}
	return ts
}

func strPtr(s string) *string { return &s }

// recentInWeek returns a timestamp just inside the current comic week.
// "Yesterday" would fall in the previous week on a Wednesday, so seeded books
// anchor to the week start instead of to time.Now.
func recentInWeek() time.Time {
	return week.CurrentStart().Add(time.Hour)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("Zero Tracked Series Succeeds", func(t *testing.T) {
		svc, st, _, _ := setupService(t)
		result := svc.Generate(ctx, models.RunTypeManual, 7, true)
		if !result.Success {
			t.Fatalf("Expected success, got error %q", result.Error)
		}
		if len(result.Items) != 0 || result.ReadlistID != nil {
			t.Errorf("Expected empty result, got %+v", result)
		}
		runs, _ := st.GetRecentRuns(1)
		if runs[0].Status != models.RunStatusSuccess {
			t.Errorf("Expected success run, got %s", runs[0].Status)
		}
	})

	t.Run("Collects Recent Books And Creates Readlist", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		lib.addBook("ks-1", "book-1", "72", recentInWeek())
		lib.addBook("ks-1", "book-old", "50", time.Now().AddDate(0, 0, -30))

		result := svc.Generate(ctx, models.RunTypeManual, 7, true)
		if !result.Success {
			t.Fatalf("Generate failed: %s", result.Error)
		}
		if len(result.Items) != 1 || *result.Items[0].KomgaBookID != "book-1" {
			t.Fatalf("Expected only the recent book, got %+v", result.Items)
		}
		if result.ReadlistID == nil {
			t.Fatal("Expected a readlist to be created")
		}
		wantName := pulllist.ReadlistName(result.WeekID)
		if *result.ReadlistName != wantName {
			t.Errorf("Expected readlist name %q, got %q", wantName, *result.ReadlistName)
		}

		books, _ := st.GetWeekBooks(week.IDForDate(time.Now()))
		if len(books) != 1 || books[0].IsOneOff() {
			t.Errorf("Expected one tracked weekly book, got %+v", books)
		}
	})

	t.Run("Idempotent Across Repeat Runs", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		lib.addBook("ks-1", "book-1", "72", recentInWeek())

		first := svc.Generate(ctx, models.RunTypeManual, 7, true)
		second := svc.Generate(ctx, models.RunTypeManual, 7, true)
		if len(first.Items) != len(second.Items) {
			t.Errorf("Item counts differ across runs: %d vs %d", len(first.Items), len(second.Items))
		}

		books, _ := st.GetWeekBooks(week.IDForDate(time.Now()))
		if len(books) != 1 {
			t.Errorf("Expected 1 weekly book after two runs, got %d", len(books))
		}
		// Replace, not accumulate.
		if len(lib.readlists) != 1 {
			t.Errorf("Expected exactly 1 readlist after two runs, got %d", len(lib.readlists))
		}
	})

	t.Run("One-Offs Survive Regeneration", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		lib.addBook("ks-1", "book-1", "72", recentInWeek())

		lib.series["ks-2"] = &komga.Series{ID: "ks-2", Name: "Batman"}
		lib.addBook("ks-2", "oneoff-1", "155", recentInWeek())
		weekID := week.IDForDate(time.Now())
		if _, err := svc.AddOneOffBook(ctx, weekID, "oneoff-1"); err != nil {
			t.Fatalf("AddOneOffBook failed: %v", err)
		}

		svc.Generate(ctx, models.RunTypeManual, 7, false)
		svc.Generate(ctx, models.RunTypeManual, 7, false)

		books, _ := st.GetWeekBooks(weekID)
		var oneOffs int
		for _, b := range books {
			if b.IsOneOff() {
				oneOffs++
			}
		}
		if oneOffs != 1 {
			t.Errorf("Expected the one-off to survive both runs, got %d one-offs in %d books", oneOffs, len(books))
		}
	})

	t.Run("Library Failure Fails Run", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		lib.failBooks = true

		result := svc.Generate(ctx, models.RunTypeManual, 7, true)
		if result.Success {
			t.Fatal("Expected run to fail when library is down")
		}
		if result.Error == "" || len(result.Items) != 0 {
			t.Errorf("Expected error and no items, got %+v", result)
		}
		runs, _ := st.GetRecentRuns(1)
		if runs[0].Status != models.RunStatusFailed {
			t.Errorf("Expected failed run status, got %s", runs[0].Status)
		}
		if runs[0].CompletedAt == nil {
			t.Error("Failed run must not be left in running state")
		}
	})

	t.Run("Tracker Failure Is Soft", func(t *testing.T) {
		svc, st, lib, tracker := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", strPtr("101"))
		lib.addBook("ks-1", "book-1", "72", recentInWeek())
		tracker.reachable = true
		tracker.failList = true

		result := svc.Generate(ctx, models.RunTypeManual, 7, false)
		if !result.Success {
			t.Fatalf("Expected success despite tracker failure, got %q", result.Error)
		}
		if len(result.Items) != 1 {
			t.Errorf("Expected library items to survive, got %d", len(result.Items))
		}
	})

	t.Run("Upcoming Issues Augment Result", func(t *testing.T) {
		svc, st, lib, tracker := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", strPtr("101"))
		lib.addBook("ks-1", "book-1", "72", recentInWeek())
		tracker.upcoming = []mylar.UpcomingIssue{
			{IssueID: "i-73", ComicID: "101", IssueNumber: "73", ReleaseDate: "2026-09-02"},
			{IssueID: "i-72", ComicID: "101", IssueNumber: "72"}, // already downloaded
			{IssueID: "i-99", ComicID: "999", IssueNumber: "1"},  // untracked comic
		}

		result := svc.Generate(ctx, models.RunTypeManual, 7, false)
		if !result.Success {
			t.Fatalf("Generate failed: %s", result.Error)
		}
		if len(result.Items) != 2 {
			t.Fatalf("Expected downloaded + one upcoming, got %d items", len(result.Items))
		}
		var upcoming *models.PullListItem
		for _, item := range result.Items {
			if !item.Downloaded {
				upcoming = item
			}
		}
		if upcoming == nil || upcoming.KomgaBookID != nil || *upcoming.MylarIssueID != "i-73" {
			t.Errorf("Unexpected upcoming item: %+v", upcoming)
		}
		if upcoming.ThumbnailURL != "/api/series/ks-1/thumbnail" {
			t.Errorf("Expected series thumbnail for upcoming item, got %q", upcoming.ThumbnailURL)
		}
	})

	t.Run("Readlist Failure Is Partial Success", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		lib.addBook("ks-1", "book-1", "72", recentInWeek())
		lib.failRL = true

		result := svc.Generate(ctx, models.RunTypeManual, 7, true)
		if !result.Success {
			t.Fatal("Readlist failure must not fail the run")
		}
		if result.ReadlistID != nil {
			t.Error("Expected no readlist id on failure")
		}
		if result.Error == "" {
			t.Error("Expected the readlist error to be captured")
		}
		runs, _ := st.GetRecentRuns(1)
		if runs[0].ReadlistCreated {
			t.Error("Run should record readlist_created=false")
		}
	})

	t.Run("Items Sorted By Series Then Issue String", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		mustTrack(t, st, "Saga", "ks-1", nil)
		mustTrack(t, st, "Batman", "ks-2", nil)
		lib.addBook("ks-1", "b-1", "9", time.Now())
		lib.addBook("ks-2", "b-2", "10", time.Now())
		lib.addBook("ks-2", "b-3", "9", time.Now())

		result := svc.Generate(ctx, models.RunTypeManual, 7, false)
		if len(result.Items) != 3 {
			t.Fatalf("Expected 3 items, got %d", len(result.Items))
		}
		// String comparison puts "10" before "9".
		if result.Items[0].SeriesName != "Batman" || result.Items[0].BookNumber != "10" ||
			result.Items[1].BookNumber != "9" || result.Items[2].SeriesName != "Saga" {
			t.Errorf("Unexpected order: %v %v %v",
				result.Items[0].BookNumber, result.Items[1].BookNumber, result.Items[2].BookNumber)
		}
	})
}

func TestBooksForBrowsing(t *testing.T) {
	ctx := context.Background()
	svc, _, lib, _ := setupService(t)
	lib.addBook("ks-1", "fresh", "1", recentInWeek())
	lib.addBook("ks-1", "carryover", "2", week.CurrentStart().AddDate(0, 0, -2))
	lib.addBook("ks-1", "stale", "3", week.CurrentStart().AddDate(0, 0, -10))

	books, err := svc.BooksForBrowsing(ctx, week.CurrentID(), 7)
	if err != nil {
		t.Fatalf("BooksForBrowsing failed: %v", err)
	}
	// The window is anchored to the week start, not to the current time.
	got := make(map[string]bool, len(books))
	for _, b := range books {
		got[b.ID] = true
	}
	if len(books) != 2 || !got["fresh"] || !got["carryover"] {
		t.Errorf("Expected fresh and carryover books, got %v", got)
	}

	if _, err := svc.BooksForBrowsing(ctx, "not-a-week", 7); err == nil {
		t.Error("Expected error for malformed week id")
	}
}

func TestOneOffLifecycle(t *testing.T) {
	ctx := context.Background()
	weekID := week.IDForDate(time.Now())

	t.Run("Add And Duplicate", func(t *testing.T) {
		svc, _, lib, _ := setupService(t)
		lib.series["ks-2"] = &komga.Series{ID: "ks-2", Name: "Batman"}
		lib.addBook("ks-2", "book-2", "155", time.Now())

		b, err := svc.AddOneOffBook(ctx, weekID, "book-2")
		if err != nil {
			t.Fatalf("AddOneOffBook failed: %v", err)
		}
		if !b.IsOneOff() {
			t.Error("Expected added book to be a one-off")
		}

		if _, err := svc.AddOneOffBook(ctx, weekID, "book-2"); !errors.Is(err, pulllist.ErrDuplicateBook) {
			t.Errorf("Expected ErrDuplicateBook, got %v", err)
		}
	})

	t.Run("Promote Creates And Links Series", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		lib.series["ks-2"] = &komga.Series{ID: "ks-2", Name: "Batman"}
		lib.series["ks-2"].Metadata.Publisher = "DC"
		lib.addBook("ks-2", "book-2", "155", time.Now())

		if _, err := svc.AddOneOffBook(ctx, weekID, "book-2"); err != nil {
			t.Fatalf("AddOneOffBook failed: %v", err)
		}
		ts, err := svc.PromoteOneOffToTracked(ctx, weekID, "book-2")
		if err != nil {
			t.Fatalf("PromoteOneOffToTracked failed: %v", err)
		}
		if ts.KomgaSeriesID != "ks-2" || ts.Publisher == nil || *ts.Publisher != "DC" {
			t.Errorf("Unexpected tracked series: %+v", ts)
		}

		books, _ := st.GetWeekBooks(weekID)
		if len(books) != 1 || books[0].IsOneOff() {
			t.Error("Expected the book to be linked to the new series")
		}

		// Promoting again is a no-op error: the row is tracked now.
		if _, err := svc.PromoteOneOffToTracked(ctx, weekID, "book-2"); !errors.Is(err, pulllist.ErrNotOneOff) {
			t.Errorf("Expected ErrNotOneOff, got %v", err)
		}
	})

	t.Run("Promote Reuses Existing Series", func(t *testing.T) {
		svc, st, lib, _ := setupService(t)
		existing := mustTrack(t, st, "Batman", "ks-2", nil)
		lib.series["ks-2"] = &komga.Series{ID: "ks-2", Name: "Batman"}
		lib.addBook("ks-2", "book-2", "155", time.Now())

		if _, err := svc.AddOneOffBook(ctx, weekID, "book-2"); err != nil {
			t.Fatalf("AddOneOffBook failed: %v", err)
		}
		ts, err := svc.PromoteOneOffToTracked(ctx, weekID, "book-2")
		if err != nil {
			t.Fatalf("PromoteOneOffToTracked failed: %v", err)
		}
		if ts.ID != existing.ID {
			t.Errorf("Expected existing series %d reused, got %d", existing.ID, ts.ID)
		}
	})

	t.Run("Promote Missing Book", func(t *testing.T) {
		svc, _, _, _ := setupService(t)
		if _, err := svc.PromoteOneOffToTracked(ctx, weekID, "nope"); !errors.Is(err, pulllist.ErrNotOneOff) {
			t.Errorf("Expected ErrNotOneOff, got %v", err)
		}
	})
}

package jobs_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rhymeswithjazz/pull-list/internal/config"
	"github.com/rhymeswithjazz/pull-list/internal/jobs"
	"github.com/rhymeswithjazz/pull-list/internal/komga"
	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/notify"
	"github.com/rhymeswithjazz/pull-list/internal/pulllist"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/testutil"
	"github.com/rhymeswithjazz/pull-list/internal/websocket"
)

// stubLibrary returns one recent book per tracked series.
type stubLibrary struct{}

func (stubLibrary) GetSeriesByID(context.Context, string) (*komga.Series, error) { return nil, nil }

func (stubLibrary) GetSeriesBooks(_ context.Context, seriesID string) ([]komga.Book, error) {
	var b komga.Book
	b.ID = "book-" + seriesID
	b.SeriesID = seriesID
	b.Number = "1"
	b.Created = time.Now()
	return []komga.Book{b}, nil
}

func (stubLibrary) GetBookByID(context.Context, string) (*komga.Book, error) { return nil, nil }

func (stubLibrary) GetBooksByIDs(context.Context, []string) map[string]*komga.Book {
	return map[string]*komga.Book{}
}

func (stubLibrary) GetLatestBooks(context.Context, int) ([]komga.Book, error) { return nil, nil }

func (stubLibrary) FindReadlistByName(context.Context, string) (*komga.Readlist, error) {
	return nil, nil
}

func (stubLibrary) CreateReadlist(_ context.Context, name string, ids []string) (*komga.Readlist, error) {
	return &komga.Readlist{ID: "rl-1", Name: name, BookIDs: ids}, nil
}

func (stubLibrary) DeleteReadlist(context.Context, string) error { return nil }
func (stubLibrary) ReadURL(bookID string) string                 { return "/read/" + bookID }

type fakeJobContext struct {
	db       *sql.DB
	cfg      *config.Config
	ws       *websocket.Hub
	jobMgr   *jobs.JobManager
	svc      *pulllist.Service
	notifier *notify.Notifier
}

func (f *fakeJobContext) DB() *sql.DB                  { return f.db }
func (f *fakeJobContext) Config() *config.Config       { return f.cfg }
func (f *fakeJobContext) WsHub() *websocket.Hub        { return f.ws }
func (f *fakeJobContext) JobManager() *jobs.JobManager { return f.jobMgr }
func (f *fakeJobContext) PullList() *pulllist.Service  { return f.svc }
func (f *fakeJobContext) Notifier() *notify.Notifier   { return f.notifier }

func newFakeJobContext(t *testing.T) (*fakeJobContext, *store.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	cfg := &config.Config{}
	cfg.DaysBack = 7
	cfg.Readlist.Create = true
	hub := websocket.NewHub()
	go hub.Run()
	return &fakeJobContext{
		db:       db,
		cfg:      cfg,
		ws:       hub,
		jobMgr:   jobs.NewManager(hub),
		svc:      pulllist.NewService(st, stubLibrary{}, nil),
		notifier: notify.New(st, nil),
	}, st
}

func TestRunGeneration(t *testing.T) {
	app, st := newFakeJobContext(t)

	if _, err := st.AddTrackedSeries("Saga", nil, "ks-1", nil); err != nil {
		t.Fatalf("AddTrackedSeries failed: %v", err)
	}

	result := jobs.RunGeneration(app, models.RunTypeScheduled)
	assert.True(t, result.Success, "run should succeed: %s", result.Error)
	assert.Len(t, result.Items, 1)
	assert.NotNil(t, result.ReadlistID)

	statuses := app.jobMgr.GetStatus()
	assert.Equal(t, "success", statuses[0].Status)
	assert.False(t, app.jobMgr.IsRunning(), "run slot must be released")

	runs, err := st.GetRecentRuns(5)
	assert.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, models.RunTypeScheduled, runs[0].RunType)
}

func TestRunGeneration_RejectedWhileRunning(t *testing.T) {
	app, _ := newFakeJobContext(t)

	assert.NoError(t, app.jobMgr.Begin(jobs.JobGenerate))
	result := jobs.RunGeneration(app, models.RunTypeManual)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "already running")
	app.jobMgr.Finish(jobs.JobGenerate, nil)
}

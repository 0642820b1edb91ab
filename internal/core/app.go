package core

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/rhymeswithjazz/pull-list/internal/assets"
	"github.com/rhymeswithjazz/pull-list/internal/config"
	"github.com/rhymeswithjazz/pull-list/internal/db"
	"github.com/rhymeswithjazz/pull-list/internal/jobs"
	"github.com/rhymeswithjazz/pull-list/internal/komga"
	"github.com/rhymeswithjazz/pull-list/internal/mylar"
	"github.com/rhymeswithjazz/pull-list/internal/notify"
	"github.com/rhymeswithjazz/pull-list/internal/pulllist"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/websocket"
)

// App holds the core components of the application that are shared between
// the server and the CLI. It implements jobs.JobContext.
type App struct {
	database   *sql.DB
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	store      *store.Store
	version    string

	// Rebuilt on config reload.
	mu       sync.RWMutex
	config   *config.Config
	library  *komga.Client
	tracker  *mylar.Client
	pullList *pulllist.Service
	notifier *notify.Notifier
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running
// migrations.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := NewApp(cfg, database)
	app.version = version

	// Connection settings picked up from a changed config file apply to the
	// next generation run.
	config.Watch(func(updated *config.Config) {
		app.applyConfig(updated)
	})

	log.Println("Core application setup complete.")
	return app, nil
}

// NewApp assembles an App from an existing config and database. Used by New
// and by test setup; migrations must already have been applied.
func NewApp(cfg *config.Config, database *sql.DB) *App {
	hub := websocket.NewHub()
	go hub.Run()

	app := &App{
		database:   database,
		wsHub:      hub,
		jobManager: jobs.NewManager(hub),
		store:      store.New(database),
		version:    "dev",
	}
	app.applyConfig(cfg)
	return app
}

// applyConfig rebuilds the upstream clients and the services that hold them.
func (a *App) applyConfig(cfg *config.Config) {
	library := komga.New(cfg.Komga.URL, cfg.Komga.Username, cfg.Komga.Password, cfg.Komga.APIKey)

	var tracker *mylar.Client
	var trackerClient pulllist.TrackerClient
	if cfg.TrackerConfigured() {
		tracker = mylar.New(cfg.Mylar.URL, cfg.Mylar.APIKey)
		trackerClient = tracker
	}

	var provider notify.Provider
	if cfg.Notify.Enabled {
		provider = notify.NewBrevoProvider(cfg.Notify.BrevoAPIKey, cfg.Notify.FromAddress, cfg.Notify.FromName, cfg.Notify.ToAddress)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	a.library = library
	a.tracker = tracker
	a.pullList = pulllist.NewService(a.store, library, trackerClient)
	a.notifier = notify.New(a.store, provider)
}

func (a *App) DB() *sql.DB                  { return a.database }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Store() *store.Store          { return a.store }
func (a *App) Version() string              { return a.version }

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *App) Library() *komga.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.library
}

// Tracker returns the tracker client, or nil when no tracker is configured.
func (a *App) Tracker() *mylar.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tracker
}

func (a *App) PullList() *pulllist.Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pullList
}

func (a *App) Notifier() *notify.Notifier {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notifier
}

// Close gracefully closes the application's resources, like the DB
// connection.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"database/sql"
	"io"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rhymeswithjazz/pull-list/internal/assets"
	"github.com/rhymeswithjazz/pull-list/internal/core"
	"github.com/rhymeswithjazz/pull-list/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	db    *sql.DB
	store *store.Store
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		db:    app.DB(),
		store: app.Store(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	// Public API routes
	r.Post("/api/users/login", s.handleLogin)
	r.Get("/api/version", s.handleGetVersion)

	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		r.Post("/api/users/logout", s.handleLogout)
		r.Get("/api/users/me", s.handleGetMe)
		r.Post("/api/users/password", s.handleChangePassword)

		r.Route("/api", func(r chi.Router) {
			// Pull list
			r.Get("/pulllist", s.handleGetPullList)
			r.Post("/pulllist/generate", s.handleGeneratePullList)
			r.Get("/pulllist/status", s.handleGetJobStatus)
			r.Get("/pulllist/weeks", s.handleGetAvailableWeeks)
			r.Delete("/pulllist/weeks/{weekID}", s.handleClearWeek)
			r.Get("/pulllist/runs", s.handleGetRecentRuns)
			r.Post("/pulllist/books", s.handleAddOneOffBook)
			r.Post("/pulllist/books/promote", s.handlePromoteOneOff)

			// Tracked series
			r.Get("/series", s.handleListTrackedSeries)
			r.Post("/series", s.handleAddTrackedSeries)
			r.Post("/series/{seriesID}/toggle", s.handleToggleTrackedSeries)
			r.Delete("/series/{seriesID}", s.handleRemoveTrackedSeries)
			r.Get("/series/search", s.handleSearchLibrarySeries)

			// Library passthrough
			r.Get("/books/recent", s.handleGetRecentBooks)
			r.Get("/books/{bookID}/thumbnail", s.handleBookThumbnail)
			r.Get("/books/{bookID}/download", s.handleDownloadBook)
			r.Get("/series/{seriesID}/thumbnail", s.handleSeriesThumbnail)
			r.Post("/books/{bookID}/read", s.handleMarkBookRead)
			r.Delete("/books/{bookID}/read", s.handleMarkBookUnread)

			// Upstream connectivity
			r.Get("/connections", s.handleGetConnections)
		})
	})

	// WebSocket route
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		s.app.WsHub().ServeWs(w, r)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Frontend Routes
	webSubFS, err := fs.Sub(assets.WebFS, "web")
	if err != nil {
		log.Fatalf("Failed to create web sub-filesystem: %v", err)
	}

	// This handler serves a specific HTML file from the embedded FS.
	serveHTML := func(fileName string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			file, err := webSubFS.Open(fileName)
			if err != nil {
				http.NotFound(w, r)
				log.Printf("Error serving embedded file %s: %v", fileName, err)
				return
			}
			http.ServeContent(w, r, fileName, time.Time{}, file.(io.ReadSeeker))
		}
	}

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(webSubFS))))

	r.Get("/", serveHTML("dashboard.html"))
	r.Get("/login", serveHTML("login.html"))
	r.Get("/series", serveHTML("series.html"))
	r.Get("/history", serveHTML("history.html"))

	// Week-scoped dashboard views reuse the base page.
	r.Get("/weeks/{weekID}", serveHTML("dashboard.html"))

	return r
}

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhymeswithjazz/pull-list/internal/week"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

// handleGetConnections probes both upstream services. The tracker entry is
// null when none is configured.
func (s *Server) handleGetConnections(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Komga bool  `json:"komga"`
		Mylar *bool `json:"mylar"`
	}{
		Komga: s.app.Library().TestConnection(r.Context()),
	}
	if tracker := s.app.Tracker(); tracker != nil {
		ok := tracker.TestConnection(r.Context())
		resp.Mylar = &ok
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// handleGetRecentBooks lists library books in a week's window, for picking
// one-offs to add.
func (s *Server) handleGetRecentBooks(w http.ResponseWriter, r *http.Request) {
	weekID := r.URL.Query().Get("week")
	if weekID == "" {
		weekID = week.IDForDate(time.Now())
	}
	if _, err := week.StartDate(weekID); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid week id")
		return
	}
	books, err := s.app.PullList().BooksForBrowsing(r.Context(), weekID, s.app.Config().DaysBack)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, "Failed to load recent books")
		return
	}
	RespondWithJSON(w, http.StatusOK, books)
}

// handleDownloadBook streams a book's archive file through the server, so
// the browser never needs library credentials.
func (s *Server) handleDownloadBook(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := s.app.Library().BookFile(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, "Failed to download book")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// Thumbnails are proxied so the browser never needs library credentials.
func (s *Server) handleBookThumbnail(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.app.Library().BookThumbnail(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Thumbnail not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func (s *Server) handleSeriesThumbnail(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.app.Library().SeriesThumbnail(r.Context(), chi.URLParam(r, "seriesID"))
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Thumbnail not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func (s *Server) handleMarkBookRead(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Library().MarkBookRead(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		RespondWithError(w, http.StatusBadGateway, "Failed to mark book read")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMarkBookUnread(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Library().MarkBookUnread(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		RespondWithError(w, http.StatusBadGateway, "Failed to mark book unread")
		return
	}
	w.WriteHeader(http.StatusOK)
}

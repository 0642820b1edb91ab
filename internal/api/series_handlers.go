package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListTrackedSeries(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	series, err := s.store.GetTrackedSeries(activeOnly)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list series")
		return
	}
	RespondWithJSON(w, http.StatusOK, series)
}

// handleAddTrackedSeries tracks a library series. Name and publisher are
// filled in from the library when the payload omits them.
func (s *Server) handleAddTrackedSeries(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string  `json:"name"`
		KomgaSeriesID string  `json:"komga_series_id"`
		MylarComicID  *string `json:"mylar_comic_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.KomgaSeriesID == "" {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	existing, err := s.store.GetTrackedSeriesByKomgaID(payload.KomgaSeriesID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to check series")
		return
	}
	if existing != nil {
		RespondWithError(w, http.StatusConflict, "Series is already tracked")
		return
	}

	var publisher *string
	name := payload.Name
	if series, err := s.app.Library().GetSeriesByID(r.Context(), payload.KomgaSeriesID); err == nil {
		publisher = series.Publisher()
		if name == "" {
			name = series.Metadata.Title
			if name == "" {
				name = series.Name
			}
		}
	}
	if name == "" {
		RespondWithError(w, http.StatusBadRequest, "Series name is required when the library has no record")
		return
	}

	created, err := s.store.AddTrackedSeries(name, publisher, payload.KomgaSeriesID, payload.MylarComicID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to add series")
		return
	}
	RespondWithJSON(w, http.StatusCreated, created)
}

func (s *Server) handleToggleTrackedSeries(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series id")
		return
	}
	active, err := s.store.ToggleTrackedSeries(id)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Series not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleRemoveTrackedSeries(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series id")
		return
	}
	if err := s.store.RemoveTrackedSeries(id); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to remove series")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearchLibrarySeries searches the library by title, for the tracking
// picker.
func (s *Server) handleSearchLibrarySeries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing search query")
		return
	}
	series, err := s.app.Library().GetSeries(r.Context(), query)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, "Library search failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, series)
}

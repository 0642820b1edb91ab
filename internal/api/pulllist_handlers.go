package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhymeswithjazz/pull-list/internal/jobs"
	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/pulllist"
	"github.com/rhymeswithjazz/pull-list/internal/week"
)

// handleGetPullList returns one week's pull list with fresh read progress,
// plus the navigation metadata the dashboard needs.
func (s *Server) handleGetPullList(w http.ResponseWriter, r *http.Request) {
	weekID := r.URL.Query().Get("week")
	if weekID == "" {
		weekID = week.IDForDate(time.Now())
	}
	if _, err := week.StartDate(weekID); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid week id")
		return
	}

	svc := s.app.PullList()
	items, err := svc.WeekItems(r.Context(), weekID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load week")
		return
	}

	readlistRun, err := svc.ReadlistForWeek(weekID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load readlist info")
		return
	}

	display, _ := week.FormatDisplay(weekID)
	previous, _ := week.PreviousID(weekID)
	next, _ := week.NextID(weekID)

	resp := struct {
		WeekID   string                 `json:"week_id"`
		Display  string                 `json:"display"`
		Previous string                 `json:"previous"`
		Next     string                 `json:"next"`
		Items    []*models.PullListItem `json:"items"`
		Readlist *models.PullListRun    `json:"readlist,omitempty"`
	}{
		WeekID:   weekID,
		Display:  display,
		Previous: previous,
		Next:     next,
		Items:    items,
		Readlist: readlistRun,
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// handleGeneratePullList triggers a manual run. It runs synchronously under
// the job manager's single-flight guard; a second trigger while one is in
// flight gets a 409.
func (s *Server) handleGeneratePullList(w http.ResponseWriter, r *http.Request) {
	if s.app.JobManager().IsRunning() {
		RespondWithError(w, http.StatusConflict, "A generation run is already in progress")
		return
	}

	result := jobs.RunGeneration(s.app, models.RunTypeManual)
	if !result.Success && result.Error == "a job is already running" {
		RespondWithError(w, http.StatusConflict, "A generation run is already in progress")
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}

func (s *Server) handleGetAvailableWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.app.PullList().AvailableWeeks()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list weeks")
		return
	}
	type weekEntry struct {
		WeekID  string `json:"week_id"`
		Display string `json:"display"`
	}
	entries := make([]weekEntry, 0, len(weeks))
	for _, id := range weeks {
		display, err := week.FormatDisplay(id)
		if err != nil {
			display = id
		}
		entries = append(entries, weekEntry{WeekID: id, Display: display})
	}
	RespondWithJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearWeek(w http.ResponseWriter, r *http.Request) {
	weekID := chi.URLParam(r, "weekID")
	deleted, err := s.app.PullList().ClearWeek(weekID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to clear week")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleGetRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.app.PullList().RecentRuns(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load runs")
		return
	}
	RespondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleAddOneOffBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		WeekID string `json:"week_id"`
		BookID string `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.BookID == "" {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if payload.WeekID == "" {
		payload.WeekID = week.IDForDate(time.Now())
	}

	book, err := s.app.PullList().AddOneOffBook(r.Context(), payload.WeekID, payload.BookID)
	if err != nil {
		if errors.Is(err, pulllist.ErrDuplicateBook) {
			RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to add book")
		return
	}
	RespondWithJSON(w, http.StatusCreated, book)
}

func (s *Server) handlePromoteOneOff(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		WeekID string `json:"week_id"`
		BookID string `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.WeekID == "" || payload.BookID == "" {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	series, err := s.app.PullList().PromoteOneOffToTracked(r.Context(), payload.WeekID, payload.BookID)
	if err != nil {
		if errors.Is(err, pulllist.ErrNotOneOff) {
			RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to promote book")
		return
	}
	RespondWithJSON(w, http.StatusOK, series)
}

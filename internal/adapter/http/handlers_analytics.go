package adapthttp

import (
	"net/http"

	"habits/internal/app"
)

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	weeks := intQuery(r, "weeks", app.DefaultWeekCount)
	data, err := s.analytics.WeeklyCompletionSeries(r.Context(), userFrom(r.Context()).ID, id, weeks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habitId": id, "data": data})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.analytics.Snapshot(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWeekdays(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analytics.WeekdayHistogram(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeklyStats": stats})
}

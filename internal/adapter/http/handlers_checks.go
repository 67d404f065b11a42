package adapthttp

import (
	"net/http"

	"habits/internal/domain"
)

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	cs, err := s.tracker.ListChecks(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": cs})
}

func (s *Server) handleToggleCheck(w http.ResponseWriter, r *http.Request) {
	day, err := domain.ParseDay(r.PathValue("day"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.tracker.ToggleCheck(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Streaks(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

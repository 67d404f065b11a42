package adapthttp

import (
	"errors"
	"io"
	"net/http"

	"habits/internal/app"
	"habits/internal/domain"
)

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"badges": domain.Catalog()})
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	hs, err := s.tracker.ListHabits(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": hs})
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var in domain.HabitInput
	if err := parseJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.tracker.CreateHabit(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	h, err := s.tracker.GetHabit(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	var patch domain.HabitPatch
	if err := parseJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.tracker.UpdateHabit(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteHabit(r.Context(), userFrom(r.Context()).ID, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seed uint64 `json:"seed"`
	}
	// The body is optional; an empty one draws a time-based seed.
	if err := parseJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hs, err := s.tracker.LoadDemoData(r.Context(), userFrom(r.Context()).ID, app.NewRand(body.Seed))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": hs})
}

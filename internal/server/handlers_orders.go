package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"arksched/internal/catalog"
	"arksched/internal/priority"
	"arksched/internal/store"
)

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.st.ListOrders(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePutOrder(w http.ResponseWriter, r *http.Request) {
	var o catalog.Order
	if err := readJSON(r, &o); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	o.Customer = strings.TrimSpace(o.Customer)
	o.Job = strings.TrimSpace(o.Job)
	o.Service = strings.TrimSpace(o.Service)
	if o.Customer == "" || o.Job == "" || o.Service == "" {
		httpError(w, http.StatusBadRequest, "customer, job, and service are required")
		return
	}
	if o.StageCompleted == "" {
		o.StageCompleted = catalog.StageNotStarted
	}
	id, err := s.st.UpsertOrder(r.Context(), o)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	o.ID = id
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.st.DeleteOrder(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportOrders accepts a forecast CSV body. ?replace=true wipes the
// order book first.
func (s *Server) handleImportOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := catalog.ParseForecast(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	replace := r.URL.Query().Get("replace") == "true"
	n, err := s.st.ImportOrders(r.Context(), orders, replace)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n, "replaced": replace})
}

func (s *Server) handleListWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := s.st.ListWeights(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

func (s *Server) handlePutWeight(w http.ResponseWriter, r *http.Request) {
	var wt priority.Weight
	if err := readJSON(r, &wt); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(wt.Customer) == "" {
		httpError(w, http.StatusBadRequest, "customer is required")
		return
	}
	if wt.Weight <= 0 {
		httpError(w, http.StatusBadRequest, "weight must be positive")
		return
	}
	if err := s.st.UpsertWeight(r.Context(), wt); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, wt)
}

func (s *Server) handleDeleteWeight(w http.ResponseWriter, r *http.Request) {
	customer := chi.URLParam(r, "customer")
	if err := s.st.DeleteWeight(r.Context(), customer); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type targetRequest struct {
	Customer string `json:"customer"`
	Stage    string `json:"stage"`
	By       string `json:"by"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.st.ListTargets(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := readJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Customer) == "" || strings.TrimSpace(req.Stage) == "" {
		httpError(w, http.StatusBadRequest, "customer and stage are required")
		return
	}
	by, err := parseDay(req.By)
	if err != nil {
		httpError(w, http.StatusBadRequest, "by must be YYYY-MM-DD")
		return
	}
	t := priority.Target{Customer: req.Customer, Stage: req.Stage, By: by}
	id, err := s.st.AddTarget(r.Context(), t)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.ID = id
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.st.DeleteTarget(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsPayload struct {
	WindowStart *string `json:"window_start,omitempty"`
	WindowEnd   *string `json:"window_end,omitempty"`

	GapAfterFinishHours    *float64 `json:"gap_after_finish_hours,omitempty"`
	GapBeforeAssemblyHours *float64 `json:"gap_before_assembly_hours,omitempty"`
	AssemblyEarliestHour   *int     `json:"assembly_earliest_hour,omitempty"`
}

func settingsToPayload(st store.Settings) settingsPayload {
	p := settingsPayload{
		GapAfterFinishHours:    &st.GapAfterFinishHours,
		GapBeforeAssemblyHours: &st.GapBeforeAssemblyHours,
		AssemblyEarliestHour:   &st.AssemblyEarliestHour,
	}
	if !st.WindowStart.IsZero() {
		v := st.WindowStart.Format("2006-01-02")
		p.WindowStart = &v
	}
	if !st.WindowEnd.IsZero() {
		v := st.WindowEnd.Format("2006-01-02")
		p.WindowEnd = &v
	}
	return p
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.st.GetSettings(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsToPayload(st))
}

// handlePutSettings merges the payload over current settings: omitted fields
// keep their values, empty window strings clear the window.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := readJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.st.GetSettings(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	st.WindowStart, err = mergeDay(req.WindowStart, st.WindowStart)
	if err != nil {
		httpError(w, http.StatusBadRequest, "window_start must be YYYY-MM-DD")
		return
	}
	st.WindowEnd, err = mergeDay(req.WindowEnd, st.WindowEnd)
	if err != nil {
		httpError(w, http.StatusBadRequest, "window_end must be YYYY-MM-DD")
		return
	}
	if !st.WindowStart.IsZero() && !st.WindowEnd.IsZero() && st.WindowEnd.Before(st.WindowStart) {
		httpError(w, http.StatusBadRequest, "window_end precedes window_start")
		return
	}
	if req.GapAfterFinishHours != nil {
		st.GapAfterFinishHours = *req.GapAfterFinishHours
	}
	if req.GapBeforeAssemblyHours != nil {
		st.GapBeforeAssemblyHours = *req.GapBeforeAssemblyHours
	}
	if req.AssemblyEarliestHour != nil {
		st.AssemblyEarliestHour = *req.AssemblyEarliestHour
	}
	if st.GapAfterFinishHours < 0 || st.GapBeforeAssemblyHours < 0 {
		httpError(w, http.StatusBadRequest, "gaps must not be negative")
		return
	}
	if st.AssemblyEarliestHour < 0 || st.AssemblyEarliestHour > 23 {
		httpError(w, http.StatusBadRequest, "assembly_earliest_hour must be 0..23")
		return
	}

	if err := s.st.PutSettings(r.Context(), st); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsToPayload(st))
}

// mergeDay applies one optional window field: nil keeps the current value,
// an empty string clears it, a date replaces it.
func mergeDay(v *string, cur time.Time) (time.Time, error) {
	if v == nil {
		return cur, nil
	}
	if strings.TrimSpace(*v) == "" {
		return time.Time{}, nil
	}
	return parseDay(*v)
}

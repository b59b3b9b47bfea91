package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"arksched/internal/roster"
	"arksched/internal/schedule"
	"arksched/internal/store"
)

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := s.st.ListEmployees(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, emps)
}

func (s *Server) handlePutEmployee(w http.ResponseWriter, r *http.Request) {
	var e roster.Employee
	if err := readJSON(r, &e); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		httpError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.st.UpsertEmployee(r.Context(), e); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.st.DeleteEmployee(r.Context(), name); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := s.st.ListShifts(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (s *Server) handleAddShift(w http.ResponseWriter, r *http.Request) {
	var rule roster.ShiftRule
	if err := readJSON(r, &rule); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(rule.Employee) == "" {
		httpError(w, http.StatusBadRequest, "employee is required")
		return
	}
	if rule.Weekday < 0 || rule.Weekday > 6 {
		httpError(w, http.StatusBadRequest, "weekday must be 0 (Monday) through 6 (Sunday)")
		return
	}
	if _, _, err := schedule.ParseClock(rule.Start); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, err := schedule.ParseClock(rule.End); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.st.AddShift(r.Context(), rule)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteShift(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.st.DeleteShift(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayOffRequest struct {
	Employee string `json:"employee"`
	Date     string `json:"date"`
}

func (s *Server) handleListDaysOff(w http.ResponseWriter, r *http.Request) {
	days, err := s.st.ListDaysOff(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleAddDayOff(w http.ResponseWriter, r *http.Request) {
	var req dayOffRequest
	if err := readJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Employee) == "" {
		httpError(w, http.StatusBadRequest, "employee is required")
		return
	}
	date, err := parseDay(req.Date)
	if err != nil {
		httpError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	d := roster.DayOff{Employee: req.Employee, Date: date}
	id, err := s.st.AddDayOff(r.Context(), d)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.ID = id
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteDayOff(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.st.DeleteDayOff(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.st.ListProjects(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if err := readJSON(r, &p); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.Employee) == "" {
		httpError(w, http.StatusBadRequest, "employee is required")
		return
	}
	if !p.End.After(p.Start) {
		httpError(w, http.StatusBadRequest, "end must be after start")
		return
	}
	id, err := s.st.AddProject(r.Context(), p)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p.ID = id
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.st.DeleteProject(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

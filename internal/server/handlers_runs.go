package server

import (
	"net/http"
	"strings"
	"time"

	"arksched/internal/carryover"
	"arksched/internal/planner"
	"arksched/internal/schedule"
	"arksched/pkg/logx"
)

// feedbackRequest is one end-of-day report: how far a task got and when the
// rest should resume. The remaining hours become a ledger entry.
type feedbackRequest struct {
	Employee string `json:"employee"`
	Customer string `json:"customer"`
	Job      string `json:"job"`
	Service  string `json:"service"`
	Stage    string `json:"stage"`
	Item     int    `json:"item,omitempty"`

	HoursPlanned float64 `json:"hours_planned"`
	HoursDone    float64 `json:"hours_done"`

	ReportedOn string `json:"reported_on,omitempty"` // default: today
	ResumeOn   string `json:"resume_on"`
	Notes      string `json:"notes,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := readJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	required := []struct{ name, value string }{
		{"employee", req.Employee},
		{"customer", req.Customer},
		{"job", req.Job},
		{"service", req.Service},
		{"stage", req.Stage},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			httpError(w, http.StatusBadRequest, f.name+" is required")
			return
		}
	}
	if req.HoursPlanned <= 0 {
		httpError(w, http.StatusBadRequest, "hours_planned must be positive")
		return
	}
	if req.HoursDone < 0 || req.HoursDone >= req.HoursPlanned {
		httpError(w, http.StatusBadRequest, "hours_done must be in [0, hours_planned); finished work needs no feedback")
		return
	}
	resume, err := parseDay(req.ResumeOn)
	if err != nil {
		httpError(w, http.StatusBadRequest, "resume_on must be YYYY-MM-DD")
		return
	}
	reported := schedule.DateOf(time.Now())
	if req.ReportedOn != "" {
		if reported, err = parseDay(req.ReportedOn); err != nil {
			httpError(w, http.StatusBadRequest, "reported_on must be YYYY-MM-DD")
			return
		}
	}

	entry := carryover.Entry{
		Employee: req.Employee,
		Key: schedule.TaskKey{
			Customer: req.Customer,
			Job:      req.Job,
			Service:  req.Service,
			Stage:    req.Stage,
			Item:     req.Item,
		},
		HoursPlanned:   req.HoursPlanned,
		HoursDone:      req.HoursDone,
		HoursRemaining: req.HoursPlanned - req.HoursDone,
		ReportedOn:     reported,
		ResumeOn:       resume,
		Notes:          req.Notes,
	}
	id, err := s.st.AddEntry(r.Context(), entry)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entry.ID = id
	writeJSON(w, http.StatusCreated, entry)
}

// handleListCarryover returns open ledger entries; ?all=true includes
// consumed history.
func (s *Server) handleListCarryover(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	entries, err := s.st.ListEntries(r.Context(), all)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRebuild triggers a scheduling run. ?force=true bypasses the result
// cache. Rebuilds are rate limited since each one hits the whole store.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.rebuilds.Allow() {
		httpError(w, http.StatusTooManyRequests, "rebuild rate limit reached, retry shortly")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	run, err := s.pl.Rebuild(r.Context(), force)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok, err := s.pl.Latest(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		httpError(w, http.StatusNotFound, "no run published yet")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	run, ok, err := s.pl.Latest(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		httpError(w, http.StatusNotFound, "no run published yet")
		return
	}
	ivs := run.Intervals
	if emp := strings.TrimSpace(r.URL.Query().Get("employee")); emp != "" {
		filtered := make([]schedule.Interval, 0, len(ivs))
		for _, iv := range ivs {
			if strings.EqualFold(iv.Employee, emp) {
				filtered = append(filtered, iv)
			}
		}
		ivs = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    run.ID,
		"intervals": ivs,
	})
}

func (s *Server) handleScheduleCSV(w http.ResponseWriter, r *http.Request) {
	run, ok, err := s.pl.Latest(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		httpError(w, http.StatusNotFound, "no run published yet")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.csv"`)
	if err := planner.WriteCSV(w, run.Intervals); err != nil {
		s.log.Warn("csv export failed", logx.Any("err", err))
	}
}

package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, session auth.Session) {
	stats, err := s.transactions.Stats(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, log.OpStats, msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request, session auth.Session) {
	cats, err := s.transactions.CategoryBreakdown(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, log.OpStats, msgNotFound)
		return
	}
	if cats == nil {
		cats = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request, session auth.Session) {
	months, err := s.transactions.MonthlyTrend(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, log.OpStats, msgNotFound)
		return
	}
	if months == nil {
		months = []core.MonthlyTotal{}
	}
	writeJSON(w, http.StatusOK, months)
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.DefaultCategories)
}

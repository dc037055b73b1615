package http

import (
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	case errors.Is(err, core.ErrAuth):
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	default:
		writeError(w, r, err, log.OpLogin, msgInvalidCredentials)
		return
	}

	s.guard.setCookie(w, res.Token, res.ExpiresAt)
	writeMessage(w, http.StatusOK, "Login successful")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.guard.clearCookie(w)
	if session, ok := SessionFromContext(r.Context()); ok {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "Logged out",
			log.FieldOperation, log.OpLogout,
			log.FieldUserID, session.UserID)
	}
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, session auth.Session) {
	user, err := s.auth.CurrentUser(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, log.OpRead, msgUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Name: user.Name, Email: user.Email})
}

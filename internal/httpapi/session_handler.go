package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SessionStore 当前用户（session.Session）
type SessionStore interface {
	UserResolver
	Login(userID string)
	Logout()
}

// SessionHandler 当前用户接口
type SessionHandler struct {
	session SessionStore
	logger  *zap.Logger
}

func NewSessionHandler(session SessionStore, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{session: session, logger: logger}
}

type sessionView struct {
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

func (h *SessionHandler) view() sessionView {
	userID, ok := h.session.CurrentUser()
	return sessionView{UserID: userID, Authenticated: ok}
}

// Get GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.view()))
}

// Login POST /api/v1/session {"user_id": "..."}
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := readBodyJSON(r, 1<<12, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("user_id is required"))
		return
	}
	h.session.Login(userID)
	h.logger.Info("User logged in", zap.String("user_id", userID))
	writeJSON(w, http.StatusOK, Ok(h.view()))
}

// Logout DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	writeJSON(w, http.StatusOK, Ok(h.view()))
}

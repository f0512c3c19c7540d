package httpapi

import (
	"context"
	"errors"
	"net/http"

	"alfred/internal/alert"
	"alfred/internal/consumer"
	"alfred/internal/models"

	"go.uber.org/zap"
)

// AlertTrigger 触发报警（consumer.AlertDispatcher）
type AlertTrigger interface {
	Dispatch(trigger models.AlertTrigger) error
}

// AlertControl 报警会话控制（alert.Sequencer）
type AlertControl interface {
	Cancel() bool
	Status() models.AlertStatus
	LastOutcome() (models.AlertOutcome, bool)
}

// AlertEventLister 报警审计记录（repository.AlertEventRepository）
type AlertEventLister interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.AlertEvent, error)
}

// AlertHandler 紧急报警接口
type AlertHandler struct {
	trigger AlertTrigger
	control AlertControl
	events  AlertEventLister
	users   UserResolver
	logger  *zap.Logger
}

func NewAlertHandler(trigger AlertTrigger, control AlertControl, events AlertEventLister, users UserResolver, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		trigger: trigger,
		control: control,
		events:  events,
		users:   users,
		logger:  logger,
	}
}

// Test POST /api/v1/alert/test
// 手动测试报警，会话在后台运行，通过 status 查询进度
func (h *AlertHandler) Test(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.Dispatch(models.TriggerManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, Ok(h.control.Status()))
	case errors.Is(err, alert.ErrAlertInProgress):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.Is(err, consumer.ErrNoUser):
		writeJSON(w, http.StatusUnauthorized, Fail("not authenticated"))
	case errors.Is(err, consumer.ErrNoContacts):
		writeJSON(w, http.StatusBadRequest, Fail("please add at least one emergency contact first"))
	default:
		h.logger.Error("Failed to start test alert", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to start test alert"))
	}
}

type cancelResponse struct {
	Cancelled bool               `json:"cancelled"`
	Status    models.AlertStatus `json:"status"`
}

// Cancel POST /api/v1/alert/cancel
// 仅在倒计时阶段有效，发送阶段返回 cancelled=false
func (h *AlertHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	cancelled := h.control.Cancel()
	writeJSON(w, http.StatusOK, Ok(cancelResponse{
		Cancelled: cancelled,
		Status:    h.control.Status(),
	}))
}

type alertStatusResponse struct {
	Status      models.AlertStatus   `json:"status"`
	LastOutcome *models.AlertOutcome `json:"last_outcome,omitempty"`
}

// Status GET /api/v1/alert/status
func (h *AlertHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := alertStatusResponse{Status: h.control.Status()}
	if outcome, ok := h.control.LastOutcome(); ok {
		resp.LastOutcome = &outcome
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Events GET /api/v1/alert/events?limit=20
func (h *AlertHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.users.CurrentUser()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Fail("not authenticated"))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	events, err := h.events.ListRecent(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list alert events", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list alert events"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alfred/internal/alert"
	"alfred/internal/consumer"
	"alfred/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAlertRouter(trigger *fakeTrigger, control *fakeControl, events *fakeEvents, users *fakeUsers) *Router {
	r := NewRouter(zap.NewNop())
	r.RegisterAlertRoutes(NewAlertHandler(trigger, control, events, users, zap.NewNop()))
	return r
}

func TestAlert_TestDispatchesManualTrigger(t *testing.T) {
	trigger := &fakeTrigger{}
	control := &fakeControl{status: models.AlertStatus{State: models.AlertStateAlerting, Countdown: 10, Trigger: models.TriggerManual}}
	r := newTestAlertRouter(trigger, control, &fakeEvents{}, &fakeUsers{userID: "u1"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alert/test", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []models.AlertTrigger{models.TriggerManual}, trigger.triggers)

	res := decodeResult[models.AlertStatus](t, rec)
	assert.Equal(t, models.AlertStateAlerting, res.Result.State)
	assert.Equal(t, 10, res.Result.Countdown)
}

func TestAlert_TestErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{alert.ErrAlertInProgress, http.StatusConflict},
		{consumer.ErrNoUser, http.StatusUnauthorized},
		{consumer.ErrNoContacts, http.StatusBadRequest},
		{errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestAlertRouter(&fakeTrigger{err: tc.err}, &fakeControl{}, &fakeEvents{}, &fakeUsers{userID: "u1"})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alert/test", nil))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.Equal(t, ResultError, decodeResult[any](t, rec).Code)
	}
}

func TestAlert_Cancel(t *testing.T) {
	control := &fakeControl{cancelResult: true, status: models.AlertStatus{State: models.AlertStateIdle}}
	r := newTestAlertRouter(&fakeTrigger{}, control, &fakeEvents{}, &fakeUsers{userID: "u1"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alert/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult[cancelResponse](t, rec).Result.Cancelled)

	control.cancelResult = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alert/cancel", nil))
	assert.False(t, decodeResult[cancelResponse](t, rec).Result.Cancelled)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alert/cancel", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAlert_StatusIncludesLastOutcome(t *testing.T) {
	control := &fakeControl{status: models.AlertStatus{State: models.AlertStateIdle}}
	r := newTestAlertRouter(&fakeTrigger{}, control, &fakeEvents{}, &fakeUsers{userID: "u1"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alert/status", nil))
	assert.Nil(t, decodeResult[alertStatusResponse](t, rec).Result.LastOutcome)

	control.outcome = &models.AlertOutcome{Kind: models.OutcomePartial, Successes: 1, Total: 2}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alert/status", nil))
	res := decodeResult[alertStatusResponse](t, rec)
	require.NotNil(t, res.Result.LastOutcome)
	assert.Equal(t, models.OutcomePartial, res.Result.LastOutcome.Kind)
	assert.Equal(t, 1, res.Result.LastOutcome.Successes)
}

func TestAlert_Events(t *testing.T) {
	events := &fakeEvents{events: []models.AlertEvent{{EventID: "e1", UserID: "u1", Trigger: models.TriggerFall, Outcome: models.OutcomeSuccess}}}
	r := newTestAlertRouter(&fakeTrigger{}, &fakeControl{}, events, &fakeUsers{userID: "u1"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alert/events?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, events.lastLimit)
	res := decodeResult[[]models.AlertEvent](t, rec)
	require.Len(t, res.Result, 1)
	assert.Equal(t, "e1", res.Result[0].EventID)

	r = newTestAlertRouter(&fakeTrigger{}, &fakeControl{}, events, &fakeUsers{})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alert/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

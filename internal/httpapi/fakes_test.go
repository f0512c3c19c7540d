package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"alfred/internal/consumer"
	"alfred/internal/messaging"
	"alfred/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	userID string
}

func (f *fakeUsers) CurrentUser() (string, bool) { return f.userID, f.userID != "" }

type fakeSegments struct {
	segments []models.ActivitySegment
	err      error

	lastStart, lastEnd time.Time
	lastKind           models.ActivityCode
}

func (f *fakeSegments) QueryRange(ctx context.Context, userID string, start, end time.Time, kind models.ActivityCode) ([]models.ActivitySegment, error) {
	f.lastStart, f.lastEnd, f.lastKind = start, end, kind
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ActivitySegment
	for _, s := range f.segments {
		if kind == 0 || s.Kind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeOpen struct {
	seg *models.ActivitySegment
}

func (f *fakeOpen) OpenSegment() (models.ActivitySegment, bool) {
	if f.seg == nil {
		return models.ActivitySegment{}, false
	}
	return *f.seg, true
}

type fakeContacts struct {
	contacts  []models.EmergencyContact
	createErr error
	deleteErr error
	deleted   []string
}

func (f *fakeContacts) List(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	return f.contacts, nil
}

func (f *fakeContacts) Create(ctx context.Context, c models.EmergencyContact) (*models.EmergencyContact, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c.ContactID = "c-1"
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func (f *fakeContacts) Delete(ctx context.Context, userID, contactID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, contactID)
	return nil
}

type fakeInvalidator struct {
	users []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID string) {
	f.users = append(f.users, userID)
}

type sentMessage struct {
	message, phone string
}

type fakeSender struct {
	mu     sync.Mutex
	result messaging.SendResult
	sent   []sentMessage
}

func (f *fakeSender) Send(ctx context.Context, message, phone string) messaging.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{message: message, phone: phone})
	return f.result
}

type fakeTrigger struct {
	err      error
	triggers []models.AlertTrigger
}

func (f *fakeTrigger) Dispatch(trigger models.AlertTrigger) error {
	f.triggers = append(f.triggers, trigger)
	return f.err
}

type fakeControl struct {
	cancelResult bool
	status       models.AlertStatus
	outcome      *models.AlertOutcome
}

func (f *fakeControl) Cancel() bool { return f.cancelResult }
func (f *fakeControl) Status() models.AlertStatus { return f.status }

func (f *fakeControl) LastOutcome() (models.AlertOutcome, bool) {
	if f.outcome == nil {
		return models.AlertOutcome{}, false
	}
	return *f.outcome, true
}

type fakeEvents struct {
	events    []models.AlertEvent
	lastLimit int
}

func (f *fakeEvents) ListRecent(ctx context.Context, userID string, limit int) ([]models.AlertEvent, error) {
	f.lastLimit = limit
	return f.events, nil
}

type fakeDevice struct {
	connectOK bool
	connected bool
}

func (f *fakeDevice) Connect(ctx context.Context) bool {
	f.connected = f.connectOK
	return f.connectOK
}
func (f *fakeDevice) Disconnect() { f.connected = false }
func (f *fakeDevice) IsConnected() bool { return f.connected }
func (f *fakeDevice) DeviceID() string { return "band-01" }

type fakeMetrics struct {
	received int64
}

func (f *fakeMetrics) GetMetrics() consumer.Metrics {
	return consumer.Metrics{ValuesReceived: f.received}
}

// decodeResult 解析统一响应
func decodeResult[T any](t *testing.T, rec *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var res Result[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

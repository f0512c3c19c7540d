package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupSMSServer(t *testing.T, handler http.HandlerFunc) *SMSClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSMSClient(SMSConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550001111",
	}, zap.NewNop())
}

func TestSMSClient_Send_Queued(t *testing.T) {
	client := setupSMSServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+491701234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15550001111", r.PostForm.Get("From"))
		assert.Equal(t, "help", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	res := client.Send(context.Background(), "help", "+491701234567")
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
}

func TestSMSClient_Send_GatewayError(t *testing.T) {
	client := setupSMSServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	})

	res := client.Send(context.Background(), "help", "12")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a valid phone number")
}

func TestSMSClient_Send_FailedStatus(t *testing.T) {
	client := setupSMSServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM2","status":"failed","error_message":"carrier rejected"}`))
	})

	res := client.Send(context.Background(), "help", "+491701234567")
	assert.False(t, res.Success)
	assert.Equal(t, "carrier rejected", res.Error)
}

func TestSMSClient_Send_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewSMSClient(SMSConfig{BaseURL: url, AccountSID: "AC123"}, zap.NewNop())
	res := client.Send(context.Background(), "help", "+491701234567")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSMSClient_Send_EmptyPhone(t *testing.T) {
	client := NewSMSClient(SMSConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	res := client.Send(context.Background(), "help", "")
	assert.False(t, res.Success)
}

func TestWelcomeText(t *testing.T) {
	assert.Equal(t,
		"Hello Anna Berg, you have been added as an emergency contact for Alfred.",
		WelcomeText("Anna", "Berg"))
}

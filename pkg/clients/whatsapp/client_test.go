package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/flockwatch/internal/config"
)

func testConfig(baseURL string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		AccessToken:   "token",
		PhoneNumberID: "12345",
		BaseURL:       baseURL + "/",
		APIVersion:    "v20.0",
	}
}

func TestSendTextMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "224600000000", body["to"])
		assert.Equal(t, "text", body["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(testConfig(srv.URL)).SendTextMessage(context.Background(), SendTextMessageRequest{To: "224600000000", Body: "hello"})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "wamid.1", resp.Messages[0].ID)
}

func TestSendTextMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100,"fbtrace_id":"abc"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).SendTextMessage(context.Background(), SendTextMessageRequest{To: "x", Body: "y"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, "abc", apiErr.TraceID)
	assert.False(t, apiErr.Throttled())
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestSendTextMessage_RetriesThrottling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","code":4}}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.2"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(testConfig(srv.URL)).SendTextMessage(context.Background(), SendTextMessageRequest{To: "x", Body: "y"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", resp.Messages[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

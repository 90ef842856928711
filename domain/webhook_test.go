package domain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biscgit/streamlet/frame"
)

func TestWebhook_Emit_PostsJSONFrame(t *testing.T) {
	var gotHeader string
	var gotBody webhookFramePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook("wh1", WebhookConfig{URL: srv.URL, Timeout: time.Second}, nil)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &frame.Frame{TaskName: "orders", Timestamp: ts, Metrics: []frame.Metric{{Name: "count", Value: float64(3)}}}

	require.NoError(t, wh.Emit(context.Background(), f))
	assert.Equal(t, "application/json", gotHeader)
	assert.Equal(t, "orders", gotBody.Task)
	require.Len(t, gotBody.Metrics, 1)
	assert.Equal(t, "count", gotBody.Metrics[0].Name)
}

func TestWebhook_Emit_NonTwoXXIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook("wh1", WebhookConfig{URL: srv.URL, Timeout: time.Second}, nil)
	f := &frame.Frame{TaskName: "orders"}

	err := wh.Emit(context.Background(), f)
	require.Error(t, err)
}

func TestWebhook_Emit_CustomHeadersSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook("wh1", WebhookConfig{URL: srv.URL, Timeout: time.Second, Headers: map[string]string{"Authorization": "Bearer tok"}}, nil)
	f := &frame.Frame{TaskName: "orders"}

	require.NoError(t, wh.Emit(context.Background(), f))
	assert.Equal(t, "Bearer tok", gotAuth)
}

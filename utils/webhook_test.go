package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateWebhookPostsEvent(t *testing.T) {
	var got certificateReadyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewCertificateWebhook(srv.URL).Hook()
	require.NoError(t, hook(context.Background(), readyEvent()))

	assert.Equal(t, "certificate.ready", got.Event)
	assert.EqualValues(t, 11, got.CertificateID)
	assert.Equal(t, "CERT-ABCDEFGHIJ-7-3", got.CertificateNumber)
	assert.EqualValues(t, 7, got.UserID)
	assert.EqualValues(t, 3, got.CourseID)
	assert.Equal(t, "Go Fundamentals", got.CourseTitle)
}

func TestCertificateWebhookReportsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewCertificateWebhook(srv.URL).Notify(context.Background(), readyEvent())
	assert.ErrorContains(t, err, "400")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertlens/pkg/models"
)

var onePayload = Payload{Takeaways: []models.Takeaway{{Title: "T"}}}

func TestPost(t *testing.T) {
	var got Payload
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		token = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}})
	require.NoError(t, err)
	defer w.Close()

	p := Payload{
		RunID:     "run-1",
		Generated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Takeaways: []models.Takeaway{{Title: "T", What: "w", Impact: "i", Mitigation: "m"}},
		Text:      "1. T",
	}
	require.NoError(t, w.Post(context.Background(), p))
	assert.Equal(t, p, got)
	assert.Equal(t, "Bearer x", token)
}

func TestPostSkipsEmptyPayload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, w.Post(context.Background(), Payload{}))
	assert.Equal(t, int32(0), calls.Load())
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Retries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Post(context.Background(), onePayload))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Retries: 1, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	err = w.Post(context.Background(), onePayload)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Retries: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	require.Error(t, w.Post(context.Background(), onePayload))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Retries: 10, RetryDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Post(ctx, onePayload), context.DeadlineExceeded)
}

func TestNewWriterValidates(t *testing.T) {
	_, err := NewWriter(Config{})
	require.Error(t, err)
	_, err = NewWriter(Config{URL: "http://x", Retries: -1})
	require.Error(t, err)
}

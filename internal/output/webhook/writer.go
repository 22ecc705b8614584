// Package webhook posts takeaway reports to a remote HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertlens/internal/logger"
	"alertlens/pkg/models"
)

// Config configures the webhook writer. Retries counts extra attempts after
// the first one.
type Config struct {
	URL        string
	Timeout    time.Duration
	Headers    map[string]string
	Retries    int
	RetryDelay time.Duration
}

// Payload is the JSON body posted per run.
type Payload struct {
	RunID     string            `json:"run_id"`
	Generated time.Time         `json:"generated_at"`
	Takeaways []models.Takeaway `json:"takeaways"`
	Text      string            `json:"text"`
}

// Writer delivers takeaway payloads.
type Writer struct {
	url        string
	headers    map[string]string
	client     *http.Client
	retries    int
	retryDelay time.Duration
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook request failed with status %s", e.Status)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NewWriter creates a webhook writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is empty")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("webhook retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Writer{
		url:        cfg.URL,
		headers:    cfg.Headers,
		client:     &http.Client{Timeout: timeout},
		retries:    cfg.Retries,
		retryDelay: delay,
	}, nil
}

// Post sends one payload. Transport errors, 429 and 5xx responses are
// retried with a doubling delay; other statuses fail at once.
func (w *Writer) Post(ctx context.Context, p Payload) error {
	if len(p.Takeaways) == 0 {
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal takeaways: %w", err)
	}

	delay := w.retryDelay
	for attempt := 0; ; attempt++ {
		err = w.send(ctx, body)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= w.retries {
			return err
		}

		logger.Warnf("Webhook delivery attempt %d failed, retrying in %s: %v", attempt+1, delay, err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

func (w *Writer) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// Close releases idle connections.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

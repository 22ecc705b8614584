package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"alertlens/internal/llm"
	"alertlens/internal/logger"
)

// DefaultRetryDelay is the pause between failed attempts.
const DefaultRetryDelay = 2 * time.Second

var (
	// ErrBusy is returned when Run is called on a loop that is already running.
	ErrBusy = errors.New("extraction loop already running")
	// ErrAttemptsExhausted is returned when MaxAttempts is reached.
	ErrAttemptsExhausted = errors.New("extraction attempts exhausted")
)

// State is the position of a Loop in its retry cycle.
type State int

const (
	Pending State = iota
	Validating
	Succeeded
	FailedRetryable
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Validating:
		return "validating"
	case Succeeded:
		return "succeeded"
	case FailedRetryable:
		return "failed_retryable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of a Loop.
type Status struct {
	State    State
	Attempts int
	LastErr  error
}

// Options tune a Loop.
type Options struct {
	// Label names the loop in log lines.
	Label string
	// RetryDelay defaults to DefaultRetryDelay.
	RetryDelay time.Duration
	// MaxAttempts caps attempts; zero retries until the context ends.
	MaxAttempts int
	// OnAttempt, if set, is called after every attempt with its outcome.
	OnAttempt func(err error)
}

// Loop re-issues one prompt until its response parses. It is safe to call
// Status from other goroutines while Run is in progress.
type Loop[T any] struct {
	backend llm.Backend
	prompt  string
	parse   func(string) (T, error)
	opts    Options

	run    sync.Mutex
	mu     sync.Mutex
	status Status
}

// NewLoop creates a loop that sends prompt to backend and parses each
// response with parse.
func NewLoop[T any](backend llm.Backend, prompt string, parse func(string) (T, error), opts Options) *Loop[T] {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Label == "" {
		opts.Label = "extraction"
	}
	return &Loop[T]{backend: backend, prompt: prompt, parse: parse, opts: opts}
}

// Status returns the current state, attempt count and last failure.
func (l *Loop[T]) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loop[T]) set(state State, err error, attempt bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = state
	if attempt {
		l.status.Attempts++
	}
	if err != nil {
		l.status.LastErr = err
	}
}

// Run attempts until a response parses, the context ends, or MaxAttempts is
// reached. Each call starts from a fresh status.
func (l *Loop[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if !l.run.TryLock() {
		return zero, ErrBusy
	}
	defer l.run.Unlock()

	l.mu.Lock()
	l.status = Status{State: Pending}
	l.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		st := l.Status()
		if l.opts.MaxAttempts > 0 && st.Attempts >= l.opts.MaxAttempts {
			return zero, fmt.Errorf("%s: %w after %d attempts: %v", l.opts.Label, ErrAttemptsExhausted, st.Attempts, st.LastErr)
		}

		l.set(Pending, nil, true)
		v, err := l.attempt(ctx)
		if l.opts.OnAttempt != nil {
			l.opts.OnAttempt(err)
		}
		if err == nil {
			l.set(Succeeded, nil, false)
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			l.set(FailedRetryable, err, false)
			return zero, ctxErr
		}

		l.set(FailedRetryable, err, false)
		l.report(err)

		t := time.NewTimer(l.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Loop[T]) attempt(ctx context.Context) (T, error) {
	var zero T
	resp, err := l.backend.Complete(ctx, l.prompt)
	if err != nil {
		return zero, err
	}
	l.set(Validating, nil, false)
	return l.parse(resp)
}

func (l *Loop[T]) report(err error) {
	attempts := l.Status().Attempts
	logger.Warnf("%s failed (attempt %d): %v; retrying in %s", l.opts.Label, attempts, err, l.opts.RetryDelay)

	var be *llm.BackendError
	if errors.As(err, &be) && attempts == 1 {
		logger.Warnf("%s", strings.Join(be.Suggestions(), " "))
	}
}

// Extract prompts backend until a response contains a value of shape that
// decodes as T and passes validate.
func Extract[T any](ctx context.Context, backend llm.Backend, prompt string, shape Shape, validate Validator[T], opts Options) (T, error) {
	loop := NewLoop(backend, prompt, func(resp string) (T, error) {
		return Parse(resp, shape, validate)
	}, opts)
	return loop.Run(ctx)
}

// Text accepts any response that is not blank after trimming.
func Text(resp string) (string, error) {
	s := strings.TrimSpace(resp)
	if s == "" {
		return "", errors.New("empty response")
	}
	return s, nil
}

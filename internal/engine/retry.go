package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryPolicy is a fixed attempt budget with linear delays: the wait before
// attempt n+1 is BaseDelay*n.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

var (
	fetchPolicy = retryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
	webidPolicy = retryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond}
)

type phase int

const (
	phaseAttempting phase = iota
	phaseSucceeded
	phaseExhausted // transient failures used the whole budget
	phaseFailed    // permanent failure, no retry
)

func (p phase) String() string {
	switch p {
	case phaseAttempting:
		return "attempting"
	case phaseSucceeded:
		return "succeeded"
	case phaseExhausted:
		return "exhausted"
	case phaseFailed:
		return "failed"
	}
	return "unknown"
}

// retryState is one point in the retry lifecycle. Attempt counts attempts
// made so far (the one in flight while Attempting).
type retryState struct {
	Phase   phase
	Attempt int
	Err     error
}

func (p retryPolicy) start() retryState {
	return retryState{Phase: phaseAttempting, Attempt: 1}
}

// next is the transition function. It is pure: the outcome of the current
// attempt decides the next state.
func (p retryPolicy) next(s retryState, err error) retryState {
	if s.Phase != phaseAttempting {
		return s
	}
	switch {
	case err == nil:
		return retryState{Phase: phaseSucceeded, Attempt: s.Attempt}
	case !isRetryable(err):
		return retryState{Phase: phaseFailed, Attempt: s.Attempt, Err: err}
	case s.Attempt >= p.MaxAttempts:
		return retryState{Phase: phaseExhausted, Attempt: s.Attempt, Err: err}
	default:
		return retryState{Phase: phaseAttempting, Attempt: s.Attempt + 1, Err: err}
	}
}

// backOff returns the delay schedule for p.
func (p retryPolicy) backOff() backoff.BackOff {
	return &linearBackOff{base: p.BaseDelay, max: p.MaxAttempts}
}

// linearBackOff yields base, 2*base, ... and then backoff.Stop once every
// attempt of the budget has had its delay.
type linearBackOff struct {
	base time.Duration
	max  int
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	if b.n >= b.max {
		return backoff.Stop
	}
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runRetry drives attempt through the policy. It returns the last value and
// the terminal state.
func runRetry[T any](ctx context.Context, p retryPolicy, sleep sleepFunc, log *slog.Logger, attempt func(n int) (T, error)) (T, retryState) {
	bo := p.backOff()
	state := p.start()
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, retryState{Phase: phaseFailed, Attempt: state.Attempt - 1, Err: err}
		}

		v, err := attempt(state.Attempt)
		state = p.next(state, err)
		if state.Phase != phaseAttempting {
			return v, state
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			var zero T
			return zero, retryState{Phase: phaseExhausted, Attempt: state.Attempt - 1, Err: err}
		}
		log.Debug("retrying", slog.Int("attempt", state.Attempt), slog.Duration("wait", wait), slog.Any("error", err))
		metrics.Retries.Add(1)
		if err := sleep(ctx, wait); err != nil {
			var zero T
			return zero, retryState{Phase: phaseFailed, Attempt: state.Attempt - 1, Err: err}
		}
	}
}

// errUndecodable marks a 200 response whose body is not the expected JSON.
var errUndecodable = errors.New("undecodable response body")

// isRetryable returns true for transient errors worth retrying.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var signErr *SignerError
	if errors.As(err, &signErr) {
		return false
	}

	// Upstream rejections: any non-2xx, an empty body, a body that is not JSON.
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	if errors.Is(err, ErrEmptyBody) || errors.Is(err, errUndecodable) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// Connection errors (dial failures, connection refused, etc.)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Timeout errors (net.Error includes OpError, so check after OpError)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

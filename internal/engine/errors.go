package engine

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a fetch produced no value.
type FailureKind string

const (
	FailTransient FailureKind = "transient" // network-level error on the final attempt
	FailUpstream  FailureKind = "upstream"  // non-2xx, empty body or undecodable JSON
	FailSigner    FailureKind = "signer"
	FailPermanent FailureKind = "permanent" // non-retryable transport or build error
	FailCanceled  FailureKind = "canceled"
)

// ErrEmptyBody is the upstream's way of rejecting a request it does not like.
var ErrEmptyBody = errors.New("empty response body")

// FetchError is returned by the *Result fetch variants.
type FetchError struct {
	Kind     FailureKind
	URI      string
	Status   int // last HTTP status, 0 if none was received
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s after %d attempt(s), status %d: %v", e.URI, e.Kind, e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", e.URI, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is an upstream response with a non-2xx status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string { return fmt.Sprintf("upstream status %d", e.Status) }

// SignerError wraps a failure of the signing capability. It is never retried.
type SignerError struct {
	URI string
	Err error
}

func (e *SignerError) Error() string { return fmt.Sprintf("sign %s: %v", e.URI, e.Err) }
func (e *SignerError) Unwrap() error { return e.Err }

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isUpstreamRejection(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) || errors.Is(err, ErrEmptyBody) || errors.Is(err, errUndecodable)
}

package stt

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a provider call did not produce a transcript
type Kind string

const (
	KindNone      Kind = ""
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindMalformed Kind = "malformed"
	KindProvider  Kind = "provider"
	KindEmpty     Kind = "empty"
	KindUnknown   Kind = "unknown"
)

// ErrNoCandidates is returned when the provider answered without any
// transcript candidate.
var ErrNoCandidates = errors.New("provider returned no candidates")

// Error is a classified provider failure
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func networkError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func malformedError(op string, err error) error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

func providerError(op string, format string, args ...any) error {
	return &Error{Kind: KindProvider, Op: op, Err: fmt.Errorf(format, args...)}
}

// Classify maps any error returned by a Provider to a Kind
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrNoCandidates) {
		return KindEmpty
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether another attempt might succeed
func Retryable(kind Kind) bool {
	return kind == KindNetwork || kind == KindTimeout
}

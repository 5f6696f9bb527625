package svcerr

// Typed errors for calls that leave the process (embedding endpoint, vector
// db, LLM api). Callers use IsTransient to decide whether a retry is worth it
// instead of matching on message strings.

import (
	"context"
	"errors"
	"fmt"
)

// External - A failed call to an external service. Transient marks failures
// that may succeed on retry (timeouts, ratelimits, 5xx).
type External struct {
	Service   string
	Op        string
	Transient bool
	Err       error
}

func (e *External) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *External) Unwrap() error {
	return e.Err
}

// Wrap - Tag err as an external failure of service/op.
func Wrap(service, op string, transient bool, err error) error {
	if err == nil {
		return nil
	}
	// deadline and cancellation are always worth classifying as transient
	if errors.Is(err, context.DeadlineExceeded) {
		transient = true
	}
	return &External{Service: service, Op: op, Transient: transient, Err: err}
}

// IsTransient reports whether err (anywhere in its chain) is a retryable
// external failure.
func IsTransient(err error) bool {
	var ext *External
	if errors.As(err, &ext) {
		return ext.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

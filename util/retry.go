package util

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds one logical call: at most Attempts tries, Interval
// apart, each try limited to Timeout. Callers wait out Interval themselves,
// normally on a delay queue.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts: 10,
	Interval: 1000 * time.Millisecond,
	Timeout:  30 * time.Second,
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err so that Retry refuses it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry reports whether a call that failed with err on attempt, counted
// from 1, may be tried again.
func (p RetryPolicy) Retry(err error, attempt int) bool {
	return err != nil && !IsPermanent(err) && attempt < p.Attempts
}

// Try runs fn once, limited to Timeout.
func (p RetryPolicy) Try(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

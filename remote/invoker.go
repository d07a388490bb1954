package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrServiceNotFound = errors.New("remote service not found")

// Filter narrows a service call to a set of fitable implementations. An
// empty filter lets the broker pick.
type Filter struct {
	FitableIDs []string
}

// Result is either a value or an error, never both.
type Result struct {
	Value any
	Err   error
}

func (r Result) Ok() bool {
	return r.Err == nil
}

type Invoker interface {
	Invoke(ctx context.Context, serviceID string, filter Filter, payload any) Result
	InvokeAsync(ctx context.Context, serviceID string, filter Filter, payload any) <-chan Result
}

// Error is a failed remote invocation.
type Error struct {
	ServiceID string
	Code      codes.Code
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invoke %s failed: %s: %s", e.ServiceID, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.Code, e.Message)
	d := &errdetails.LocalizedMessage{
		Locale:  "en-US",
		Message: e.Message,
	}
	std, err := st.WithDetails(d)
	if err != nil {
		return st
	}
	return std
}

func newError(serviceID string, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	code := codes.Unknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, ErrServiceNotFound):
		code = codes.NotFound
	}
	return &Error{ServiceID: serviceID, Code: code, Message: err.Error(), Cause: err}
}

// fromStatus translates a gRPC status, preferring the localized message
// detail when the server sent one.
func fromStatus(serviceID string, err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return newError(serviceID, err)
	}
	e := &Error{ServiceID: serviceID, Code: st.Code(), Message: st.Message(), Cause: err}
	for _, d := range st.Details() {
		if lm, ok := d.(*errdetails.LocalizedMessage); ok {
			e.Message = lm.Message
		}
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		e.Cause = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case codes.NotFound:
		e.Cause = fmt.Errorf("%w: %v", ErrServiceNotFound, err)
	}
	return e
}

func async(ctx context.Context, inv Invoker, serviceID string, filter Filter, payload any) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- inv.Invoke(ctx, serviceID, filter, payload)
		close(ch)
	}()
	return ch
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/waterflow/model"
)

var ErrNotFound = errors.New("not found")

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type EmptyQueueError struct {
	QueueName string
}

func (e EmptyQueueError) Error() string {
	return fmt.Sprintf("queue %s is empty", e.QueueName)
}

// Repository stores contexts and traces. SaveContexts writes all given
// contexts atomically.
type Repository interface {
	SaveContexts(ctx context.Context, contexts ...*model.FlowContext) error
	GetContext(ctx context.Context, id string) (*model.FlowContext, error)
	ListContexts(ctx context.Context, traceId string) ([]*model.FlowContext, error)
	SaveTrace(ctx context.Context, trace *model.FlowTrace) error
	GetTrace(ctx context.Context, id string) (*model.FlowTrace, error)
}

// DelayQueue hands out messages once their delay has passed. Pop returns
// EmptyQueueError when nothing is due.
type DelayQueue interface {
	Push(ctx context.Context, queueName string, message []byte) error
	PushWithDelay(ctx context.Context, queueName string, delay time.Duration, message []byte) error
	Pop(ctx context.Context, queueName string) ([]string, error)
}

func IsEmptyQueue(err error) bool {
	var e EmptyQueueError
	return errors.As(err, &e)
}

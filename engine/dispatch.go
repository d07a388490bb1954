package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/persistence"
	"github.com/mohitkumar/waterflow/util"
	"go.uber.org/zap"
)

// CONTINUATION_QUEUE holds node work that could not run yet: retries waiting
// for their interval and continuations the worker pool rejected.
const CONTINUATION_QUEUE string = "continuations"

const KIND_ENTER string = "enter"
const KIND_RETRY string = "retry"
const KIND_CALLBACK string = "callback"

// schedule queues a NEW context for entering its node.
func (e *Engine) schedule(id string) {
	if _, err := e.write(e.ctx, id, statuses(model.NODE_STATUS_PENDING), nil); err != nil {
		e.writeFailed(id, err)
		return
	}
	e.submit(KIND_ENTER, id)
}

func (e *Engine) task(kind string, id string) util.Task {
	switch kind {
	case KIND_RETRY:
		return func() { e.process(id) }
	case KIND_CALLBACK:
		return func() { e.redeliver(id) }
	default:
		return func() { e.enter(id) }
	}
}

func (e *Engine) submit(kind string, id string) {
	err := e.pool.Submit(e.task(kind, id))
	switch {
	case err == nil:
	case errors.Is(err, util.ErrPoolSaturated):
		logger.Debug("pool saturated, delaying continuation", zap.String("kind", kind), zap.String("contextId", id))
		e.later(kind, id, e.tickInterval)
	default:
		logger.Warn("continuation dropped", zap.String("kind", kind), zap.String("contextId", id), zap.Error(err))
	}
}

func (e *Engine) later(kind string, id string, delay time.Duration) {
	msg := []byte(kind + ":" + id)
	if err := e.delay.PushWithDelay(e.ctx, CONTINUATION_QUEUE, delay, msg); err != nil {
		logger.Error("error queueing continuation", zap.String("kind", kind), zap.String("contextId", id), zap.Error(err))
	}
}

// poll hands due continuations back to the worker pool.
func (e *Engine) poll() {
	msgs, err := e.delay.Pop(e.ctx, CONTINUATION_QUEUE)
	if err != nil {
		if !persistence.IsEmptyQueue(err) {
			logger.Error("error polling continuations", zap.Error(err))
		}
		return
	}
	for _, msg := range msgs {
		kind, id, ok := strings.Cut(msg, ":")
		if !ok {
			logger.Warn("malformed continuation", zap.String("message", msg))
			continue
		}
		e.submit(kind, id)
	}
}

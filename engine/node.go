package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohitkumar/waterflow/flow"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"go.uber.org/zap"
)

func statuses(s ...model.FlowNodeStatus) []model.FlowNodeStatus {
	return s
}

// enter moves a PENDING context onto its node.
func (e *Engine) enter(id string) {
	ctx := e.ctx
	fc, err := e.repo.GetContext(ctx, id)
	if err != nil {
		logger.Error("error loading context", zap.String("contextId", id), zap.Error(err))
		return
	}
	if e.isTerminated(ctx, fc.TraceId) {
		e.terminateContext(ctx, id)
		return
	}
	fc, err = e.write(ctx, id, statuses(model.NODE_STATUS_READY), nil)
	if err != nil {
		e.writeFailed(id, err)
		return
	}
	_, node, err := e.locate(fc)
	if err != nil {
		e.fail(ctx, fc, err)
		return
	}
	if node.Type == model.NODE_TYPE_JOIN && !fc.ContextData.Joined {
		e.sync.arrive(ctx, fc, node)
		return
	}
	if node.IsManual() {
		logger.Info("context waiting for resume",
			zap.String("traceId", fc.TraceId),
			zap.String("contextId", fc.Id),
			zap.String("nodeId", node.Id))
		return
	}
	e.process(id)
}

// process moves a context onto PROCESSING and runs the work of its node.
func (e *Engine) process(id string) {
	fc, err := e.write(e.ctx, id, statuses(model.NODE_STATUS_PROCESSING), nil)
	if err != nil {
		e.writeFailed(id, err)
		return
	}
	e.work(e.ctx, fc)
}

// work runs the jober of the node a PROCESSING context is on, then its
// callbacks.
func (e *Engine) work(ctx context.Context, fc *model.FlowContext) {
	def, node, err := e.locate(fc)
	if err != nil {
		e.fail(ctx, fc, err)
		return
	}
	data := model.CloneData(fc.BusinessData)
	if node.Jober != nil {
		output, err := e.runJober(ctx, fc, node)
		if err != nil {
			e.joberFailed(ctx, fc, err)
			return
		}
		applyOutput(data, node.Id, output)
	}
	e.deliver(ctx, fc, def, node, data, model.Delivery{Attempt: 1})
}

// deliver dispatches the callbacks of node starting at from. A failed attempt
// with budget left is saved on the context and continued from the
// continuation queue, so no worker waits out the retry interval.
func (e *Engine) deliver(ctx context.Context, fc *model.FlowContext, def *flow.Definition, node *flow.Node, data map[string]any, from model.Delivery) {
	for i := from.Callback; i < len(node.Callbacks); i++ {
		attempt := 1
		if i == from.Callback {
			attempt = from.Attempt
		}
		if e.isTerminated(ctx, fc.TraceId) {
			e.dropResult(ctx, fc)
			return
		}
		view := fc.Clone()
		view.BusinessData = data
		res, retry, err := e.callbacks.Dispatch(ctx, node.Callbacks[i], view, attempt)
		if retry {
			next := model.Delivery{Callback: i, Attempt: attempt + 1}
			_, err := e.write(ctx, fc.Id, nil, func(fc *model.FlowContext) {
				fc.BusinessData = data
				fc.Delivery = &next
			})
			if err != nil {
				e.writeFailed(fc.Id, err)
				return
			}
			e.later(KIND_CALLBACK, fc.Id, e.policy.Interval)
			return
		}
		if err != nil {
			e.fail(ctx, fc, err)
			return
		}
		if res != nil {
			model.MergeData(data, model.WithoutInternal(res))
		}
	}
	e.finish(ctx, fc, def, node, data)
}

// redeliver continues the callbacks of a context after a failed attempt.
func (e *Engine) redeliver(id string) {
	ctx := e.ctx
	fc, err := e.repo.GetContext(ctx, id)
	if err != nil {
		logger.Error("error loading context", zap.String("contextId", id), zap.Error(err))
		return
	}
	if fc.Status != model.NODE_STATUS_PROCESSING || fc.Delivery == nil {
		logger.Debug("no callback pending",
			zap.String("contextId", id),
			zap.String("status", string(fc.Status)))
		return
	}
	def, node, err := e.locate(fc)
	if err != nil {
		e.fail(ctx, fc, err)
		return
	}
	e.deliver(ctx, fc, def, node, model.CloneData(fc.BusinessData), *fc.Delivery)
}

// finish archives fc with data and schedules its successors.
func (e *Engine) finish(ctx context.Context, fc *model.FlowContext, def *flow.Definition, node *flow.Node, data map[string]any) {
	if e.isTerminated(ctx, fc.TraceId) {
		e.dropResult(ctx, fc)
		return
	}
	next, err := e.route(fc, def, node, data)
	if err != nil {
		e.fail(ctx, fc, err)
		return
	}
	if len(next) > 0 {
		if err := e.repo.SaveContexts(ctx, next...); err != nil {
			e.fail(ctx, fc, err)
			return
		}
	}
	archived, err := e.write(ctx, fc.Id, statuses(model.NODE_STATUS_ARCHIVED), func(fc *model.FlowContext) {
		fc.BusinessData = data
		fc.ErrorMessage = ""
		fc.Delivery = nil
	})
	if err != nil {
		e.writeFailed(fc.Id, err)
		for _, n := range next {
			e.terminateContext(ctx, n.Id)
		}
		return
	}
	e.collector.RecordNodeSuccess(record(archived), data)
	for _, n := range next {
		e.schedule(n.Id)
	}
}

func (e *Engine) dropResult(ctx context.Context, fc *model.FlowContext) {
	logger.Info("dropping result of terminated trace",
		zap.String("traceId", fc.TraceId),
		zap.String("contextId", fc.Id))
	e.terminateContext(ctx, fc.Id)
}

func (e *Engine) runJober(ctx context.Context, fc *model.FlowContext, node *flow.Node) (map[string]any, error) {
	executor, err := e.registry.Executor(node.Jober)
	if err != nil {
		return nil, err
	}
	task := jober.Task{
		TraceId:      fc.TraceId,
		ContextId:    fc.Id,
		NodeId:       node.Id,
		BusinessData: model.CloneData(fc.BusinessData),
	}
	var output map[string]any
	err = e.policy.Try(ctx, func(ctx context.Context) error {
		var err error
		output, err = executor.Execute(ctx, task)
		return err
	})
	if err != nil {
		logger.Warn("jober attempt failed",
			zap.String("traceId", fc.TraceId),
			zap.String("contextId", fc.Id),
			zap.String("jober", node.Jober.Name),
			zap.Int("retryCount", fc.RetryCount),
			zap.Error(err))
	}
	return output, err
}

// joberFailed records a failed jober attempt. While the retry budget lasts
// the context goes through ERROR to RETRYABLE and is processed again later.
func (e *Engine) joberFailed(ctx context.Context, fc *model.FlowContext, cause error) {
	if !e.policy.Retry(cause, fc.RetryCount+1) || e.isTerminated(ctx, fc.TraceId) {
		e.fail(ctx, fc, cause)
		return
	}
	_, err := e.write(ctx, fc.Id, statuses(model.NODE_STATUS_ERROR, model.NODE_STATUS_RETRYABLE), func(fc *model.FlowContext) {
		fc.RetryCount++
		fc.ErrorMessage = cause.Error()
	})
	if err != nil {
		e.writeFailed(fc.Id, err)
		return
	}
	e.later(KIND_RETRY, fc.Id, e.policy.Interval)
}

// fail moves fc to ERROR. A failed fork branch is reported to its join.
func (e *Engine) fail(ctx context.Context, fc *model.FlowContext, cause error) {
	failed, err := e.write(ctx, fc.Id, statuses(model.NODE_STATUS_ERROR), func(fc *model.FlowContext) {
		fc.ErrorMessage = cause.Error()
	})
	if err != nil {
		e.writeFailed(fc.Id, err)
		return
	}
	logger.Error("context failed",
		zap.String("traceId", failed.TraceId),
		zap.String("contextId", failed.Id),
		zap.String("nodeId", failed.Position),
		zap.Error(cause))
	e.collector.RecordNodeFailure(record(failed), cause.Error())
	if frame, ok := failed.ContextData.TopFork(); ok {
		e.sync.branchFailed(ctx, failed, frame, cause)
	}
}

func (e *Engine) writeFailed(id string, err error) {
	if errors.Is(err, errContextTerminated) {
		logger.Debug("context already terminated", zap.String("contextId", id))
		return
	}
	logger.Error("error writing context", zap.String("contextId", id), zap.Error(err))
}

// route creates the successors of fc after node succeeded with data.
func (e *Engine) route(fc *model.FlowContext, def *flow.Definition, node *flow.Node, data map[string]any) ([]*model.FlowContext, error) {
	switch {
	case node.Type == model.NODE_TYPE_END:
		return nil, nil
	case node.Type == model.NODE_TYPE_CONDITION:
		var fallback *flow.Edge
		for _, edge := range node.Out {
			if edge.IsDefault() {
				if fallback == nil {
					fallback = edge
				}
				continue
			}
			if edge.Condition.Evaluate(data) {
				return []*model.FlowContext{e.successor(fc, edge.To, data, fc.ContextData.Clone())}, nil
			}
		}
		if fallback != nil {
			return []*model.FlowContext{e.successor(fc, fallback.To, data, fc.ContextData.Clone())}, nil
		}
		return nil, fmt.Errorf("%w: node %s of %s", ErrNoBranchMatched, node.Id, def.Id)
	case node.Type.IsFanOut():
		mode := node.Mode
		if join, ok := def.Node(node.JoinNodeId); ok && len(join.Mode) > 0 {
			mode = join.Mode
		}
		next := make([]*model.FlowContext, 0, len(node.Out))
		for i, edge := range node.Out {
			cd := fc.ContextData.Clone()
			cd.Joined = false
			cd.MergedFrom = nil
			cd.Forks = append(cd.Forks, model.ForkFrame{
				ForkContextId: fc.Id,
				ForkNodeId:    node.Id,
				JoinNodeId:    node.JoinNodeId,
				Branch:        i,
				Branches:      len(node.Out),
				Mode:          mode,
			})
			next = append(next, e.successor(fc, edge.To, data, cd))
		}
		return next, nil
	}
	if len(node.Out) == 0 {
		return nil, nil
	}
	cd := fc.ContextData.Clone()
	cd.Joined = false
	cd.MergedFrom = nil
	return []*model.FlowContext{e.successor(fc, node.Out[0].To, data, cd)}, nil
}

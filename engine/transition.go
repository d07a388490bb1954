package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/status"
	"go.uber.org/zap"
)

// write moves context id through targets in order. Every step is checked
// against the transition table but only the final state is persisted. mutate,
// when set, runs on the loaded context before it is saved. With no targets
// the context keeps its status.
func (e *Engine) write(ctx context.Context, id string, targets []model.FlowNodeStatus, mutate func(fc *model.FlowContext)) (*model.FlowContext, error) {
	return e.writeIf(ctx, id, nil, targets, mutate)
}

// writeIf is write guarded by expect, which sees the loaded context under
// its lane and can refuse the write with an error of its own.
func (e *Engine) writeIf(ctx context.Context, id string, expect func(fc *model.FlowContext) error, targets []model.FlowNodeStatus, mutate func(fc *model.FlowContext)) (*model.FlowContext, error) {
	unlock := e.lanes.lock(id)
	fc, err := e.repo.GetContext(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if fc.Status == model.NODE_STATUS_TERMINATE {
		unlock()
		return nil, errContextTerminated
	}
	if expect != nil {
		if err := expect(fc); err != nil {
			unlock()
			return nil, err
		}
	}
	current := fc.Status
	for _, target := range targets {
		if err := e.table.Check(fc.Id, current, target); err != nil {
			unlock()
			analytics.RecordTransition(ctx, string(target), false)
			logger.Error("status transition denied",
				zap.String("traceId", fc.TraceId),
				zap.String("contextId", fc.Id),
				zap.String("current", string(current)),
				zap.String("target", string(target)))
			return nil, err
		}
		analytics.RecordTransition(ctx, string(target), true)
		current = target
	}
	if mutate != nil {
		mutate(fc)
	}
	now := e.now()
	fc.Status = current
	fc.UpdateAt = now
	if current == model.NODE_STATUS_ARCHIVED {
		fc.ArchivedAt = &now
	}
	err = e.repo.SaveContexts(ctx, fc)
	unlock()
	if err != nil {
		return nil, err
	}
	logger.Debug("context status written",
		zap.String("traceId", fc.TraceId),
		zap.String("contextId", fc.Id),
		zap.String("position", fc.Position),
		zap.String("status", string(current)))
	e.refreshTrace(ctx, fc.TraceId)
	return fc, nil
}

// refreshTrace recomputes the trace status from its contexts and wakes up
// anyone waiting on it.
func (e *Engine) refreshTrace(ctx context.Context, traceID string) {
	unlock := e.lanes.lock(traceID)
	trace, err := e.repo.GetTrace(ctx, traceID)
	if err != nil {
		unlock()
		logger.Error("error loading trace", zap.String("traceId", traceID), zap.Error(err))
		return
	}
	contexts, err := e.repo.ListContexts(ctx, traceID)
	if err != nil {
		unlock()
		logger.Error("error listing contexts", zap.String("traceId", traceID), zap.Error(err))
		return
	}
	ids := make([]string, 0, len(contexts))
	states := make([]status.ContextState, 0, len(contexts))
	for _, fc := range contexts {
		ids = append(ids, fc.Id)
		states = append(states, status.ContextState{Id: fc.Id, Status: fc.Status, Previous: fc.Previous})
	}
	previous := trace.Status
	trace.ContextIds = ids
	trace.Status = status.ReduceTrace(trace.Terminated, states)
	if trace.Status.IsTerminal() && trace.EndTime == nil {
		end := e.now()
		trace.EndTime = &end
	}
	err = e.repo.SaveTrace(ctx, trace)
	unlock()
	if err != nil {
		logger.Error("error saving trace", zap.String("traceId", traceID), zap.Error(err))
		return
	}
	if previous != trace.Status {
		logger.Info("trace status changed",
			zap.String("traceId", traceID),
			zap.String("from", string(previous)),
			zap.String("to", string(trace.Status)))
	}
	e.notify(traceID)
}

func (e *Engine) newContext(traceID, definitionID, position string, data map[string]any, cd model.ContextData, previous []string) *model.FlowContext {
	now := e.now()
	return &model.FlowContext{
		Id:           uuid.NewString(),
		TraceId:      traceID,
		DefinitionId: definitionID,
		Position:     position,
		BusinessData: data,
		ContextData:  cd,
		Status:       model.NODE_STATUS_NEW,
		Previous:     previous,
		CreateAt:     now,
		UpdateAt:     now,
	}
}

// successor creates the context that follows fc onto node to.
func (e *Engine) successor(fc *model.FlowContext, to string, data map[string]any, cd model.ContextData) *model.FlowContext {
	return e.newContext(fc.TraceId, fc.DefinitionId, to, model.CloneData(data), cd, []string{fc.Id})
}

// applyOutput merges a node output into data and records it in the output
// scope of the node.
func applyOutput(data map[string]any, nodeID string, output map[string]any) {
	if output == nil {
		return
	}
	clean := model.WithoutInternal(output)
	model.MergeData(data, clean)
	model.SetNodeOutput(data, nodeID, clean)
}

func record(fc *model.FlowContext) analytics.NodeRecord {
	return analytics.NodeRecord{
		DefinitionId: fc.DefinitionId,
		TraceId:      fc.TraceId,
		ContextId:    fc.Id,
		NodeId:       fc.Position,
	}
}

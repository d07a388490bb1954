package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mohitkumar/waterflow/flow"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"go.uber.org/zap"
)

type groupKey struct {
	traceId       string
	joinNodeId    string
	forkContextId string
}

type joinGroup struct {
	frame   model.ForkFrame
	arrived map[int]*model.FlowContext
	failed  []string
	settled int
	done    bool
}

// synchronizer gathers the branches of a fork at their JOIN.
type synchronizer struct {
	engine *Engine
	mu     sync.Mutex
	groups map[groupKey]*joinGroup
}

func newSynchronizer(e *Engine) *synchronizer {
	return &synchronizer{
		engine: e,
		groups: make(map[groupKey]*joinGroup),
	}
}

func keyOf(traceID string, frame model.ForkFrame) groupKey {
	return groupKey{traceId: traceID, joinNodeId: frame.JoinNodeId, forkContextId: frame.ForkContextId}
}

func (s *synchronizer) group(key groupKey, frame model.ForkFrame) *joinGroup {
	g, ok := s.groups[key]
	if !ok {
		g = &joinGroup{frame: frame, arrived: make(map[int]*model.FlowContext)}
		s.groups[key] = g
	}
	return g
}

// settle counts one branch as finished and forgets the group once every
// branch has.
func (s *synchronizer) settle(key groupKey, g *joinGroup) {
	g.settled++
	if g.settled >= g.frame.Branches {
		delete(s.groups, key)
	}
}

// forget drops every group of a terminated trace.
func (s *synchronizer) forget(traceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.groups {
		if key.traceId == traceID {
			delete(s.groups, key)
		}
	}
}

// arrive registers a READY branch context at its JOIN.
func (s *synchronizer) arrive(ctx context.Context, fc *model.FlowContext, node *flow.Node) {
	frame, ok := fc.ContextData.TopFork()
	if !ok || frame.JoinNodeId != node.Id {
		s.engine.fail(ctx, fc, fmt.Errorf("%w: %s at %s", ErrUnmatchedJoin, fc.Id, node.Id))
		return
	}
	key := keyOf(fc.TraceId, frame)

	s.mu.Lock()
	g := s.group(key, frame)
	s.settle(key, g)
	if g.done {
		s.mu.Unlock()
		s.discard(ctx, fc)
		return
	}
	var arrivals []*model.FlowContext
	switch frame.Mode {
	case model.PARALLEL_MODE_EITHER:
		g.done = true
		arrivals = []*model.FlowContext{fc}
	default:
		g.arrived[frame.Branch] = fc
		if len(g.arrived) == frame.Branches {
			g.done = true
			arrivals = sortedArrivals(g.arrived)
		}
	}
	s.mu.Unlock()

	if arrivals == nil {
		logger.Debug("branch waiting at join",
			zap.String("traceId", fc.TraceId),
			zap.String("contextId", fc.Id),
			zap.String("joinNodeId", node.Id),
			zap.Int("branch", frame.Branch))
		return
	}
	s.merge(ctx, node, arrivals)
}

// merge creates the context that continues at the JOIN from the arrivals,
// merging their business data in branch order.
func (s *synchronizer) merge(ctx context.Context, node *flow.Node, arrivals []*model.FlowContext) {
	e := s.engine
	first := arrivals[0]
	data := make(map[string]any)
	ids := make([]string, 0, len(arrivals))
	for _, fc := range arrivals {
		model.MergeData(data, fc.BusinessData)
		ids = append(ids, fc.Id)
	}
	cd := first.ContextData.Clone()
	cd.Forks = cd.Forks[:len(cd.Forks)-1]
	cd.Joined = true
	cd.MergedFrom = ids
	merged := e.newContext(first.TraceId, first.DefinitionId, node.Id, data, cd, append([]string(nil), ids...))
	if err := e.repo.SaveContexts(ctx, merged); err != nil {
		logger.Error("error saving merged context", zap.String("traceId", first.TraceId), zap.Error(err))
		for _, fc := range arrivals {
			e.fail(ctx, fc, err)
		}
		return
	}
	for _, fc := range arrivals {
		if _, err := e.write(ctx, fc.Id, statuses(model.NODE_STATUS_ARCHIVED), nil); err != nil {
			e.writeFailed(fc.Id, err)
		}
	}
	logger.Info("branches joined",
		zap.String("traceId", first.TraceId),
		zap.String("joinNodeId", node.Id),
		zap.String("contextId", merged.Id),
		zap.Strings("mergedFrom", ids))
	e.schedule(merged.Id)
}

// discard archives a branch that reached a JOIN which already fired or failed.
func (s *synchronizer) discard(ctx context.Context, fc *model.FlowContext) {
	_, err := s.engine.write(ctx, fc.Id, statuses(model.NODE_STATUS_ARCHIVED), func(fc *model.FlowContext) {
		fc.ContextData.Discarded = true
	})
	if err != nil {
		s.engine.writeFailed(fc.Id, err)
		return
	}
	logger.Info("late branch discarded",
		zap.String("traceId", fc.TraceId),
		zap.String("contextId", fc.Id),
		zap.String("joinNodeId", fc.Position))
}

// branchFailed is called once fc, a branch of frame, is in terminal ERROR.
// An ALL join fails right away. An EITHER join fails only when no branch
// can reach it anymore.
func (s *synchronizer) branchFailed(ctx context.Context, fc *model.FlowContext, frame model.ForkFrame, cause error) {
	key := keyOf(fc.TraceId, frame)

	s.mu.Lock()
	g := s.group(key, frame)
	s.settle(key, g)
	if g.done {
		s.mu.Unlock()
		return
	}
	g.failed = append(g.failed, fc.Id)
	var buffered []*model.FlowContext
	var previous []string
	switch frame.Mode {
	case model.PARALLEL_MODE_EITHER:
		if len(g.failed) == frame.Branches {
			g.done = true
			previous = append([]string(nil), g.failed...)
		}
	default:
		g.done = true
		buffered = sortedArrivals(g.arrived)
		previous = []string{fc.Id}
	}
	s.mu.Unlock()

	if previous == nil {
		return
	}
	for _, b := range buffered {
		s.discard(ctx, b)
	}
	s.joinFailed(ctx, fc, frame, previous, cause)
}

// joinFailed creates an ERROR context at the JOIN of frame and reports it to
// the enclosing fork.
func (s *synchronizer) joinFailed(ctx context.Context, fc *model.FlowContext, frame model.ForkFrame, previous []string, cause error) {
	e := s.engine
	cd := fc.ContextData.Clone()
	cd.Forks = cd.Forks[:len(cd.Forks)-1]
	cd.Joined = true
	errCtx := e.newContext(fc.TraceId, fc.DefinitionId, frame.JoinNodeId, model.CloneData(fc.BusinessData), cd, previous)
	if err := e.table.Check(errCtx.Id, errCtx.Status, model.NODE_STATUS_ERROR); err != nil {
		logger.Error("error failing join", zap.String("traceId", fc.TraceId), zap.Error(err))
		return
	}
	joinErr := fmt.Errorf("%w: branch %s of %s: %v", ErrJoinBranchFailed, fc.Id, frame.ForkNodeId, cause)
	errCtx.Status = model.NODE_STATUS_ERROR
	errCtx.ErrorMessage = joinErr.Error()
	if err := e.repo.SaveContexts(ctx, errCtx); err != nil {
		logger.Error("error saving failed join", zap.String("traceId", fc.TraceId), zap.Error(err))
		return
	}
	logger.Error("join failed",
		zap.String("traceId", fc.TraceId),
		zap.String("joinNodeId", frame.JoinNodeId),
		zap.String("contextId", errCtx.Id),
		zap.Error(joinErr))
	e.collector.RecordNodeFailure(record(errCtx), joinErr.Error())
	e.refreshTrace(ctx, fc.TraceId)
	if outer, ok := cd.TopFork(); ok {
		s.branchFailed(ctx, errCtx, outer, joinErr)
	}
}

func sortedArrivals(arrived map[int]*model.FlowContext) []*model.FlowContext {
	branches := make([]int, 0, len(arrived))
	for b := range arrived {
		branches = append(branches, b)
	}
	sort.Ints(branches)
	out := make([]*model.FlowContext, 0, len(branches))
	for _, b := range branches {
		out = append(out, arrived[b])
	}
	return out
}

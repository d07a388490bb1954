package status

import (
	"testing"

	"github.com/mohitkumar/waterflow/model"
	"github.com/stretchr/testify/require"
)

func ctxState(id string, st model.FlowNodeStatus, previous ...string) ContextState {
	return ContextState{Id: id, Status: st, Previous: previous}
}

func TestReduceTrace(t *testing.T) {
	for scenario, tc := range map[string]struct {
		terminated bool
		contexts   []ContextState
		expected   model.FlowTraceStatus
	}{
		"no contexts": {
			expected: model.TRACE_STATUS_READY,
		},
		"running leaf": {
			contexts: []ContextState{ctxState("a", S.Archived), ctxState("b", S.Processing, "a")},
			expected: model.TRACE_STATUS_RUNNING,
		},
		"retrying leaf is still running": {
			contexts: []ContextState{ctxState("a", S.Retryable)},
			expected: model.TRACE_STATUS_RUNNING,
		},
		"linear success": {
			contexts: []ContextState{ctxState("a", S.Archived), ctxState("b", S.Archived, "a")},
			expected: model.TRACE_STATUS_ARCHIVED,
		},
		"linear failure is a full error": {
			contexts: []ContextState{ctxState("a", S.Archived), ctxState("b", S.Error, "a")},
			expected: model.TRACE_STATUS_ERROR,
		},
		"one failed branch among successes": {
			contexts: []ContextState{
				ctxState("fork", S.Archived),
				ctxState("b1", S.Archived, "fork"),
				ctxState("b2", S.Error, "fork"),
				ctxState("b3", S.Archived, "fork"),
				ctxState("join-error", S.Error, "b2"),
			},
			expected: model.TRACE_STATUS_PARTIAL_ERROR,
		},
		"terminated wins": {
			terminated: true,
			contexts:   []ContextState{ctxState("a", S.Processing)},
			expected:   model.TRACE_STATUS_TERMINATE,
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.expected, ReduceTrace(tc.terminated, tc.contexts))
		})
	}
}

func TestReduceTraceIsOrderIndependent(t *testing.T) {
	contexts := []ContextState{
		ctxState("b", S.Error, "a"),
		ctxState("c", S.Archived, "a"),
		ctxState("a", S.Archived),
	}
	first := ReduceTrace(false, contexts)
	contexts[0], contexts[2] = contexts[2], contexts[0]
	require.Equal(t, first, ReduceTrace(false, contexts))
}

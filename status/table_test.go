package status

import (
	"errors"
	"testing"

	"github.com/mohitkumar/waterflow/model"
	"github.com/stretchr/testify/require"
)

var S = struct {
	New, Pending, Ready, Processing, Archived, Terminate, Error, Retryable model.FlowNodeStatus
}{
	model.NODE_STATUS_NEW, model.NODE_STATUS_PENDING, model.NODE_STATUS_READY,
	model.NODE_STATUS_PROCESSING, model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE,
	model.NODE_STATUS_ERROR, model.NODE_STATUS_RETRYABLE,
}

func TestTableIsTotal(t *testing.T) {
	table := NewTable()
	for _, target := range model.NodeStatuses() {
		_, ok := table.exclusions[target]
		require.True(t, ok, "no exclusion set for %s", target)
	}
}

func TestCanTransitionMatchesExclusions(t *testing.T) {
	table := NewTable()
	expected := map[model.FlowNodeStatus][]model.FlowNodeStatus{
		S.New:        {S.Pending, S.Ready, S.Processing, S.Archived, S.Terminate, S.Error, S.Retryable},
		S.Pending:    {S.Pending, S.Ready, S.Processing, S.Archived, S.Terminate, S.Error, S.Retryable},
		S.Ready:      {S.New, S.Ready, S.Processing, S.Archived, S.Terminate, S.Error, S.Retryable},
		S.Processing: {S.New, S.Pending, S.Processing, S.Archived, S.Terminate, S.Error},
		S.Archived:   {S.New, S.Pending, S.Archived, S.Terminate, S.Error, S.Retryable},
		S.Terminate:  {S.Terminate, S.Archived, S.Error},
		S.Error:      {S.Archived, S.Terminate, S.Error},
		S.Retryable:  {S.New, S.Pending, S.Ready, S.Processing, S.Archived, S.Terminate, S.Retryable},
	}
	for _, target := range model.NodeStatuses() {
		excluded := make(map[model.FlowNodeStatus]bool)
		for _, s := range expected[target] {
			excluded[s] = true
		}
		for _, current := range model.NodeStatuses() {
			require.Equal(t, !excluded[current], table.CanTransition(current, target),
				"%s -> %s", current, target)
		}
		require.ElementsMatch(t, expected[target], table.Excluded(target))
	}
}

func TestLifecycleIsLegal(t *testing.T) {
	table := NewTable()
	path := []model.FlowNodeStatus{S.New, S.Pending, S.Ready, S.Processing, S.Error, S.Retryable, S.Processing, S.Archived}
	for i := 1; i < len(path); i++ {
		require.NoError(t, table.Check("c1", path[i-1], path[i]))
	}
}

func TestTerminalStatusesAreSticky(t *testing.T) {
	table := NewTable()
	for scenario, fn := range map[string]func(t *testing.T){
		"archived context can not be terminated": func(t *testing.T) {
			require.False(t, table.CanTransition(S.Archived, S.Terminate))
		},
		"terminated context can not be terminated again": func(t *testing.T) {
			require.False(t, table.CanTransition(S.Terminate, S.Terminate))
		},
		"errored context can not be archived": func(t *testing.T) {
			require.False(t, table.CanTransition(S.Error, S.Archived))
		},
		"running context can be terminated": func(t *testing.T) {
			require.True(t, table.CanTransition(S.Processing, S.Terminate))
			require.True(t, table.CanTransition(S.Retryable, S.Terminate))
		},
		"errored context may retry": func(t *testing.T) {
			require.True(t, table.CanTransition(S.Error, S.Retryable))
			require.True(t, table.CanTransition(S.Retryable, S.Processing))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestCheckReturnsTransitionError(t *testing.T) {
	table := NewTable()
	err := table.Check("ctx-1", S.Archived, S.Terminate)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransitionDenied))
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "ctx-1", te.ContextId)
	require.Equal(t, S.Archived, te.Current)
	require.Equal(t, S.Terminate, te.Target)
}

func TestUnknownStatusIsNeverReachable(t *testing.T) {
	table := NewTable()
	require.False(t, table.CanTransition("BOGUS", S.Processing))
	require.False(t, table.CanTransition(S.New, "BOGUS"))
}

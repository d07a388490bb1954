package status

import (
	"errors"
	"fmt"

	"github.com/mohitkumar/waterflow/model"
)

var ErrTransitionDenied = errors.New("status transition denied")

// TransitionError is returned when a write would move a context into a
// status whose exclusion set contains the current status.
type TransitionError struct {
	ContextId string
	Current   model.FlowNodeStatus
	Target    model.FlowNodeStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("context %s: %s -> %s: %s", e.ContextId, e.Current, e.Target, ErrTransitionDenied)
}

func (e *TransitionError) Unwrap() error {
	return ErrTransitionDenied
}

// Table is the exclusion map: a target status is unreachable from any status
// in its set. Build it with NewTable and share it; it is never mutated.
type Table struct {
	exclusions map[model.FlowNodeStatus]map[model.FlowNodeStatus]struct{}
}

func NewTable() *Table {
	t := &Table{exclusions: make(map[model.FlowNodeStatus]map[model.FlowNodeStatus]struct{})}
	t.exclude(model.NODE_STATUS_NEW,
		model.NODE_STATUS_PENDING, model.NODE_STATUS_READY, model.NODE_STATUS_PROCESSING,
		model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR,
		model.NODE_STATUS_RETRYABLE)
	t.exclude(model.NODE_STATUS_PENDING,
		model.NODE_STATUS_PENDING, model.NODE_STATUS_READY, model.NODE_STATUS_PROCESSING,
		model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR,
		model.NODE_STATUS_RETRYABLE)
	t.exclude(model.NODE_STATUS_READY,
		model.NODE_STATUS_NEW, model.NODE_STATUS_READY, model.NODE_STATUS_PROCESSING,
		model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR,
		model.NODE_STATUS_RETRYABLE)
	t.exclude(model.NODE_STATUS_PROCESSING,
		model.NODE_STATUS_NEW, model.NODE_STATUS_PENDING, model.NODE_STATUS_PROCESSING,
		model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR)
	t.exclude(model.NODE_STATUS_ARCHIVED,
		model.NODE_STATUS_NEW, model.NODE_STATUS_PENDING, model.NODE_STATUS_ARCHIVED,
		model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR, model.NODE_STATUS_RETRYABLE)
	t.exclude(model.NODE_STATUS_TERMINATE,
		model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_ERROR)
	t.exclude(model.NODE_STATUS_ERROR,
		model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE, model.NODE_STATUS_ERROR)
	t.exclude(model.NODE_STATUS_RETRYABLE,
		model.NODE_STATUS_NEW, model.NODE_STATUS_PENDING, model.NODE_STATUS_READY,
		model.NODE_STATUS_PROCESSING, model.NODE_STATUS_ARCHIVED, model.NODE_STATUS_TERMINATE,
		model.NODE_STATUS_RETRYABLE)
	return t
}

func (t *Table) exclude(target model.FlowNodeStatus, current ...model.FlowNodeStatus) {
	set := make(map[model.FlowNodeStatus]struct{}, len(current))
	for _, c := range current {
		set[c] = struct{}{}
	}
	t.exclusions[target] = set
}

// CanTransition reports whether a context in current may be written with
// target. Unknown statuses are never reachable.
func (t *Table) CanTransition(current, target model.FlowNodeStatus) bool {
	set, ok := t.exclusions[target]
	if !ok {
		return false
	}
	if _, known := t.exclusions[current]; !known {
		return false
	}
	_, excluded := set[current]
	return !excluded
}

// Check is CanTransition returning a *TransitionError on denial.
func (t *Table) Check(contextId string, current, target model.FlowNodeStatus) error {
	if t.CanTransition(current, target) {
		return nil
	}
	return &TransitionError{ContextId: contextId, Current: current, Target: target}
}

// Excluded returns the exclusion set of target.
func (t *Table) Excluded(target model.FlowNodeStatus) []model.FlowNodeStatus {
	var out []model.FlowNodeStatus
	for _, s := range model.NodeStatuses() {
		if _, ok := t.exclusions[target][s]; ok {
			out = append(out, s)
		}
	}
	return out
}

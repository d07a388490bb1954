package model

import (
	"fmt"
	"strings"
)

type NodeType string

const NODE_TYPE_START NodeType = "START"
const NODE_TYPE_STATE NodeType = "STATE"
const NODE_TYPE_CONDITION NodeType = "CONDITION"
const NODE_TYPE_PARALLEL NodeType = "PARALLEL"
const NODE_TYPE_FORK NodeType = "FORK"
const NODE_TYPE_JOIN NodeType = "JOIN"
const NODE_TYPE_EVENT NodeType = "EVENT"
const NODE_TYPE_END NodeType = "END"

var nodeTypes = []NodeType{
	NODE_TYPE_START, NODE_TYPE_STATE, NODE_TYPE_CONDITION, NODE_TYPE_PARALLEL,
	NODE_TYPE_FORK, NODE_TYPE_JOIN, NODE_TYPE_EVENT, NODE_TYPE_END,
}

func ToNodeType(nt string) (NodeType, error) {
	for _, t := range nodeTypes {
		if strings.EqualFold(nt, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid node type %q", nt)
}

// IsFanOut reports whether the node duplicates its context per outgoing edge.
func (t NodeType) IsFanOut() bool {
	return t == NODE_TYPE_FORK || t == NODE_TYPE_PARALLEL
}

type TriggerMode string

const TRIGGER_MODE_AUTO TriggerMode = "AUTO"
const TRIGGER_MODE_MANUAL TriggerMode = "MANUAL"

func ToTriggerMode(tm string) (TriggerMode, error) {
	switch {
	case len(tm) == 0, strings.EqualFold(tm, string(TRIGGER_MODE_AUTO)):
		return TRIGGER_MODE_AUTO, nil
	case strings.EqualFold(tm, string(TRIGGER_MODE_MANUAL)):
		return TRIGGER_MODE_MANUAL, nil
	}
	return "", fmt.Errorf("invalid trigger mode %q", tm)
}

type ParallelMode string

const PARALLEL_MODE_ALL ParallelMode = "all"
const PARALLEL_MODE_EITHER ParallelMode = "either"

// ToParallelMode parses a parallel mode code. The empty string yields the
// empty mode so callers can tell "not declared" from "all".
func ToParallelMode(pm string) (ParallelMode, error) {
	switch {
	case len(pm) == 0:
		return "", nil
	case strings.EqualFold(pm, string(PARALLEL_MODE_ALL)):
		return PARALLEL_MODE_ALL, nil
	case strings.EqualFold(pm, string(PARALLEL_MODE_EITHER)):
		return PARALLEL_MODE_EITHER, nil
	}
	return "", fmt.Errorf("invalid parallel mode %q", pm)
}

package model

type FlowNodeStatus string

const NODE_STATUS_NEW FlowNodeStatus = "NEW"
const NODE_STATUS_PENDING FlowNodeStatus = "PENDING"
const NODE_STATUS_READY FlowNodeStatus = "READY"
const NODE_STATUS_PROCESSING FlowNodeStatus = "PROCESSING"
const NODE_STATUS_ARCHIVED FlowNodeStatus = "ARCHIVED"
const NODE_STATUS_TERMINATE FlowNodeStatus = "TERMINATE"
const NODE_STATUS_ERROR FlowNodeStatus = "ERROR"
const NODE_STATUS_RETRYABLE FlowNodeStatus = "RETRYABLE"

// NodeStatuses lists every FlowNodeStatus in lifecycle order.
func NodeStatuses() []FlowNodeStatus {
	return []FlowNodeStatus{
		NODE_STATUS_NEW,
		NODE_STATUS_PENDING,
		NODE_STATUS_READY,
		NODE_STATUS_PROCESSING,
		NODE_STATUS_ARCHIVED,
		NODE_STATUS_TERMINATE,
		NODE_STATUS_ERROR,
		NODE_STATUS_RETRYABLE,
	}
}

func (s FlowNodeStatus) IsTerminal() bool {
	switch s {
	case NODE_STATUS_ARCHIVED, NODE_STATUS_TERMINATE, NODE_STATUS_ERROR:
		return true
	}
	return false
}

type FlowTraceStatus string

const TRACE_STATUS_READY FlowTraceStatus = "READY"
const TRACE_STATUS_RUNNING FlowTraceStatus = "RUNNING"
const TRACE_STATUS_ARCHIVED FlowTraceStatus = "ARCHIVED"
const TRACE_STATUS_ERROR FlowTraceStatus = "ERROR"
const TRACE_STATUS_TERMINATE FlowTraceStatus = "TERMINATE"
const TRACE_STATUS_PARTIAL_ERROR FlowTraceStatus = "PARTIAL_ERROR"

func (s FlowTraceStatus) IsTerminal() bool {
	switch s {
	case TRACE_STATUS_READY, TRACE_STATUS_RUNNING:
		return false
	}
	return true
}

package status

import "github.com/mohitkumar/waterflow/model"

// ContextState is the part of a context the trace reduction looks at.
type ContextState struct {
	Id       string
	Status   model.FlowNodeStatus
	Previous []string
}

// ReduceTrace derives the trace status from its contexts. Only leaves count:
// a context that another context names as previous has been superseded.
func ReduceTrace(terminated bool, contexts []ContextState) model.FlowTraceStatus {
	if terminated {
		return model.TRACE_STATUS_TERMINATE
	}
	if len(contexts) == 0 {
		return model.TRACE_STATUS_READY
	}
	superseded := make(map[string]struct{}, len(contexts))
	for _, c := range contexts {
		for _, p := range c.Previous {
			superseded[p] = struct{}{}
		}
	}
	var archived, errored int
	for _, c := range contexts {
		if _, ok := superseded[c.Id]; ok {
			continue
		}
		switch c.Status {
		case model.NODE_STATUS_ARCHIVED:
			archived++
		case model.NODE_STATUS_ERROR:
			errored++
		case model.NODE_STATUS_TERMINATE:
		default:
			return model.TRACE_STATUS_RUNNING
		}
	}
	switch {
	case errored == 0:
		return model.TRACE_STATUS_ARCHIVED
	case archived > 0:
		return model.TRACE_STATUS_PARTIAL_ERROR
	default:
		return model.TRACE_STATUS_ERROR
	}
}

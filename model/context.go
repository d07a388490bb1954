package model

import "time"

const INTERNAL_KEY string = "_internal"
const OUTPUT_SCOPE_KEY string = "outputScope"

type FlowContext struct {
	Id           string         `json:"id"`
	TraceId      string         `json:"traceId"`
	DefinitionId string         `json:"definitionId"`
	Position     string         `json:"position"`
	BusinessData map[string]any `json:"businessData"`
	ContextData  ContextData    `json:"contextData"`
	Status       FlowNodeStatus `json:"status"`
	Previous     []string       `json:"previous,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	RetryCount   int            `json:"retryCount"`
	Delivery     *Delivery      `json:"delivery,omitempty"`
	CreateAt     time.Time      `json:"createAt"`
	UpdateAt     time.Time      `json:"updateAt"`
	ArchivedAt   *time.Time     `json:"archivedAt,omitempty"`
}

// Delivery tracks the callbacks of a PROCESSING context while one of them
// waits for its next attempt.
type Delivery struct {
	Callback int `json:"callback"`
	Attempt  int `json:"attempt"`
}

// ContextData is the engine's bookkeeping carried along with a context.
type ContextData struct {
	Forks      []ForkFrame `json:"forks,omitempty"`
	Joined     bool        `json:"joined,omitempty"`
	Discarded  bool        `json:"discarded,omitempty"`
	MergedFrom []string    `json:"mergedFrom,omitempty"`
}

// ForkFrame records which fork a branch context belongs to and where the
// branches meet again.
type ForkFrame struct {
	ForkContextId string       `json:"forkContextId"`
	ForkNodeId    string       `json:"forkNodeId"`
	JoinNodeId    string       `json:"joinNodeId"`
	Branch        int          `json:"branch"`
	Branches      int          `json:"branches"`
	Mode          ParallelMode `json:"mode"`
}

func (cd ContextData) Clone() ContextData {
	out := ContextData{
		Joined:    cd.Joined,
		Discarded: cd.Discarded,
	}
	if len(cd.Forks) > 0 {
		out.Forks = append([]ForkFrame(nil), cd.Forks...)
	}
	if len(cd.MergedFrom) > 0 {
		out.MergedFrom = append([]string(nil), cd.MergedFrom...)
	}
	return out
}

// TopFork returns the innermost fork frame.
func (cd ContextData) TopFork() (ForkFrame, bool) {
	if len(cd.Forks) == 0 {
		return ForkFrame{}, false
	}
	return cd.Forks[len(cd.Forks)-1], true
}

func (c *FlowContext) Clone() *FlowContext {
	out := *c
	out.BusinessData = CloneData(c.BusinessData)
	out.ContextData = c.ContextData.Clone()
	if len(c.Previous) > 0 {
		out.Previous = append([]string(nil), c.Previous...)
	}
	if c.ArchivedAt != nil {
		at := *c.ArchivedAt
		out.ArchivedAt = &at
	}
	if c.Delivery != nil {
		d := *c.Delivery
		out.Delivery = &d
	}
	return &out
}

type FlowTrace struct {
	Id           string          `json:"id"`
	DefinitionId string          `json:"definitionId"`
	Status       FlowTraceStatus `json:"status"`
	ContextIds   []string        `json:"contextIds"`
	Terminated   bool            `json:"terminated"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      *time.Time      `json:"endTime,omitempty"`
}

func (t *FlowTrace) Clone() *FlowTrace {
	out := *t
	out.ContextIds = append([]string(nil), t.ContextIds...)
	if t.EndTime != nil {
		end := *t.EndTime
		out.EndTime = &end
	}
	return &out
}

// CallbackPayload is what a callback executor receives for one context.
type CallbackPayload struct {
	FlowContextId string         `json:"flowContextId"`
	TraceId       string         `json:"traceId"`
	NodeId        string         `json:"nodeId"`
	BusinessData  map[string]any `json:"businessData"`
	ContextData   ContextData    `json:"contextData"`
	Status        FlowNodeStatus `json:"status"`
	CreateAt      time.Time      `json:"createAt"`
	UpdateAt      time.Time      `json:"updateAt"`
	ArchivedAt    *time.Time     `json:"archivedAt,omitempty"`
}

// CloneData deep copies business data so that sibling contexts never share
// nested maps or slices.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return make(map[string]any)
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return v
	}
}

// MergeData copies src into dst at the top level, src wins. Recorded node
// outputs under the internal key are merged per node instead of replaced.
func MergeData(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if k == INTERNAL_KEY {
			if merged, ok := mergeInternal(dst[k], v); ok {
				dst[k] = merged
				continue
			}
		}
		dst[k] = cloneValue(v)
	}
}

func mergeInternal(dst any, src any) (map[string]any, bool) {
	d, ok := dst.(map[string]any)
	if !ok {
		return nil, false
	}
	s, ok := src.(map[string]any)
	if !ok {
		return nil, false
	}
	out := CloneData(d)
	for k, v := range s {
		dm, dok := out[k].(map[string]any)
		sm, sok := v.(map[string]any)
		if dok && sok {
			for kk, vv := range sm {
				dm[kk] = cloneValue(vv)
			}
			continue
		}
		out[k] = cloneValue(v)
	}
	return out, true
}

// WithoutInternal returns a copy of data without the internal key.
func WithoutInternal(data map[string]any) map[string]any {
	out := CloneData(data)
	delete(out, INTERNAL_KEY)
	return out
}

// SetNodeOutput records the output of a node under the internal output
// scope, where condition references look it up.
func SetNodeOutput(data map[string]any, nodeId string, output map[string]any) {
	internal, ok := data[INTERNAL_KEY].(map[string]any)
	if !ok {
		internal = make(map[string]any)
		data[INTERNAL_KEY] = internal
	}
	scope, ok := internal[OUTPUT_SCOPE_KEY].(map[string]any)
	if !ok {
		scope = make(map[string]any)
		internal[OUTPUT_SCOPE_KEY] = scope
	}
	scope[nodeId] = CloneData(output)
}

// NodeOutput returns what SetNodeOutput recorded for nodeId.
func NodeOutput(data map[string]any, nodeId string) (any, bool) {
	internal, ok := data[INTERNAL_KEY].(map[string]any)
	if !ok {
		return nil, false
	}
	scope, ok := internal[OUTPUT_SCOPE_KEY].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := scope[nodeId]
	return v, ok
}

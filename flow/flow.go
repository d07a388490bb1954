package flow

import (
	"encoding/json"

	"github.com/mohitkumar/waterflow/callback"
	"github.com/mohitkumar/waterflow/condition"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/model"
)

// Parse decodes an authored definition, validates it and converts it.
func Parse(raw []byte, registry *jober.Registry) (*Definition, error) {
	var def model.FlowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, invalid("", err, "not a flow definition document")
	}
	return Convert(&def, registry)
}

// Validate checks the structure of def without compiling conditions or
// jobers.
func Validate(def *model.FlowDefinition) error {
	if len(def.Id) == 0 {
		return invalid(def.Id, nil, "definition id can not be empty")
	}
	types := make(map[string]model.NodeType, len(def.Nodes))
	var starts, ends int
	for _, nd := range def.Nodes {
		if len(nd.Id) == 0 {
			return invalid(def.Id, nil, "node id can not be empty")
		}
		if _, ok := types[nd.Id]; ok {
			return invalid(def.Id, nil, "node id %s is duplicate", nd.Id)
		}
		nt, err := model.ToNodeType(nd.Type)
		if err != nil {
			return invalid(def.Id, err, "node %s", nd.Id)
		}
		if _, err := model.ToTriggerMode(nd.TriggerMode); err != nil {
			return invalid(def.Id, err, "node %s", nd.Id)
		}
		if _, err := model.ToParallelMode(nd.ParallelMode); err != nil {
			return invalid(def.Id, err, "node %s", nd.Id)
		}
		types[nd.Id] = nt
		switch nt {
		case model.NODE_TYPE_START:
			starts++
		case model.NODE_TYPE_END:
			ends++
		}
	}
	if starts != 1 {
		return invalid(def.Id, nil, "need exactly one start node, found %d", starts)
	}
	if ends == 0 {
		return invalid(def.Id, nil, "need at least one end node")
	}

	out := make(map[string]int)
	in := make(map[string]int)
	defaults := make(map[string]int)
	edgeIds := make(map[string]struct{})
	for _, ed := range def.Edges {
		if len(ed.Id) > 0 {
			if _, ok := edgeIds[ed.Id]; ok {
				return invalid(def.Id, nil, "edge id %s is duplicate", ed.Id)
			}
			edgeIds[ed.Id] = struct{}{}
		}
		from, ok := types[ed.From]
		if !ok {
			return invalid(def.Id, nil, "edge %s starts at unknown node %s", ed.Id, ed.From)
		}
		to, ok := types[ed.To]
		if !ok {
			return invalid(def.Id, nil, "edge %s ends at unknown node %s", ed.Id, ed.To)
		}
		if from == model.NODE_TYPE_END {
			return invalid(def.Id, nil, "end node %s can not have outgoing edges", ed.From)
		}
		if to == model.NODE_TYPE_START {
			return invalid(def.Id, nil, "start node %s can not have incoming edges", ed.To)
		}
		hasCondition := len(ed.Condition) > 0 && string(ed.Condition) != "null"
		if hasCondition && from != model.NODE_TYPE_CONDITION {
			return invalid(def.Id, nil, "edge %s has a condition but %s is not a condition node", ed.Id, ed.From)
		}
		if !hasCondition && from == model.NODE_TYPE_CONDITION {
			defaults[ed.From]++
		}
		out[ed.From]++
		in[ed.To]++
	}

	for _, nd := range def.Nodes {
		nt := types[nd.Id]
		switch {
		case nt == model.NODE_TYPE_END:
		case nt == model.NODE_TYPE_CONDITION:
			if out[nd.Id] == 0 {
				return invalid(def.Id, nil, "condition node %s has no outgoing edge", nd.Id)
			}
			if defaults[nd.Id] > 1 {
				return invalid(def.Id, nil, "condition node %s has %d default edges", nd.Id, defaults[nd.Id])
			}
		case nt.IsFanOut():
			if out[nd.Id] < 2 {
				return invalid(def.Id, nil, "%s node %s needs at least two branches", nt, nd.Id)
			}
		default:
			if out[nd.Id] != 1 {
				return invalid(def.Id, nil, "%s node %s needs exactly one outgoing edge, found %d", nt, nd.Id, out[nd.Id])
			}
		}
		if nt != model.NODE_TYPE_START && in[nd.Id] == 0 {
			return invalid(def.Id, nil, "node %s is unreachable", nd.Id)
		}
	}
	return nil
}

// Convert validates def and builds the immutable graph: conditions are
// compiled, jobers and callbacks parsed, and every fork matched to its JOIN.
func Convert(def *model.FlowDefinition, registry *jober.Registry) (*Definition, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}
	d := &Definition{
		Id:      def.Id,
		Name:    def.Name,
		Version: def.Version,
		nodes:   make(map[string]*Node, len(def.Nodes)),
	}
	for _, nd := range def.Nodes {
		n, err := convertNode(def.Id, nd, registry)
		if err != nil {
			return nil, err
		}
		d.nodes[n.Id] = n
		d.order = append(d.order, n.Id)
		if n.Type == model.NODE_TYPE_START {
			d.Start = n
		}
	}
	for _, ed := range def.Edges {
		e := &Edge{Id: ed.Id, From: ed.From, To: ed.To}
		if len(e.Id) == 0 {
			e.Id = ed.From + "->" + ed.To
		}
		if len(ed.Condition) > 0 && string(ed.Condition) != "null" {
			c, err := condition.Parse(ed.Condition)
			if err != nil {
				return nil, invalid(def.Id, err, "edge %s", e.Id)
			}
			e.Condition = c
		}
		d.nodes[e.From].Out = append(d.nodes[e.From].Out, e)
		d.nodes[e.To].In = append(d.nodes[e.To].In, e)
	}
	if err := matchJoins(d); err != nil {
		return nil, err
	}
	return d, nil
}

func convertNode(defId string, nd model.NodeDef, registry *jober.Registry) (*Node, error) {
	nt, _ := model.ToNodeType(nd.Type)
	tm, _ := model.ToTriggerMode(nd.TriggerMode)
	pm, _ := model.ToParallelMode(nd.ParallelMode)
	n := &Node{
		Id:          nd.Id,
		Name:        nd.Name,
		Type:        nt,
		TriggerMode: tm,
		Mode:        pm,
	}
	if nd.Jober != nil {
		j, err := registry.Parse(*nd.Jober)
		if err != nil {
			return nil, invalid(defId, err, "node %s", nd.Id)
		}
		n.Jober = j
	}
	for _, cd := range nd.Callbacks {
		cb, err := callback.Parse(cd)
		if err != nil {
			return nil, invalid(defId, err, "node %s", nd.Id)
		}
		n.Callbacks = append(n.Callbacks, cb)
	}
	return n, nil
}

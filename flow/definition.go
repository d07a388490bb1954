package flow

import (
	"github.com/mohitkumar/waterflow/callback"
	"github.com/mohitkumar/waterflow/condition"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/model"
)

// Definition is a parsed flow graph. It is never mutated after Convert
// returns and is shared by every trace of the flow.
type Definition struct {
	Id      string
	Name    string
	Version string
	Start   *Node
	nodes   map[string]*Node
	order   []string
}

type Node struct {
	Id          string
	Name        string
	Type        model.NodeType
	TriggerMode model.TriggerMode
	// Mode is the effective parallel mode of fan-out and JOIN nodes.
	Mode      model.ParallelMode
	Jober     *jober.Jober
	Callbacks []*callback.Callback
	Out       []*Edge
	In        []*Edge
	// JoinNodeId is set on fan-out nodes, ForkNodeId on JOIN nodes.
	JoinNodeId string
	ForkNodeId string
}

type Edge struct {
	Id        string
	From      string
	To        string
	Condition *condition.Condition
}

func (e *Edge) IsDefault() bool {
	return e.Condition == nil
}

func (d *Definition) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (d *Definition) Nodes() []*Node {
	out := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

func (n *Node) IsManual() bool {
	return n.TriggerMode == model.TRIGGER_MODE_MANUAL
}

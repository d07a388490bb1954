package flow

import (
	"github.com/mohitkumar/waterflow/model"
)

type walkKey struct {
	node  string
	depth int
}

type joinWalker struct {
	def    *Definition
	fork   *Node
	memo   map[walkKey]string
	onPath map[walkKey]bool
}

// matchJoins pairs every fan-out node with the JOIN where its branches meet
// again. Nested forks are balanced: a JOIN closes the innermost open fork.
func matchJoins(d *Definition) error {
	for _, id := range d.order {
		fork := d.nodes[id]
		if !fork.Type.IsFanOut() {
			continue
		}
		w := &joinWalker{
			def:    d,
			fork:   fork,
			memo:   make(map[walkKey]string),
			onPath: make(map[walkKey]bool),
		}
		joinId := ""
		for _, e := range fork.Out {
			found, err := w.walk(e.To, 0)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return invalid(d.Id, nil, "branch %s of %s never reaches a join", e.Id, fork.Id)
			}
			if len(joinId) > 0 && found != joinId {
				return invalid(d.Id, nil, "branches of %s meet at different joins %s and %s", fork.Id, joinId, found)
			}
			joinId = found
		}
		join := d.nodes[joinId]
		if len(join.ForkNodeId) > 0 {
			return invalid(d.Id, nil, "join %s closes both %s and %s", joinId, join.ForkNodeId, fork.Id)
		}
		fork.JoinNodeId = joinId
		join.ForkNodeId = fork.Id
		if len(fork.Mode) == 0 {
			fork.Mode = model.PARALLEL_MODE_ALL
		}
	}
	for _, id := range d.order {
		n := d.nodes[id]
		if n.Type != model.NODE_TYPE_JOIN {
			continue
		}
		if len(n.ForkNodeId) == 0 {
			return invalid(d.Id, nil, "join %s is not closing any fork", n.Id)
		}
		if len(n.Mode) == 0 {
			n.Mode = d.nodes[n.ForkNodeId].Mode
		}
	}
	return nil
}

// walk returns the JOIN reached at depth zero from nodeId, or "" when every
// path from here loops back without reaching one.
func (w *joinWalker) walk(nodeId string, depth int) (string, error) {
	key := walkKey{node: nodeId, depth: depth}
	if found, ok := w.memo[key]; ok {
		return found, nil
	}
	if w.onPath[key] {
		return "", nil
	}
	w.onPath[key] = true
	defer delete(w.onPath, key)

	n := w.def.nodes[nodeId]
	next := depth
	switch {
	case n.Type == model.NODE_TYPE_END:
		return "", invalid(w.def.Id, nil, "branch of %s reaches end node %s before a join", w.fork.Id, n.Id)
	case n.Type == model.NODE_TYPE_JOIN:
		if depth == 0 {
			w.memo[key] = n.Id
			return n.Id, nil
		}
		next = depth - 1
	case n.Type.IsFanOut():
		next = depth + 1
	}
	joinId := ""
	for _, e := range n.Out {
		found, err := w.walk(e.To, next)
		if err != nil {
			return "", err
		}
		if len(found) == 0 {
			continue
		}
		if len(joinId) > 0 && found != joinId {
			return "", invalid(w.def.Id, nil, "branches of %s meet at different joins %s and %s", w.fork.Id, joinId, found)
		}
		joinId = found
	}
	if len(joinId) > 0 {
		w.memo[key] = joinId
	}
	return joinId, nil
}

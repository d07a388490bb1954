package flow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mohitkumar/waterflow/condition"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/model"
	"github.com/stretchr/testify/require"
)

func node(id, typ string) model.NodeDef {
	return model.NodeDef{Id: id, Name: id, Type: typ}
}

func edge(from, to string) model.EdgeDef {
	return model.EdgeDef{Id: from + "-" + to, From: from, To: to}
}

func condEdge(from, to, cond string) model.EdgeDef {
	e := edge(from, to)
	e.Condition = json.RawMessage(cond)
	return e
}

const approved = `{"conditions":[{"condition":"is true","value":[{"from":"Reference","value":["approved"]}]}]}`

func nestedForkDef() *model.FlowDefinition {
	outer := node("fork", "fork")
	outer.ParallelMode = "either"
	inner := node("par", "parallel")
	join := node("join", "join")
	return &model.FlowDefinition{
		Id: "nested",
		Nodes: []model.NodeDef{
			node("start", "start"), outer, node("a", "state"), inner,
			node("b1", "state"), node("b2", "state"), node("innerJoin", "join"),
			join, node("end", "end"),
		},
		Edges: []model.EdgeDef{
			edge("start", "fork"),
			edge("fork", "a"), edge("fork", "par"),
			edge("a", "join"),
			edge("par", "b1"), edge("par", "b2"),
			edge("b1", "innerJoin"), edge("b2", "innerJoin"),
			edge("innerJoin", "join"),
			edge("join", "end"),
		},
	}
}

func TestConvert(t *testing.T) {
	registry := jober.NewRegistry(jober.Deps{})
	for scenario, fn := range map[string]func(t *testing.T){
		"linear with jober and callback": func(t *testing.T) {
			task := node("task", "STATE")
			task.Jober = &model.JoberDef{Name: "echo", Type: "ECHO_JOBER"}
			task.Callbacks = []model.CallbackDef{{Name: "notify", GenericableId: "notify"}}
			task.TriggerMode = "manual"
			d, err := Convert(&model.FlowDefinition{
				Id:    "linear",
				Nodes: []model.NodeDef{node("start", "start"), task, node("end", "end")},
				Edges: []model.EdgeDef{edge("start", "task"), edge("task", "end")},
			}, registry)
			require.NoError(t, err)
			require.Equal(t, "start", d.Start.Id)
			n, ok := d.Node("task")
			require.True(t, ok)
			require.Equal(t, jober.ECHO_JOBER, n.Jober.Type)
			require.Len(t, n.Callbacks, 1)
			require.True(t, n.IsManual())
			require.Len(t, d.Nodes(), 3)
			require.Equal(t, "task", d.Nodes()[1].Id)
		},
		"condition edges keep order and default": func(t *testing.T) {
			d, err := Convert(&model.FlowDefinition{
				Id: "cond",
				Nodes: []model.NodeDef{
					node("start", "start"), node("check", "condition"),
					node("yes", "end"), node("no", "end"),
				},
				Edges: []model.EdgeDef{
					edge("start", "check"),
					condEdge("check", "yes", approved),
					edge("check", "no"),
				},
			}, registry)
			require.NoError(t, err)
			check, _ := d.Node("check")
			require.Len(t, check.Out, 2)
			require.False(t, check.Out[0].IsDefault())
			require.True(t, check.Out[1].IsDefault())
		},
		"nested forks are matched to their joins": func(t *testing.T) {
			d, err := Convert(nestedForkDef(), registry)
			require.NoError(t, err)
			fork, _ := d.Node("fork")
			par, _ := d.Node("par")
			join, _ := d.Node("join")
			innerJoin, _ := d.Node("innerJoin")
			require.Equal(t, "join", fork.JoinNodeId)
			require.Equal(t, "innerJoin", par.JoinNodeId)
			require.Equal(t, "fork", join.ForkNodeId)
			require.Equal(t, "par", innerJoin.ForkNodeId)
			require.Equal(t, model.PARALLEL_MODE_EITHER, join.Mode)
			require.Equal(t, model.PARALLEL_MODE_ALL, innerJoin.Mode)
		},
		"join mode overrides fork mode": func(t *testing.T) {
			def := nestedForkDef()
			def.Nodes[7].ParallelMode = "all"
			d, err := Convert(def, registry)
			require.NoError(t, err)
			join, _ := d.Node("join")
			fork, _ := d.Node("fork")
			require.Equal(t, model.PARALLEL_MODE_ALL, join.Mode)
			require.Equal(t, model.PARALLEL_MODE_EITHER, fork.Mode)
		},
		"loop outside a fork is allowed": func(t *testing.T) {
			_, err := Convert(&model.FlowDefinition{
				Id: "loop",
				Nodes: []model.NodeDef{
					node("start", "start"), node("work", "state"), node("check", "condition"), node("end", "end"),
				},
				Edges: []model.EdgeDef{
					edge("start", "work"), edge("work", "check"),
					condEdge("check", "end", approved), edge("check", "work"),
				},
			}, registry)
			require.NoError(t, err)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestParseRejects(t *testing.T) {
	registry := jober.NewRegistry(jober.Deps{})
	base := func() *model.FlowDefinition {
		return &model.FlowDefinition{
			Id:    "bad",
			Nodes: []model.NodeDef{node("start", "start"), node("s", "state"), node("end", "end")},
			Edges: []model.EdgeDef{edge("start", "s"), edge("s", "end")},
		}
	}
	for name, tc := range map[string]struct {
		mutate func(d *model.FlowDefinition)
		cause  error
	}{
		"duplicate node": {mutate: func(d *model.FlowDefinition) {
			d.Nodes = append(d.Nodes, node("s", "state"))
		}},
		"two starts": {mutate: func(d *model.FlowDefinition) {
			d.Nodes = append(d.Nodes, node("start2", "start"))
			d.Edges = append(d.Edges, edge("start2", "s"))
		}},
		"no end": {mutate: func(d *model.FlowDefinition) {
			d.Nodes[2].Type = "state"
		}},
		"unknown node type": {mutate: func(d *model.FlowDefinition) {
			d.Nodes[1].Type = "timer"
		}},
		"unknown parallel mode": {mutate: func(d *model.FlowDefinition) {
			d.Nodes[1].ParallelMode = "some"
		}},
		"edge to unknown node": {mutate: func(d *model.FlowDefinition) {
			d.Edges = append(d.Edges, edge("s", "ghost"))
		}},
		"state with two outgoing edges": {mutate: func(d *model.FlowDefinition) {
			d.Nodes = append(d.Nodes, node("end2", "end"))
			d.Edges = append(d.Edges, edge("s", "end2"))
		}},
		"condition on a state edge": {mutate: func(d *model.FlowDefinition) {
			d.Edges[1].Condition = json.RawMessage(approved)
		}},
		"unreachable node": {mutate: func(d *model.FlowDefinition) {
			d.Nodes = append(d.Nodes, node("orphan", "state"))
			d.Edges = append(d.Edges, edge("orphan", "end"))
		}},
		"unknown jober type": {
			mutate: func(d *model.FlowDefinition) {
				d.Nodes[1].Jober = &model.JoberDef{Name: "x", Type: "SMTP_JOBER"}
			},
			cause: jober.ErrUnknownType,
		},
		"unknown condition operator": {
			mutate: func(d *model.FlowDefinition) {
				d.Nodes[1].Type = "condition"
				d.Edges[1].Condition = json.RawMessage(`{"conditions":[{"condition":"approximately","value":[]}]}`)
			},
			cause: condition.ErrUnknownOperator,
		},
	} {
		t.Run(name, func(t *testing.T) {
			def := base()
			tc.mutate(def)
			_, err := Convert(def, registry)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidDefinition), err.Error())
			if tc.cause != nil {
				require.True(t, errors.Is(err, tc.cause), err.Error())
			}
		})
	}
}

func TestForkMatchingRejects(t *testing.T) {
	registry := jober.NewRegistry(jober.Deps{})
	for name, def := range map[string]*model.FlowDefinition{
		"branches meet at different joins": {
			Id: "split",
			Nodes: []model.NodeDef{
				node("start", "start"), node("fork", "fork"), node("j1", "join"), node("j2", "join"), node("end", "end"),
			},
			Edges: []model.EdgeDef{
				edge("start", "fork"), edge("fork", "j1"), edge("fork", "j2"), edge("j1", "end"), edge("j2", "end"),
			},
		},
		"branch ends before join": {
			Id: "leak",
			Nodes: []model.NodeDef{
				node("start", "start"), node("fork", "fork"), node("a", "state"), node("j", "join"), node("end", "end"), node("end2", "end"),
			},
			Edges: []model.EdgeDef{
				edge("start", "fork"), edge("fork", "a"), edge("fork", "end2"), edge("a", "j"), edge("j", "end"),
			},
		},
		"join without fork": {
			Id: "stray",
			Nodes: []model.NodeDef{
				node("start", "start"), node("j", "join"), node("end", "end"),
			},
			Edges: []model.EdgeDef{edge("start", "j"), edge("j", "end")},
		},
		"fork with one branch": {
			Id: "single",
			Nodes: []model.NodeDef{
				node("start", "start"), node("fork", "fork"), node("j", "join"), node("end", "end"),
			},
			Edges: []model.EdgeDef{edge("start", "fork"), edge("fork", "j"), edge("j", "end")},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Convert(def, registry)
			require.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestParseDocument(t *testing.T) {
	registry := jober.NewRegistry(jober.Deps{})
	d, err := Parse([]byte(`{
		"id": "doc", "name": "doc", "version": "1",
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "echo", "type": "state", "jober": {"name": "e", "type": "ECHO_JOBER", "properties": {"fields": {"x": 1}}}},
			{"id": "end", "type": "end"}
		],
		"edges": [{"from": "start", "to": "echo"}, {"from": "echo", "to": "end"}]
	}`), registry)
	require.NoError(t, err)
	require.Equal(t, "1", d.Version)
	echo, _ := d.Node("echo")
	require.Equal(t, "echo->end", echo.Out[0].Id)

	_, err = Parse([]byte(`[]`), registry)
	require.ErrorIs(t, err, ErrInvalidDefinition)
}

package model

import "encoding/json"

// FlowDefinition is the authored JSON form of a flow. The engine parses it
// once into an immutable flow.Definition.
type FlowDefinition struct {
	Id      string    `json:"id"`
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Nodes   []NodeDef `json:"nodes"`
	Edges   []EdgeDef `json:"edges"`
}

type NodeDef struct {
	Id           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	TriggerMode  string        `json:"triggerMode,omitempty"`
	ParallelMode string        `json:"parallelMode,omitempty"`
	Jober        *JoberDef     `json:"jober,omitempty"`
	Callbacks    []CallbackDef `json:"callbacks,omitempty"`
}

type EdgeDef struct {
	Id        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

type JoberDef struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Fitables   []string       `json:"fitables,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

type CallbackDef struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	GenericableId string   `json:"genericableId"`
	Fitables      []string `json:"fitables,omitempty"`
	FilteredKeys  []string `json:"filteredKeys,omitempty"`
}

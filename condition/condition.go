package condition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownOperator = errors.New("unknown condition operator")
	ErrMalformed       = errors.New("malformed condition")
)

type Relation string

const RELATION_AND Relation = "and"
const RELATION_OR Relation = "or"

type Document struct {
	ConditionRelation string         `json:"conditionRelation"`
	Conditions        []ItemDocument `json:"conditions"`
}

type ItemDocument struct {
	Condition string            `json:"condition"`
	Value     []OperandDocument `json:"value"`
}

type OperandDocument struct {
	From          string          `json:"from"`
	ReferenceNode string          `json:"referenceNode,omitempty"`
	Type          string          `json:"type,omitempty"`
	Value         json.RawMessage `json:"value"`
}

// Condition is a compiled condition tree. It holds no mutable state and is
// safe for concurrent evaluation.
type Condition struct {
	Relation Relation
	Items    []Item
}

type Item struct {
	Operator Operator
	Operands []Operand
}

// Parse decodes the JSON form and compiles it.
func Parse(raw []byte) (*Condition, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Compile(doc)
}

func Compile(doc Document) (*Condition, error) {
	relation, err := toRelation(doc.ConditionRelation)
	if err != nil {
		return nil, err
	}
	c := &Condition{Relation: relation}
	for i, itemDoc := range doc.Conditions {
		item, err := compileItem(itemDoc)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		c.Items = append(c.Items, item)
	}
	return c, nil
}

func toRelation(r string) (Relation, error) {
	switch {
	case len(r) == 0, strings.EqualFold(r, string(RELATION_AND)):
		return RELATION_AND, nil
	case strings.EqualFold(r, string(RELATION_OR)):
		return RELATION_OR, nil
	}
	return "", fmt.Errorf("%w: unknown relation %q", ErrMalformed, r)
}

func compileItem(doc ItemDocument) (Item, error) {
	op, err := ToOperator(doc.Condition)
	if err != nil {
		return Item{}, err
	}
	switch op.Arity() {
	case Nullary:
		if len(doc.Value) != 0 {
			return Item{}, fmt.Errorf("%w: %q takes no operands", ErrMalformed, op)
		}
	case Unary:
		if len(doc.Value) < 1 {
			return Item{}, fmt.Errorf("%w: %q needs an operand", ErrMalformed, op)
		}
	case Binary:
		if len(doc.Value) != 2 {
			return Item{}, fmt.Errorf("%w: %q needs two operands, got %d", ErrMalformed, op, len(doc.Value))
		}
	}
	item := Item{Operator: op}
	for _, od := range doc.Value {
		operand, err := compileOperand(od)
		if err != nil {
			return Item{}, err
		}
		item.Operands = append(item.Operands, operand)
	}
	return item, nil
}

func compileOperand(doc OperandDocument) (Operand, error) {
	switch {
	case strings.EqualFold(doc.From, "Reference"):
		path, err := referencePath(doc.Value)
		if err != nil {
			return nil, err
		}
		return Reference{Node: doc.ReferenceNode, Path: path}, nil
	case strings.EqualFold(doc.From, "Input"):
		return compileInput(doc.Type, doc.Value)
	}
	return nil, fmt.Errorf("%w: unknown operand source %q", ErrMalformed, doc.From)
}

func referencePath(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var path []string
	if err := json.Unmarshal(raw, &path); err == nil {
		return path, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	return nil, fmt.Errorf("%w: reference path must be a list of strings", ErrMalformed)
}

func compileInput(typ string, raw json.RawMessage) (Operand, error) {
	var v any
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	switch {
	case strings.EqualFold(typ, string(INPUT_TYPE_NUMBER)):
		var s string
		switch val := v.(type) {
		case json.Number:
			s = val.String()
		case string:
			s = strings.TrimSpace(val)
		default:
			return nil, fmt.Errorf("%w: %v is not a number", ErrMalformed, v)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
		}
		return Input{Type: INPUT_TYPE_NUMBER, Value: f}, nil
	case strings.EqualFold(typ, string(INPUT_TYPE_BOOLEAN)):
		switch val := v.(type) {
		case bool:
			return Input{Type: INPUT_TYPE_BOOLEAN, Value: val}, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a boolean", ErrMalformed, val)
			}
			return Input{Type: INPUT_TYPE_BOOLEAN, Value: b}, nil
		}
		return nil, fmt.Errorf("%w: %v is not a boolean", ErrMalformed, v)
	case strings.EqualFold(typ, string(INPUT_TYPE_STRING)):
		switch val := v.(type) {
		case string:
			return Input{Type: INPUT_TYPE_STRING, Value: val}, nil
		case nil:
			return Input{Type: INPUT_TYPE_STRING, Value: ""}, nil
		}
		return Input{Type: INPUT_TYPE_STRING, Value: fmt.Sprint(v)}, nil
	}
	return nil, fmt.Errorf("%w: unknown input type %q", ErrMalformed, typ)
}

// Evaluate applies the condition to a business data snapshot. Siblings are
// combined left to right and short-circuit on the relation.
func (c *Condition) Evaluate(data map[string]any) bool {
	if c.Relation == RELATION_OR {
		for _, item := range c.Items {
			if item.Evaluate(data) {
				return true
			}
		}
		return false
	}
	for _, item := range c.Items {
		if !item.Evaluate(data) {
			return false
		}
	}
	return true
}

func (i Item) Evaluate(data map[string]any) bool {
	values := make([]any, len(i.Operands))
	for idx, operand := range i.Operands {
		values[idx] = operand.Resolve(data)
	}
	return i.Operator.apply(values)
}

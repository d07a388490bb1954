package condition

import (
	"fmt"
	"strings"
)

type Arity int

const (
	Nullary Arity = iota
	Unary
	Binary
)

type Operator string

const OPERATOR_EQUAL Operator = "equal"
const OPERATOR_NOT_EQUAL Operator = "not equal"
const OPERATOR_IS_TRUE Operator = "is true"
const OPERATOR_IS_FALSE Operator = "is false"
const OPERATOR_IS_EMPTY Operator = "is empty"
const OPERATOR_IS_NOT_EMPTY Operator = "is not empty"
const OPERATOR_GREATER_THAN Operator = "greater than"
const OPERATOR_GREATER_THAN_OR_EQUAL Operator = "greater than or equal"
const OPERATOR_LESS_THAN Operator = "less than"
const OPERATOR_LESS_THAN_OR_EQUAL Operator = "less than or equal"
const OPERATOR_AND Operator = "and"
const OPERATOR_OR Operator = "or"

var arities = map[Operator]Arity{
	OPERATOR_AND:                   Nullary,
	OPERATOR_OR:                    Nullary,
	OPERATOR_IS_TRUE:               Unary,
	OPERATOR_IS_FALSE:              Unary,
	OPERATOR_IS_EMPTY:              Unary,
	OPERATOR_IS_NOT_EMPTY:          Unary,
	OPERATOR_EQUAL:                 Binary,
	OPERATOR_NOT_EQUAL:             Binary,
	OPERATOR_GREATER_THAN:          Binary,
	OPERATOR_GREATER_THAN_OR_EQUAL: Binary,
	OPERATOR_LESS_THAN:             Binary,
	OPERATOR_LESS_THAN_OR_EQUAL:    Binary,
}

// ToOperator maps an operator name onto the closed set. Matching ignores
// case, and '-' or '_' count as spaces.
func ToOperator(name string) (Operator, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", " ", "_", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	op := Operator(normalized)
	if _, ok := arities[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	return op, nil
}

func (o Operator) Arity() Arity {
	return arities[o]
}

func (o Operator) apply(operands []any) bool {
	switch o.Arity() {
	case Nullary:
		return o == OPERATOR_AND
	case Unary:
		return o.applyUnary(operands[0])
	default:
		return o.applyBinary(operands[0], operands[1])
	}
}

func (o Operator) applyUnary(v any) bool {
	switch o {
	case OPERATOR_IS_TRUE:
		return isBool(v, true)
	case OPERATOR_IS_FALSE:
		return isBool(v, false)
	case OPERATOR_IS_EMPTY:
		return isEmpty(v)
	case OPERATOR_IS_NOT_EMPTY:
		return !isEmpty(v)
	}
	return false
}

func (o Operator) applyBinary(l, r any) bool {
	if IsUndefined(l) || IsUndefined(r) {
		return false
	}
	switch o {
	case OPERATOR_EQUAL:
		return equal(l, r)
	case OPERATOR_NOT_EQUAL:
		return !equal(l, r)
	}
	cmp, ok := compare(l, r)
	if !ok {
		return false
	}
	switch o {
	case OPERATOR_GREATER_THAN:
		return cmp > 0
	case OPERATOR_GREATER_THAN_OR_EQUAL:
		return cmp >= 0
	case OPERATOR_LESS_THAN:
		return cmp < 0
	case OPERATOR_LESS_THAN_OR_EQUAL:
		return cmp <= 0
	}
	return false
}

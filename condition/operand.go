package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohitkumar/waterflow/model"
	"github.com/oliveagle/jsonpath"
)

type undefined struct{}

func (undefined) String() string {
	return "undefined"
}

// Undefined is what a reference resolves to when its path is missing.
var Undefined any = undefined{}

func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

type Operand interface {
	Resolve(data map[string]any) any
}

// Reference points into business data. The root is the output scope of Node,
// falling back to the top level key Node; an empty Node starts at the top.
type Reference struct {
	Node string
	Path []string
}

func (r Reference) Resolve(data map[string]any) any {
	var root any = data
	if len(r.Node) > 0 {
		out, ok := model.NodeOutput(data, r.Node)
		if !ok {
			out, ok = data[r.Node]
			if !ok {
				return Undefined
			}
		}
		root = out
	}
	path, ok := r.jsonPath()
	if !ok {
		return Undefined
	}
	if path == "$" {
		return root
	}
	v, err := lookup(root, path)
	if err != nil {
		return Undefined
	}
	return v
}

// jsonPath joins the dotted segments into a JSONPath rooted at "$", turning
// numeric segments into list indexes.
func (r Reference) jsonPath() (string, bool) {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range r.Path {
		for _, part := range strings.Split(seg, ".") {
			if len(part) == 0 || strings.ContainsAny(part, "[]") {
				return "", false
			}
			if i, err := strconv.Atoi(part); err == nil && i >= 0 {
				b.WriteString("[" + part + "]")
				continue
			}
			b.WriteString("." + part)
		}
	}
	return b.String(), true
}

// jsonpath panics when asked to index a nil value.
func lookup(root any, path string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lookup %s: %v", path, r)
		}
	}()
	return jsonpath.JsonPathLookup(root, path)
}

type InputType string

const INPUT_TYPE_BOOLEAN InputType = "Boolean"
const INPUT_TYPE_NUMBER InputType = "Number"
const INPUT_TYPE_STRING InputType = "String"

// Input is a typed literal, already converted at compile time.
type Input struct {
	Type  InputType
	Value any
}

func (i Input) Resolve(map[string]any) any {
	return i.Value
}

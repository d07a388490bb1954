package condition

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numbers converts both sides when at least one is a real number and the
// other is a number or a numeric string.
func numbers(l, r any) (float64, float64, bool) {
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	switch {
	case lok && rok:
		return ln, rn, true
	case lok:
		if s, ok := r.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return ln, f, true
			}
		}
	case rok:
		if s, ok := l.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, rn, true
			}
		}
	}
	return 0, 0, false
}

func equal(l, r any) bool {
	if ln, rn, ok := numbers(l, r); ok {
		return ln == rn
	}
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		return ok && lv == rv
	case bool:
		rv, ok := r.(bool)
		return ok && lv == rv
	case nil:
		return r == nil
	}
	return reflect.DeepEqual(l, r)
}

// compare orders numbers and strings; anything else is not comparable.
func compare(l, r any) (int, bool) {
	if ln, rn, ok := numbers(l, r); ok {
		switch {
		case ln < rn:
			return -1, true
		case ln > rn:
			return 1, true
		}
		return 0, true
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}
	return 0, false
}

func isBool(v any, want bool) bool {
	switch b := v.(type) {
	case bool:
		return b == want
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed == want
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil || IsUndefined(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

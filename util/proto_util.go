package util

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToProtoValue converts a business data value into a protobuf Value. Integer
// kinds and json.Number become numbers.
func ToProtoValue(v any) (*structpb.Value, error) {
	return structpb.NewValue(normalize(v))
}

func ConvertToProto(data map[string]any) map[string]*structpb.Value {
	out := make(map[string]*structpb.Value)
	for k, v := range data {
		if val, err := ToProtoValue(v); err == nil {
			out[k] = val
		}
	}
	return out
}

func ConvertFromProto(data map[string]*structpb.Value) map[string]any {
	out := make(map[string]any)
	for k, v := range data {
		out[k] = v.AsInterface()
	}
	return out
}

func FromProtoValue(v *structpb.Value) any {
	if v == nil {
		return nil
	}
	return v.AsInterface()
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filters arrive either in Qdrant's own shape ({"must": [...]}) or in a small
// operator language: {"document_id": "d1"}, {"lang": {"$in": ["de","en"]}},
// {"$or": [{...}, {...}]}, {"$not": {...}}. Both forms translate to the
// native clause map sent with search and delete requests.

const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"

	filterOp = "filter"
)

func isNativeClause(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "must", "should", "must_not", "min_should":
		return true
	default:
		return false
	}
}

type clauses struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (c clauses) asMap() map[string]any {
	out := map[string]any{}
	if len(c.Must) > 0 {
		out["must"] = c.Must
	}
	if len(c.Should) > 0 {
		out["should"] = c.Should
	}
	if len(c.MustNot) > 0 {
		out["must_not"] = c.MustNot
	}
	return out
}

func (c *clauses) merge(o clauses) {
	c.Must = append(c.Must, o.Must...)
	c.Should = append(c.Should, o.Should...)
	c.MustNot = append(c.MustNot, o.MustNot...)
}

// BuildFilter converts a caller filter into the map Qdrant expects. A nil or
// empty filter yields nil.
func BuildFilter(filter map[string]any) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	native, other := 0, 0
	for k := range filter {
		if isNativeClause(k) {
			native++
		} else {
			other++
		}
	}
	switch {
	case native > 0 && other > 0:
		return nil, storeErr(filterOp, "", StoreErrorValidation, "filter mixes native clauses with field conditions", nil)
	case native > 0:
		return filter, nil
	}
	c, err := translate(filter)
	if err != nil {
		return nil, err
	}
	return c.asMap(), nil
}

// MatchFilter is the native filter for payload[key] == value.
func MatchFilter(key string, value any) map[string]any {
	return map[string]any{"must": []any{matchValue(key, value)}}
}

// MatchAnyFilter is the native filter for payload[key] in values.
func MatchAnyFilter(key string, values []string) map[string]any {
	anyOf := make([]any, 0, len(values))
	for _, v := range values {
		anyOf = append(anyOf, v)
	}
	return map[string]any{"must": []any{matchAny(key, anyOf)}}
}

func translate(filter map[string]any) (clauses, error) {
	var out clauses
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if !strings.HasPrefix(k, "$") {
			part, err := translateField(k, value)
			if err != nil {
				return clauses{}, err
			}
			out.merge(part)
			continue
		}
		switch strings.ToLower(k) {
		case filterOpAnd, filterOpOr:
			items, err := toObjectSlice(value)
			if err != nil {
				return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
					fmt.Sprintf("operator %s expects array of objects", k), err)
			}
			for _, item := range items {
				sub, err := translate(item)
				if err != nil {
					return clauses{}, err
				}
				if strings.EqualFold(k, filterOpAnd) {
					out.Must = append(out.Must, sub.asMap())
				} else {
					out.Should = append(out.Should, sub.asMap())
				}
			}
		case filterOpNot:
			item, ok := value.(map[string]any)
			if !ok {
				return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
					fmt.Sprintf("operator %s expects an object", filterOpNot), nil)
			}
			sub, err := translate(item)
			if err != nil {
				return clauses{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
		default:
			return clauses{}, storeErr(filterOp, "", StoreErrorUnsupportedFilter,
				fmt.Sprintf("unsupported top-level filter operator %q", k), nil)
		}
	}
	return out, nil
}

func translateField(field string, value any) (clauses, error) {
	var out clauses
	ops, isOps := value.(map[string]any)
	if !isOps {
		scalar, ok := toScalar(value)
		if !ok {
			return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
				fmt.Sprintf("field %q expects scalar value or operator object", field), nil)
		}
		out.Must = append(out.Must, matchValue(field, scalar))
		return out, nil
	}
	if len(ops) == 0 {
		return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field), nil)
	}
	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		switch strings.ToLower(strings.TrimSpace(op)) {
		case filterOpEq, filterOpNe:
			scalar, ok := toScalar(arg)
			if !ok {
				return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", op, field), nil)
			}
			if strings.EqualFold(op, filterOpEq) {
				out.Must = append(out.Must, matchValue(field, scalar))
			} else {
				out.MustNot = append(out.MustNot, matchValue(field, scalar))
			}
		case filterOpIn:
			values, err := toScalarSlice(arg)
			if err != nil || len(values) == 0 {
				return clauses{}, storeErr(filterOp, "", StoreErrorValidation,
					fmt.Sprintf("operator %s for field %q expects a non-empty scalar array", filterOpIn, field), err)
			}
			out.Must = append(out.Must, matchAny(field, values))
		default:
			return clauses{}, storeErr(filterOp, "", StoreErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", op, field), nil)
		}
	}
	return out, nil
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func matchAny(key string, values []any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"any": values}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toObjectSlice(value any) ([]map[string]any, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected []any, got %T", value)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object in array, got %T", item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalar(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalar(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint64, float64:
		return typed, true
	case int32:
		return int(typed), true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}

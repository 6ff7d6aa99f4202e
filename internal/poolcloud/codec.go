package poolcloud

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FlatSeparator joins nested field names into flat keys.
// Example: {"modules": {"ph": {"current": 740}}} → "modules_ph_current".
const FlatSeparator = "_"

// Value is the wire representation of one document field: a closed variant
// over string, integer, double, boolean, null, timestamp, list and map.
// Exactly one variant field is set on a well-formed value.
//
// Integers travel as decimal strings, matching the document store's wire
// format for 64-bit values.
type Value struct {
	StringValue    *string         `json:"stringValue,omitempty"`
	IntegerValue   *string         `json:"integerValue,omitempty"`
	DoubleValue    *float64        `json:"doubleValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	ArrayValue     *ArrayValue     `json:"arrayValue,omitempty"`
	MapValue       *MapValue       `json:"mapValue,omitempty"`
}

// ArrayValue is the list variant: an ordered sequence of typed values.
type ArrayValue struct {
	Values []Value `json:"values,omitempty"`
}

// MapValue is the map variant: named typed values.
type MapValue struct {
	Fields map[string]Value `json:"fields,omitempty"`
}

// Document is a pool document as returned by the document store.
type Document struct {
	Name       string           `json:"name"`
	Fields     map[string]Value `json:"fields"`
	CreateTime string           `json:"createTime"`
	UpdateTime string           `json:"updateTime"`
}

// FlatState maps flat keys to decoded scalar or list values: the decoded
// document after recursive flattening. A fresh FlatState is produced per
// poll cycle and not retained beyond diffing.
type FlatState map[string]any

// DecodeValue recursively unwraps a typed value into a plain Go value:
// int64 for integers, float64 for doubles, bool, string (timestamps stay
// strings), nil for the null variant, []any for lists and map[string]any
// for maps.
//
// A value with no recognised variant tag is a codec error, not a silent
// drop; callers isolate the failure per field so one bad value never
// aborts a poll cycle.
func DecodeValue(v Value) (any, error) {
	switch {
	case v.StringValue != nil:
		return *v.StringValue, nil
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer %q: %w", ErrDecodeFailed, *v.IntegerValue, err)
		}
		return n, nil
	case v.DoubleValue != nil:
		return *v.DoubleValue, nil
	case v.BooleanValue != nil:
		return *v.BooleanValue, nil
	case v.TimestampValue != nil:
		return *v.TimestampValue, nil
	case v.NullValue != nil:
		return nil, nil
	case v.ArrayValue != nil:
		out := make([]any, 0, len(v.ArrayValue.Values))
		for i, elem := range v.ArrayValue.Values {
			decoded, err := DecodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			out = append(out, decoded)
		}
		return out, nil
	case v.MapValue != nil:
		out := make(map[string]any, len(v.MapValue.Fields))
		for name, elem := range v.MapValue.Fields {
			decoded, err := DecodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			out[name] = decoded
		}
		return out, nil
	default:
		return nil, ErrUnknownVariant
	}
}

// DecodeDocument decodes every top-level named field of a document.
//
// Fields that fail to decode are omitted from the result; their errors are
// joined into the returned error so the caller can log them. The partial
// map is always usable, keeping a single malformed field from spoiling the
// whole cycle.
func DecodeDocument(fields map[string]Value) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	var errs []error

	// Deterministic order keeps joined error messages stable.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decoded, err := DecodeValue(fields[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
			continue
		}
		out[name] = decoded
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("decoding document: %w", joinErrors(errs))
	}
	return out, nil
}

// joinErrors collapses a non-empty error slice into one error.
func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%d fields failed: %s", len(errs), strings.Join(msgs, "; "))
}

// Flatten collapses a nested map into a FlatState by joining nested field
// names with FlatSeparator. Lists are treated as leaves even though their
// elements may themselves be decoded maps.
//
// Flattening is lossy about which separator-joined segments were originally
// nested versus literal: {"a_b": 1} and {"a": {"b": 1}} both flatten to
// key "a_b". This ambiguity is accepted; consumers look keys up against a
// static mapping table and skip absent ones.
func Flatten(nested map[string]any) FlatState {
	flat := make(FlatState)
	flattenInto(flat, nested, "")
	return flat
}

func flattenInto(flat FlatState, nested map[string]any, prefix string) {
	for key, value := range nested {
		if child, ok := value.(map[string]any); ok {
			flattenInto(flat, child, prefix+key+FlatSeparator)
			continue
		}
		flat[prefix+key] = value
	}
}

// Unflatten rebuilds a nested map from a FlatState by splitting keys on
// FlatSeparator. It is the inverse of Flatten for trees whose field names
// contain no separator characters (see the ambiguity note on Flatten).
func Unflatten(flat FlatState) map[string]any {
	nested := make(map[string]any)
	for key, value := range flat {
		segments := strings.Split(key, FlatSeparator)
		node := nested
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = value
	}
	return nested
}

// EncodeValue converts a plain Go value back to its typed wire
// representation. Whole-numbered floats encode as the provider's
// string-encoded integer variant; anything unrecognised falls back to its
// string representation (lossy, last-resort path).
func EncodeValue(v any) Value {
	switch val := v.(type) {
	case nil:
		return Value{NullValue: json.RawMessage("null")}
	case bool:
		return Value{BooleanValue: &val}
	case string:
		return Value{StringValue: &val}
	case int:
		s := strconv.FormatInt(int64(val), 10)
		return Value{IntegerValue: &s}
	case int64:
		s := strconv.FormatInt(val, 10)
		return Value{IntegerValue: &s}
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) && !math.IsNaN(val) {
			s := strconv.FormatInt(int64(val), 10)
			return Value{IntegerValue: &s}
		}
		return Value{DoubleValue: &val}
	case []any:
		values := make([]Value, len(val))
		for i, elem := range val {
			values[i] = EncodeValue(elem)
		}
		return Value{ArrayValue: &ArrayValue{Values: values}}
	case map[string]any:
		fields := make(map[string]Value, len(val))
		for name, elem := range val {
			fields[name] = EncodeValue(elem)
		}
		return Value{MapValue: &MapValue{Fields: fields}}
	default:
		s := fmt.Sprint(val)
		return Value{StringValue: &s}
	}
}

// BuildNestedFields constructs the minimal nested map-variant structure
// representing "set this one leaf", for use as the body of a partial
// update. Each non-terminal segment of the dot-separated path becomes a
// one-entry map variant; the terminal segment holds the encoded value.
//
// Example: BuildNestedFields("modules.ph.status.high_value", v) yields
// {"modules": map{"ph": map{"status": map{"high_value": encode(v)}}}}.
func BuildNestedFields(dotPath string, v any) (map[string]Value, error) {
	if dotPath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(dotPath, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, dotPath)
		}
	}

	// Build from the leaf outward.
	leaf := EncodeValue(v)
	for i := len(segments) - 1; i > 0; i-- {
		leaf = Value{MapValue: &MapValue{Fields: map[string]Value{segments[i]: leaf}}}
	}
	return map[string]Value{segments[0]: leaf}, nil
}

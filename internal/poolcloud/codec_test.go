package poolcloud

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool      { return &b }

// ─── DecodeValue ───────────────────────────────────────────────────

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		want    any
		wantErr bool
	}{
		{"string", Value{StringValue: strPtr("Pool")}, "Pool", false},
		{"integer", Value{IntegerValue: strPtr("740")}, int64(740), false},
		{"negative integer", Value{IntegerValue: strPtr("-12")}, int64(-12), false},
		{"double", Value{DoubleValue: f64Ptr(28.5)}, 28.5, false},
		{"boolean true", Value{BooleanValue: boolPtr(true)}, true, false},
		{"boolean false", Value{BooleanValue: boolPtr(false)}, false, false},
		{"null", Value{NullValue: json.RawMessage("null")}, nil, false},
		{"timestamp passes through", Value{TimestampValue: strPtr("2026-08-30T12:00:00Z")}, "2026-08-30T12:00:00Z", false},
		{
			"list of integers",
			Value{ArrayValue: &ArrayValue{Values: []Value{
				{IntegerValue: strPtr("1")},
				{IntegerValue: strPtr("2")},
			}}},
			[]any{int64(1), int64(2)},
			false,
		},
		{
			"nested map",
			Value{MapValue: &MapValue{Fields: map[string]Value{
				"current": {IntegerValue: strPtr("740")},
			}}},
			map[string]any{"current": int64(740)},
			false,
		},
		{"empty variant", Value{}, nil, true},
		{"malformed integer", Value{IntegerValue: strPtr("not-a-number")}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeValueUnknownVariantError(t *testing.T) {
	_, err := DecodeValue(Value{})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("DecodeValue(empty) error = %v, want ErrUnknownVariant", err)
	}
}

func TestDecodeDocumentIsolatesBadFields(t *testing.T) {
	fields := map[string]Value{
		"good": {IntegerValue: strPtr("5")},
		"bad":  {}, // no variant tag
		"also": {BooleanValue: boolPtr(true)},
	}

	decoded, err := DecodeDocument(fields)
	if err == nil {
		t.Error("DecodeDocument() expected error for bad field, got nil")
	}
	if _, present := decoded["bad"]; present {
		t.Error("bad field should be omitted from result")
	}
	if decoded["good"] != int64(5) || decoded["also"] != true {
		t.Errorf("good fields should survive: %#v", decoded)
	}
}

// ─── Flatten / Unflatten ───────────────────────────────────────────

func TestFlatten(t *testing.T) {
	nested := map[string]any{
		"temperature": 28.5,
		"modules": map[string]any{
			"ph": map[string]any{
				"current": int64(740),
			},
		},
		"relays": []any{
			map[string]any{"name": "relay1"},
		},
	}

	flat := Flatten(nested)

	if flat["temperature"] != 28.5 {
		t.Errorf("temperature = %v, want 28.5", flat["temperature"])
	}
	if flat["modules_ph_current"] != int64(740) {
		t.Errorf("modules_ph_current = %v, want 740", flat["modules_ph_current"])
	}
	// Lists are leaves, even when their elements are maps.
	if _, ok := flat["relays"].([]any); !ok {
		t.Errorf("relays should remain a list leaf, got %#v", flat["relays"])
	}
	if _, present := flat["relays_0_name"]; present {
		t.Error("list elements must not be flattened")
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"main": map[string]any{
			"temperature": 28.5,
			"hasUV":       true,
		},
		"hidro": map[string]any{
			"current": int64(320),
			"level":   int64(700),
		},
		"name": "Garden Pool",
	}

	got := Unflatten(Flatten(nested))
	if !reflect.DeepEqual(got, nested) {
		t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, nested)
	}
}

// ─── EncodeValue ───────────────────────────────────────────────────

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		check func(t *testing.T, v Value)
	}{
		{"nil encodes null", nil, func(t *testing.T, v Value) {
			t.Helper()
			if v.NullValue == nil {
				t.Error("want null variant")
			}
		}},
		{"bool", true, func(t *testing.T, v Value) {
			t.Helper()
			if v.BooleanValue == nil || !*v.BooleanValue {
				t.Error("want boolean variant true")
			}
		}},
		{"string", "auto", func(t *testing.T, v Value) {
			t.Helper()
			if v.StringValue == nil || *v.StringValue != "auto" {
				t.Error("want string variant")
			}
		}},
		{"int", 7, func(t *testing.T, v Value) {
			t.Helper()
			if v.IntegerValue == nil || *v.IntegerValue != "7" {
				t.Errorf("want integer variant \"7\", got %+v", v)
			}
		}},
		{"integral float encodes as integer string", 740.0, func(t *testing.T, v Value) {
			t.Helper()
			if v.IntegerValue == nil || *v.IntegerValue != "740" {
				t.Errorf("want integer variant \"740\", got %+v", v)
			}
		}},
		{"fractional float encodes as double", 7.4, func(t *testing.T, v Value) {
			t.Helper()
			if v.DoubleValue == nil || *v.DoubleValue != 7.4 {
				t.Errorf("want double variant 7.4, got %+v", v)
			}
		}},
		{"list", []any{int64(1), "x"}, func(t *testing.T, v Value) {
			t.Helper()
			if v.ArrayValue == nil || len(v.ArrayValue.Values) != 2 {
				t.Fatalf("want 2-element list variant, got %+v", v)
			}
			if v.ArrayValue.Values[0].IntegerValue == nil {
				t.Error("first element should be integer variant")
			}
		}},
		{"map", map[string]any{"on": true}, func(t *testing.T, v Value) {
			t.Helper()
			if v.MapValue == nil || v.MapValue.Fields["on"].BooleanValue == nil {
				t.Errorf("want map variant with boolean field, got %+v", v)
			}
		}},
		{"unknown type falls back to string", struct{ X int }{1}, func(t *testing.T, v Value) {
			t.Helper()
			if v.StringValue == nil {
				t.Errorf("want string fallback, got %+v", v)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, EncodeValue(tt.input))
		})
	}
}

func TestEncodeDecodeScalarRoundTrip(t *testing.T) {
	inputs := []any{int64(42), 28.5, true, "auto", nil}

	for _, input := range inputs {
		decoded, err := DecodeValue(EncodeValue(input))
		if err != nil {
			t.Errorf("round trip of %#v: %v", input, err)
			continue
		}
		if !reflect.DeepEqual(decoded, input) {
			t.Errorf("round trip of %#v = %#v", input, decoded)
		}
	}
}

// ─── BuildNestedFields ─────────────────────────────────────────────

func TestBuildNestedFields(t *testing.T) {
	fields, err := BuildNestedFields("modules.ph.status.high_value", "720")
	if err != nil {
		t.Fatalf("BuildNestedFields() error = %v", err)
	}

	modules, ok := fields["modules"]
	if !ok || modules.MapValue == nil {
		t.Fatalf("want map variant at modules, got %+v", fields)
	}
	ph := modules.MapValue.Fields["ph"]
	if ph.MapValue == nil {
		t.Fatal("want map variant at modules.ph")
	}
	status := ph.MapValue.Fields["status"]
	if status.MapValue == nil {
		t.Fatal("want map variant at modules.ph.status")
	}
	leaf := status.MapValue.Fields["high_value"]
	if leaf.StringValue == nil || *leaf.StringValue != "720" {
		t.Errorf("leaf = %+v, want string \"720\"", leaf)
	}
	// Each non-terminal segment is a one-entry map.
	if len(modules.MapValue.Fields) != 1 || len(ph.MapValue.Fields) != 1 {
		t.Error("intermediate maps must have exactly one entry")
	}
}

func TestBuildNestedFieldsSingleSegment(t *testing.T) {
	fields, err := BuildNestedFields("temperature", 28.0)
	if err != nil {
		t.Fatalf("BuildNestedFields() error = %v", err)
	}
	leaf, ok := fields["temperature"]
	if !ok || leaf.IntegerValue == nil || *leaf.IntegerValue != "28" {
		t.Errorf("leaf = %+v, want integer \"28\"", leaf)
	}
}

func TestBuildNestedFieldsInvalidPath(t *testing.T) {
	tests := []string{"", "a..b", ".a", "a."}
	for _, path := range tests {
		if _, err := BuildNestedFields(path, 1); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("BuildNestedFields(%q) error = %v, want ErrInvalidPath", path, err)
		}
	}
}

// ─── Wire format ───────────────────────────────────────────────────

func TestValueJSONWireFormat(t *testing.T) {
	// Integers travel as strings; this is the one wire detail worth pinning.
	raw := []byte(`{"integerValue":"740"}`)
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	decoded, err := DecodeValue(v)
	if err != nil || decoded != int64(740) {
		t.Errorf("decoded = %v (err %v), want 740", decoded, err)
	}

	out, err := json.Marshal(EncodeValue(740.0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"integerValue":"740"}` {
		t.Errorf("marshalled = %s, want integerValue string", out)
	}
}

package pool

import (
	"fmt"
	"math"
	"strconv"
)

// Transform converts a decoded remote value into the capability value
// exposed to the host. Transforms never fail: unexpected inputs degrade to
// a documented default rather than aborting the poll cycle.
type Transform func(v any) any

// Inverse converts a capability value back into the remote wire value for a
// write. Like Transform, it never fails.
type Inverse func(v any) any

// Scaling constants used by the remote document.
const (
	phScale         = 100
	hydrolysisScale = 10
	secondsPerHour  = 3600
)

// toFloat coerces the numeric types the codec produces into float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toInt coerces the numeric types the codec produces into int64.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// scaleDown returns a Transform dividing the remote value by factor.
// pH is stored remotely as an integer scaled by 100 (740 -> 7.4) and the
// salt/hydrolysis level by 10 (320 -> 32.0).
func scaleDown(factor float64) Transform {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return f / factor
	}
}

// scaleUp returns an Inverse multiplying the capability value by factor,
// producing the remote integer representation.
func scaleUp(factor float64) Inverse {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return int64(math.Round(f * factor))
	}
}

// scaleUpString returns an Inverse multiplying by factor and string-encoding
// the result; the pH setpoint is string-encoded on write.
func scaleUpString(factor float64) Inverse {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Sprint(v)
		}
		return strconv.FormatInt(int64(math.Round(f*factor)), 10)
	}
}

// secondsToHours converts a runtime in seconds to rounded whole hours.
// 7260 seconds -> 2 hours.
func secondsToHours(v any) any {
	f, ok := toFloat(v)
	if !ok {
		return v
	}
	return int64(math.Round(f / secondsPerHour))
}

// boolFromCode converts the remote 0/1 status codes to booleans.
// Any nonzero code reads as true.
func boolFromCode(v any) any {
	if b, ok := v.(bool); ok {
		return b
	}
	i, ok := toInt(v)
	if !ok {
		return false
	}
	return i != 0
}

// codeFromBool converts a boolean capability value to the remote 0/1 code.
func codeFromBool(v any) any {
	if b, ok := v.(bool); ok && b {
		return int64(1)
	}
	return int64(0)
}

// ─── Enumerations ────────────────────────────────────────────────────────────
//
// Each enumeration is a bidirectional code↔label table with a documented
// default in both directions. Lookups never fail: an unrecognised remote
// code degrades to the default label and an unrecognised local label
// degrades to the default code.

// Enum is a bidirectional code↔label table.
type Enum struct {
	labels       map[int64]string
	codes        map[string]int64
	defaultLabel string
	defaultCode  int64
}

// newEnum builds an Enum from code→label pairs.
func newEnum(pairs map[int64]string, defaultLabel string, defaultCode int64) Enum {
	codes := make(map[string]int64, len(pairs))
	for code, label := range pairs {
		codes[label] = code
	}
	return Enum{
		labels:       pairs,
		codes:        codes,
		defaultLabel: defaultLabel,
		defaultCode:  defaultCode,
	}
}

// Label returns the label for a remote code, or the default label for an
// unrecognised code.
func (e Enum) Label(code int64) string {
	if label, ok := e.labels[code]; ok {
		return label
	}
	return e.defaultLabel
}

// Code returns the remote code for a label, or the default code for an
// unrecognised label.
func (e Enum) Code(label string) int64 {
	if code, ok := e.codes[label]; ok {
		return code
	}
	return e.defaultCode
}

// Transform returns the forward (code→label) transform for this enum.
func (e Enum) Transform(v any) any {
	i, ok := toInt(v)
	if !ok {
		return e.defaultLabel
	}
	return e.Label(i)
}

// Inverse returns the reverse (label→code) transform for this enum.
func (e Enum) Inverse(v any) any {
	s, ok := v.(string)
	if !ok {
		return e.defaultCode
	}
	return e.Code(s)
}

// Enumeration tables for the mapped remote fields.
var (
	// filtrationModes: remote filtration.mode codes.
	filtrationModes = newEnum(map[int64]string{
		0: "manual",
		1: "auto",
		2: "heating",
		3: "smart",
		4: "intelligent",
	}, "auto", 0)

	// filtrationSpeeds: remote filtration.manVel codes.
	filtrationSpeeds = newEnum(map[int64]string{
		1: "slow",
		2: "medium",
		3: "fast",
	}, "slow", 1)

	// backwashModes: remote backwash.mode codes.
	backwashModes = newEnum(map[int64]string{
		0: "manual",
		1: "automatic",
	}, "manual", 0)

	// lightModes: remote light.mode codes.
	lightModes = newEnum(map[int64]string{
		0: "disabled",
		1: "manual",
		2: "auto",
	}, "manual", 0)

	// relayModes: remote relays.relayN.mode codes.
	relayModes = newEnum(map[int64]string{
		0: "disabled",
		1: "auto",
		2: "manual",
	}, "auto", 1)
)

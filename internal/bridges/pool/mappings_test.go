package pool

import (
	"strings"
	"testing"
)

// =============================================================================
// Table Integrity
// =============================================================================

func TestMappingTablesUnique(t *testing.T) {
	seenCaps := make(map[string]bool)
	seenKeys := make(map[string]bool)

	check := func(key, capability string) {
		t.Helper()
		if key == "" || capability == "" {
			t.Errorf("mapping with empty key or capability: %q -> %q", key, capability)
		}
		if seenCaps[capability] {
			t.Errorf("duplicate capability %q", capability)
		}
		if seenKeys[key] {
			t.Errorf("duplicate document key %q", key)
		}
		seenCaps[capability] = true
		seenKeys[key] = true
	}

	for _, m := range fieldMappings {
		check(m.Key, m.Capability)
	}
	for _, m := range settableMappings {
		check(m.Key, m.Capability)
	}
}

func TestSettableWritePathsMatchKeys(t *testing.T) {
	// The flat key is the write path with dots replaced by underscores;
	// a divergence means reads and writes address different fields.
	for _, m := range settableMappings {
		if m.WritePath == "" {
			t.Errorf("settable %q has no write path", m.Capability)
			continue
		}
		flattened := strings.ReplaceAll(m.WritePath, ".", "_")
		if flattened != m.Key {
			t.Errorf("settable %q: write path %q flattens to %q, key is %q",
				m.Capability, m.WritePath, flattened, m.Key)
		}
	}
}

// =============================================================================
// Trigger Bindings
// =============================================================================

func TestTriggerLookup(t *testing.T) {
	tests := []struct {
		capability string
		rising     string
		falling    string
	}{
		{"filtration_on", "filtration_started", "filtration_stopped"},
		{"backwash_on", "backwash_started", "backwash_stopped"},
		{"light_on", "light_turned_on", "light_turned_off"},
	}

	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			binding, ok := triggerByCapability[tt.capability]
			if !ok {
				t.Fatalf("no trigger binding for %q", tt.capability)
			}
			if binding.Rising != tt.rising {
				t.Errorf("rising = %q, want %q", binding.Rising, tt.rising)
			}
			if binding.Falling != tt.falling {
				t.Errorf("falling = %q, want %q", binding.Falling, tt.falling)
			}
		})
	}
}

func TestTriggerBindingsReferenceMappedCapabilities(t *testing.T) {
	mapped := make(map[string]bool)
	for _, m := range fieldMappings {
		mapped[m.Capability] = true
	}
	for _, m := range settableMappings {
		mapped[m.Capability] = true
	}

	for _, b := range triggerBindings {
		if !mapped[b.Capability] {
			t.Errorf("trigger binding references unmapped capability %q", b.Capability)
		}
	}
}

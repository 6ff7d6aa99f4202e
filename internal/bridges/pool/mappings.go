package pool

// FieldMapping binds a flat remote document key to a local capability.
// This is the single authoritative source for which remote fields the
// bridge understands: the poll cycle, provisioning, and tests all read
// from these tables. Unmapped remote fields are ignored.
type FieldMapping struct {
	Key        string    // Flat document key (e.g. "modules_ph_current")
	Capability string    // Local capability name (e.g. "ph")
	Optional   bool      // Provision lazily on first observation
	Transform  Transform // Optional forward transform (nil = pass through)
}

// SettableMapping extends FieldMapping with a write path addressing the
// nested document directly (dot-separated, not the flattened key) and an
// optional inverse transform applied before the write.
type SettableMapping struct {
	FieldMapping
	WritePath string  // Nested dot path (e.g. "modules.ph.status.high_value")
	Inverse   Inverse // Optional inverse transform (nil = pass through)
}

// TriggerBinding fires edge events when a boolean capability transitions.
// Rising fires on false→true, Falling on true→false. No event fires on the
// first observation of a capability (previous value undefined).
type TriggerBinding struct {
	Capability string
	Rising     string
	Falling    string
}

// fieldMappings lists the read-only telemetry fields.
var fieldMappings = []FieldMapping{
	// ── Water chemistry ──────────────────────────────────────
	{Key: "main_temperature", Capability: "water_temp"},
	{Key: "modules_ph_current", Capability: "ph", Transform: scaleDown(phScale)},
	{Key: "modules_rx_current", Capability: "redox", Optional: true},
	{Key: "modules_cl_current", Capability: "chlorine", Optional: true},

	// ── Hydrolysis cell ──────────────────────────────────────
	{Key: "hidro_current", Capability: "hydrolysis_level", Transform: scaleDown(hydrolysisScale)},
	{Key: "hidro_cellTotalTime", Capability: "cell_runtime_hours", Transform: secondsToHours},
	{Key: "hidro_cellPartialTime", Capability: "cell_partial_hours", Optional: true, Transform: secondsToHours},

	// ── Status booleans (trigger-bound) ──────────────────────
	{Key: "filtration_status", Capability: "filtration_on", Transform: boolFromCode},
	{Key: "backwash_status", Capability: "backwash_on", Optional: true, Transform: boolFromCode},
	{Key: "light_status", Capability: "light_on", Optional: true, Transform: boolFromCode},
}

// settableMappings lists the fields that accept writes from the host.
var settableMappings = []SettableMapping{
	{
		FieldMapping: FieldMapping{
			Key:        "modules_ph_status_high_value",
			Capability: "ph_setpoint",
			Transform:  scaleDown(phScale),
		},
		WritePath: "modules.ph.status.high_value",
		// The remote side expects the pH setpoint string-encoded.
		Inverse: scaleUpString(phScale),
	},
	{
		FieldMapping: FieldMapping{
			Key:        "hidro_level",
			Capability: "hydrolysis_setpoint",
			Transform:  scaleDown(hydrolysisScale),
		},
		WritePath: "hidro.level",
		Inverse:   scaleUp(hydrolysisScale),
	},
	{
		FieldMapping: FieldMapping{
			Key:        "filtration_mode",
			Capability: "filtration_mode",
			Transform:  filtrationModes.Transform,
		},
		WritePath: "filtration.mode",
		Inverse:   filtrationModes.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "filtration_manVel",
			Capability: "filtration_speed",
			Optional:   true,
			Transform:  filtrationSpeeds.Transform,
		},
		WritePath: "filtration.manVel",
		Inverse:   filtrationSpeeds.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "backwash_mode",
			Capability: "backwash_mode",
			Optional:   true,
			Transform:  backwashModes.Transform,
		},
		WritePath: "backwash.mode",
		Inverse:   backwashModes.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "light_mode",
			Capability: "light_mode",
			Optional:   true,
			Transform:  lightModes.Transform,
		},
		WritePath: "light.mode",
		Inverse:   lightModes.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "relays_relay1_mode",
			Capability: "relay1_mode",
			Optional:   true,
			Transform:  relayModes.Transform,
		},
		WritePath: "relays.relay1.mode",
		Inverse:   relayModes.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "relays_relay2_mode",
			Capability: "relay2_mode",
			Optional:   true,
			Transform:  relayModes.Transform,
		},
		WritePath: "relays.relay2.mode",
		Inverse:   relayModes.Inverse,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "hidro_cloration_enabled",
			Capability: "chlorination_on",
			Optional:   true,
			Transform:  boolFromCode,
		},
		WritePath: "hidro.cloration_enabled",
		Inverse:   codeFromBool,
	},
	{
		FieldMapping: FieldMapping{
			Key:        "modules_io_activation",
			Capability: "ionization_on",
			Optional:   true,
			Transform:  boolFromCode,
		},
		WritePath: "modules.io.activation",
		Inverse:   codeFromBool,
	},
}

// triggerBindings lists edge events for boolean capabilities.
var triggerBindings = []TriggerBinding{
	{Capability: "filtration_on", Rising: "filtration_started", Falling: "filtration_stopped"},
	{Capability: "backwash_on", Rising: "backwash_started", Falling: "backwash_stopped"},
	{Capability: "light_on", Rising: "light_turned_on", Falling: "light_turned_off"},
}

// triggerByCapability is built once at init for O(1) lookup per commit.
var triggerByCapability map[string]TriggerBinding

func init() {
	triggerByCapability = make(map[string]TriggerBinding, len(triggerBindings))
	for _, tb := range triggerBindings {
		triggerByCapability[tb.Capability] = tb
	}
}

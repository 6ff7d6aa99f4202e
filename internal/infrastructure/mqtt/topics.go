package mqtt

import "fmt"

// Topic prefixes for the pool bridge MQTT namespace.
//
// All capability topics use the flat scheme:
// poolbridge/{category}/{pool_id}/{capability}
const (
	// TopicPrefix is the base for all pool bridge topics.
	TopicPrefix = "poolbridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "poolbridge/system"
)

// Topics provides builders for pool bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.CapabilityState("pool-1", "ph")
//	// Returns: "poolbridge/state/pool-1/ph"
type Topics struct{}

// CapabilityState returns the topic for capability value updates.
//
// Example: poolbridge/state/pool-1/ph
func (Topics) CapabilityState(poolID, capability string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, poolID, capability)
}

// CapabilityCommand returns the topic for set-requests to a capability.
//
// Example: poolbridge/command/pool-1/ph_setpoint
func (Topics) CapabilityCommand(poolID, capability string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, poolID, capability)
}

// CapabilityAck returns the topic for set-request acknowledgements.
//
// Example: poolbridge/ack/pool-1/ph_setpoint
func (Topics) CapabilityAck(poolID, capability string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, poolID, capability)
}

// Event returns the topic for edge-triggered events.
//
// Example: poolbridge/event/pool-1/backwash_started
func (Topics) Event(poolID, event string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, poolID, event)
}

// DeviceStatus returns the availability topic for a pool device.
//
// Example: poolbridge/status/pool-1
func (Topics) DeviceStatus(poolID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, poolID)
}

// SystemStatus returns the bridge process status topic.
//
// Example: poolbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching set-requests for every capability
// of a pool.
//
// Pattern: poolbridge/command/pool-1/+
func (Topics) AllCommands(poolID string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, poolID)
}

// AllStates returns a pattern matching all capability state updates.
//
// Pattern: poolbridge/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllEvents returns a pattern matching all edge-triggered events.
//
// Pattern: poolbridge/event/+/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+/+", TopicPrefix)
}

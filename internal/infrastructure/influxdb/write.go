package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCapabilityMetric writes a single numeric capability reading.
//
// This is the primary method for recording pool telemetry after each poll.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - poolID: Identifier of the pool document
//   - capability: The capability name (e.g., "ph", "water_temp")
//   - value: The derived numeric value
//
// Example:
//
//	client.WriteCapabilityMetric("pool-1", "ph", 7.4)
//	client.WriteCapabilityMetric("pool-1", "water_temp", 28.5)
func (c *Client) WriteCapabilityMetric(poolID string, capability string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"capability_state",
		map[string]string{
			"pool_id":    poolID,
			"capability": capability,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEvent records an edge-triggered event occurrence.
//
// Events carry no numeric payload; the point's value field is always 1 so
// queries can count occurrences over time.
//
// Parameters:
//   - poolID: Identifier of the pool document
//   - event: Event name (e.g., "backwash_started", "filtration_stopped")
func (c *Client) WriteEvent(poolID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pool_events",
		map[string]string{
			"pool_id": poolID,
			"event":   event,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollStats records statistics about a completed poll cycle.
//
// Parameters:
//   - poolID: Identifier of the pool document
//   - fields: Cycle statistics (e.g., duration_ms, changed_fields, decode_errors)
func (c *Client) WritePollStats(poolID string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_cycle",
		map[string]string{
			"pool_id": poolID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

package mqtt

import (
	"strings"
	"testing"
)

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"capability state", topics.CapabilityState("pool-1", "ph"), "poolbridge/state/pool-1/ph"},
		{"capability command", topics.CapabilityCommand("pool-1", "ph_setpoint"), "poolbridge/command/pool-1/ph_setpoint"},
		{"capability ack", topics.CapabilityAck("pool-1", "ph_setpoint"), "poolbridge/ack/pool-1/ph_setpoint"},
		{"event", topics.Event("pool-1", "backwash_started"), "poolbridge/event/pool-1/backwash_started"},
		{"device status", topics.DeviceStatus("pool-1"), "poolbridge/status/pool-1"},
		{"system status", topics.SystemStatus(), "poolbridge/system/status"},
		{"all commands", topics.AllCommands("pool-1"), "poolbridge/command/pool-1/+"},
		{"all states", topics.AllStates(), "poolbridge/state/+/+"},
		{"all events", topics.AllEvents(), "poolbridge/event/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Status Payload Tests
// =============================================================================

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("poolbridge-test")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"poolbridge-test"`) {
		t.Errorf("online payload missing client_id: %s", online)
	}

	offline := buildOfflinePayload("poolbridge-test")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("poolbridge/state/pool-1/ph", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("invalid QoS: error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	handler := func(topic string, payload []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); err != ErrInvalidTopic {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("poolbridge/command/pool-1/+", 5, handler); err != ErrInvalidQoS {
		t.Errorf("invalid QoS: error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("poolbridge/command/pool-1/+") {
		t.Error("HasSubscription() = true for untracked topic")
	}
}

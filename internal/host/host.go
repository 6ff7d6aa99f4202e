package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-pool/internal/bridges/pool"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/mqtt"
)

// MessageBus is the MQTT surface the host publishes and subscribes on.
// Satisfied by *mqtt.Client; narrowed for mocking in tests.
type MessageBus interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// capState is the in-memory view of one capability.
type capState struct {
	value   any
	defined bool
}

// statePayload is the retained per-capability state message.
type statePayload struct {
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// eventPayload is the non-retained event message.
type eventPayload struct {
	Event     string `json:"event"`
	PoolID    string `json:"pool_id"`
	Timestamp string `json:"timestamp"`
}

// commandPayload is the expected shape of inbound set-requests.
type commandPayload struct {
	Value any `json:"value"`
}

// ackPayload is the reply published for every processed set-request.
type ackPayload struct {
	Capability string `json:"capability"`
	Status     string `json:"status"` // "ok" or "error"
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// statusPayload is the retained device availability message.
type statusPayload struct {
	Online    bool   `json:"online"`
	Reason    string `json:"reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Options holds configuration for creating a Host.
type Options struct {
	// PoolID identifies the pool this host fronts.
	PoolID string

	// Repository persists capabilities across restarts.
	Repository Repository

	// Bus publishes state, events, acks, and status, and receives
	// commands.
	Bus MessageBus

	// Logger is optional structured logging.
	Logger Logger
}

// Host is the local side of the bridge: it stores capability values in
// SQLite, mirrors every commit to a retained MQTT state topic, dispatches
// edge events, and routes inbound MQTT commands to registered listeners
// with a per-command acknowledgement.
//
// Host implements the bridge's DeviceHost interface.
//
// Thread Safety: All methods are safe for concurrent use.
type Host struct {
	poolID string
	repo   Repository
	bus    MessageBus
	logger Logger // may be nil

	topics mqtt.Topics

	mu        sync.RWMutex
	caps      map[string]*capState
	listeners map[string]pool.SetListener

	statusMu sync.Mutex
	online   bool
	reason   string
	warning  string
}

// New creates a Host. Call Start to load persisted capabilities and begin
// receiving commands.
func New(opts Options) (*Host, error) {
	if opts.PoolID == "" {
		return nil, fmt.Errorf("pool id is required")
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("message bus is required")
	}

	return &Host{
		poolID:    opts.PoolID,
		repo:      opts.Repository,
		bus:       opts.Bus,
		logger:    opts.Logger,
		caps:      make(map[string]*capState),
		listeners: make(map[string]pool.SetListener),
	}, nil
}

// Start loads persisted capabilities into memory and subscribes to the
// pool's command topics. Persisted values survive restarts so automation
// sees the last known state immediately.
func (h *Host) Start(ctx context.Context) error {
	capabilities, err := h.repo.List(ctx, h.poolID)
	if err != nil {
		return fmt.Errorf("loading capabilities: %w", err)
	}

	h.mu.Lock()
	for _, c := range capabilities {
		h.caps[c.Name] = &capState{value: c.Value, defined: c.Defined}
	}
	loaded := len(h.caps)
	h.mu.Unlock()

	h.restoreStatus(ctx)

	if err := h.bus.Subscribe(h.topics.AllCommands(h.poolID), 1, h.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	h.logInfo("host started", "pool", h.poolID, "capabilities", loaded)
	return nil
}

// restoreStatus republishes the last persisted availability status so the
// retained status topic is correct before the first poll completes.
func (h *Host) restoreStatus(ctx context.Context) {
	raw, err := h.repo.GetSetting(ctx, settingDeviceStatus)
	if err != nil {
		if !errors.Is(err, ErrSettingNotFound) {
			h.logError("failed to load persisted status", "error", err)
		}
		return
	}

	var status statusPayload
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		h.logError("failed to decode persisted status", "error", err)
		return
	}

	h.statusMu.Lock()
	h.online = status.Online
	h.reason = status.Reason
	h.warning = status.Warning
	h.statusMu.Unlock()

	if err := h.publishStatus(); err != nil {
		h.logError("failed to republish status", "error", err)
	}
}

// ─── DeviceHost Implementation ───────────────────────────────────────────────

// EnsureCapability provisions a capability if not already present.
// Idempotent; concurrent callers are serialized.
func (h *Host) EnsureCapability(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.caps[name]; ok {
		return nil
	}

	err := h.repo.Create(context.Background(), &Capability{
		Name:   name,
		PoolID: h.poolID,
		Kind:   kindOf(name),
	})
	if err != nil && !errors.Is(err, ErrCapabilityExists) {
		return fmt.Errorf("provisioning capability %s: %w", name, err)
	}

	h.caps[name] = &capState{}
	h.logInfo("capability provisioned", "capability", name)
	return nil
}

// CapabilityValue returns the last committed value and whether one has
// ever been committed.
func (h *Host) CapabilityValue(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.caps[name]
	if !ok || !c.defined {
		return nil, false
	}
	return c.value, true
}

// SetCapabilityValue commits a new value: memory, SQLite, then a retained
// MQTT state message.
func (h *Host) SetCapabilityValue(name string, value any) error {
	h.mu.Lock()
	c, ok := h.caps[name]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCapabilityNotFound, name)
	}
	c.value = value
	c.defined = true
	h.mu.Unlock()

	if err := h.repo.UpdateValue(context.Background(), name, value); err != nil {
		return fmt.Errorf("persisting %s: %w", name, err)
	}

	payload, err := json.Marshal(statePayload{
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling state for %s: %w", name, err)
	}
	if err := h.bus.PublishRetained(h.topics.CapabilityState(h.poolID, name), payload); err != nil {
		return fmt.Errorf("publishing state for %s: %w", name, err)
	}

	return nil
}

// RegisterSetListener installs the handler for set-requests targeting a
// capability and marks it writable in the store.
func (h *Host) RegisterSetListener(name string, listener pool.SetListener) error {
	if listener == nil {
		return fmt.Errorf("nil listener for %s", name)
	}

	h.mu.Lock()
	h.listeners[name] = listener
	h.mu.Unlock()

	if err := h.repo.SetWritable(context.Background(), name, true); err != nil &&
		!errors.Is(err, ErrCapabilityNotFound) {
		return fmt.Errorf("marking %s writable: %w", name, err)
	}
	return nil
}

// FireTrigger dispatches an edge event as a non-retained MQTT message.
func (h *Host) FireTrigger(event string) error {
	payload, err := json.Marshal(eventPayload{
		Event:     event,
		PoolID:    h.poolID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling event %s: %w", event, err)
	}
	if err := h.bus.PublishEvent(h.topics.Event(h.poolID, event), payload); err != nil {
		return fmt.Errorf("publishing event %s: %w", event, err)
	}

	h.logDebug("event fired", "event", event)
	return nil
}

// SetAvailable marks the device reachable.
func (h *Host) SetAvailable() error {
	h.statusMu.Lock()
	h.online = true
	h.reason = ""
	h.statusMu.Unlock()
	return h.publishStatus()
}

// SetUnavailable marks the device unreachable with an actionable reason.
func (h *Host) SetUnavailable(reason string) error {
	h.statusMu.Lock()
	h.online = false
	h.reason = reason
	h.statusMu.Unlock()
	return h.publishStatus()
}

// SetWarning attaches a degraded-state warning without affecting
// availability.
func (h *Host) SetWarning(message string) error {
	h.statusMu.Lock()
	h.warning = message
	h.statusMu.Unlock()
	return h.publishStatus()
}

// ClearWarning removes any degraded-state warning.
func (h *Host) ClearWarning() error {
	h.statusMu.Lock()
	h.warning = ""
	h.statusMu.Unlock()
	return h.publishStatus()
}

// settingDeviceStatus is the settings key the current availability status
// persists under.
const settingDeviceStatus = "device_status"

// publishStatus mirrors the current availability fields to the retained
// device status topic and persists them for restart recovery.
func (h *Host) publishStatus() error {
	h.statusMu.Lock()
	status := statusPayload{
		Online:    h.online,
		Reason:    h.reason,
		Warning:   h.warning,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.statusMu.Unlock()

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}

	if err := h.repo.SetSetting(context.Background(), settingDeviceStatus, string(payload)); err != nil {
		h.logError("failed to persist status", "error", err)
	}

	if err := h.bus.PublishRetained(h.topics.DeviceStatus(h.poolID), payload); err != nil {
		return fmt.Errorf("publishing status: %w", err)
	}
	return nil
}

// ─── Command Handling ────────────────────────────────────────────────────────

// handleCommand routes an inbound set-request to its listener and publishes
// an acknowledgement either way.
func (h *Host) handleCommand(topic string, payload []byte) error {
	capability := capabilityFromTopic(topic)
	if capability == "" {
		return fmt.Errorf("malformed command topic: %s", topic)
	}

	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		h.publishAck(capability, fmt.Errorf("invalid command payload: %w", err))
		return fmt.Errorf("decoding command for %s: %w", capability, err)
	}

	h.mu.RLock()
	listener, ok := h.listeners[capability]
	h.mu.RUnlock()
	if !ok {
		h.publishAck(capability, fmt.Errorf("%w: %s", ErrNotWritable, capability))
		return fmt.Errorf("%w: %s", ErrNotWritable, capability)
	}

	err := listener(context.Background(), cmd.Value)
	h.publishAck(capability, err)
	if err != nil {
		return fmt.Errorf("applying command for %s: %w", capability, err)
	}

	h.logDebug("command applied", "capability", capability)
	return nil
}

// publishAck reports the outcome of a set-request. Ack failures are logged,
// not propagated; the command outcome stands regardless.
func (h *Host) publishAck(capability string, cmdErr error) {
	ack := ackPayload{
		Capability: capability,
		Status:     "ok",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if cmdErr != nil {
		ack.Status = "error"
		ack.Error = cmdErr.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		h.logError("failed to marshal ack", "capability", capability, "error", err)
		return
	}
	if err := h.bus.PublishEvent(h.topics.CapabilityAck(h.poolID, capability), payload); err != nil {
		h.logError("failed to publish ack", "capability", capability, "error", err)
	}
}

// capabilityFromTopic extracts the capability name from a command topic
// (poolbridge/command/{pool_id}/{capability}).
func capabilityFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return ""
	}
	return parts[3]
}

// kindOf classifies a capability name for the store's kind column.
func kindOf(name string) string {
	switch {
	case strings.HasSuffix(name, "_on"):
		return "switch"
	case strings.HasSuffix(name, "_mode") || strings.HasSuffix(name, "_speed"):
		return "mode"
	case strings.HasSuffix(name, "_setpoint"):
		return "setpoint"
	default:
		return "sensor"
	}
}

// ─── Logging ─────────────────────────────────────────────────────────────────

func (h *Host) logDebug(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}

func (h *Host) logInfo(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
	}
}

func (h *Host) logError(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Error(msg, args...)
	}
}

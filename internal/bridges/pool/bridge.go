package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-pool/internal/poolcloud"
)

// Bridge operation constants.
const (
	// reconcileDelay is the one-shot delay between a successful write and
	// the reconciliation poll that observes the remote device's resulting
	// authoritative state.
	reconcileDelay = 3 * time.Second
)

// State is the bridge's polling state for its managed pool.
type State int

// Polling states.
const (
	// StateUninitialized is the state before the first successful fetch.
	StateUninitialized State = iota

	// StatePolling is the steady state, timer-driven.
	StatePolling

	// StateNeedsCredentials is reached when a fetch fails with an
	// authentication error. Terminal until ResetCredentials is called.
	StateNeedsCredentials
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePolling:
		return "polling"
	case StateNeedsCredentials:
		return "needs_credentials"
	default:
		return "unknown"
	}
}

// PoolAPI is the remote document interface the bridge polls and writes.
// Satisfied by *poolcloud.Client; narrowed for mocking in tests.
type PoolAPI interface {
	// Fetch returns the pool document as a flat key→value map.
	Fetch(ctx context.Context, poolID string) (poolcloud.FlatState, error)

	// Write issues a partial update setting a single nested field path.
	Write(ctx context.Context, poolID, dotPath string, value any) error
}

// SetListener is invoked by the host when automation or a user requests a
// new value for a settable capability.
type SetListener func(ctx context.Context, value any) error

// DeviceHost is the local automation runtime boundary: capability storage,
// dynamic provisioning, availability flags, and trigger dispatch.
type DeviceHost interface {
	// EnsureCapability provisions a capability if not already present.
	// Idempotent.
	EnsureCapability(name string) error

	// CapabilityValue returns the last committed value for a capability
	// and whether one has ever been committed.
	CapabilityValue(name string) (any, bool)

	// SetCapabilityValue commits a new capability value.
	SetCapabilityValue(name string, value any) error

	// RegisterSetListener registers the handler invoked on set-requests
	// for a capability.
	RegisterSetListener(name string, listener SetListener) error

	// FireTrigger dispatches an edge-triggered event.
	FireTrigger(event string) error

	// SetAvailable marks the device reachable.
	SetAvailable() error

	// SetUnavailable marks the device unreachable with an actionable message.
	SetUnavailable(reason string) error

	// SetWarning attaches a degraded-state warning without affecting
	// availability.
	SetWarning(message string) error

	// ClearWarning removes any degraded-state warning.
	ClearWarning() error
}

// Telemetry receives committed capability values, fired events, and poll
// cycle statistics. Satisfied by *influxdb.Client; optional.
type Telemetry interface {
	WriteCapabilityMetric(poolID string, capability string, value float64)
	WriteEvent(poolID string, event string)
	WritePollStats(poolID string, fields map[string]interface{})
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// PoolID identifies the managed pool document.
	PoolID string

	// PollInterval is the recurring poll period.
	PollInterval time.Duration

	// API is the remote document client.
	API PoolAPI

	// Host is the local automation runtime boundary.
	Host DeviceHost

	// Telemetry is an optional sink for committed values and events.
	Telemetry Telemetry

	// Logger is optional structured logging.
	Logger Logger
}

// Bridge drives one pool: it polls the remote document on a timer, diffs
// against the host's stored capability values, fires edge-triggered events,
// provisions capabilities lazily, registers write listeners once, and
// applies writes back through the PoolAPI with a delayed reconciliation
// poll.
//
// Thread Safety: All methods are safe for concurrent use. Set listeners
// invoked by the host may run concurrently with an in-flight poll; both
// serialize through the PoolAPI's own session state.
type Bridge struct {
	poolID   string
	interval time.Duration
	api      PoolAPI
	host     DeviceHost

	telemetry Telemetry // may be nil
	logger    Logger    // may be nil

	// registered tracks capabilities whose set listener is installed,
	// so repeated observations never double-register.
	registered map[string]bool
	regMu      sync.Mutex

	// state is the per-pool polling state machine.
	state   State
	stateMu sync.RWMutex

	// inFlight guards against overlapping poll cycles when a fetch takes
	// longer than the poll interval.
	inFlight atomic.Bool

	// schedule defers a reconciliation poll. Defaults to time.AfterFunc;
	// replaceable in tests to observe scheduling.
	schedule func(d time.Duration, fn func())

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a bridge instance. Call Start to begin polling.
func New(opts Options) (*Bridge, error) {
	if opts.PoolID == "" {
		return nil, fmt.Errorf("pool id is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("pool API client is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("device host is required")
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	b := &Bridge{
		poolID:     opts.PoolID,
		interval:   opts.PollInterval,
		api:        opts.API,
		host:       opts.Host,
		telemetry:  opts.Telemetry,
		logger:     opts.Logger,
		registered: make(map[string]bool),
		state:      StateUninitialized,
		done:       make(chan struct{}),
	}
	b.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}

	return b, nil
}

// Start begins timer-driven polling. An immediate first poll runs before
// the recurring interval starts.
func (b *Bridge) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop halts polling and waits for an in-flight cycle to finish.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.logInfo("bridge stopped", "pool", b.poolID)
	})
}

// State returns the current polling state.
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.stateMu.Lock()
	prev := b.state
	b.state = s
	b.stateMu.Unlock()

	if prev != s {
		b.logInfo("state changed", "pool", b.poolID, "from", prev.String(), "to", s.String())
	}
}

// ResetCredentials returns the bridge to the uninitialized state after new
// credentials have been supplied to the session layer, re-enabling polling.
func (b *Bridge) ResetCredentials() {
	b.setState(StateUninitialized)
}

// run is the polling loop.
func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	if err := b.PollNow(ctx); err != nil {
		b.logWarn("initial poll failed", "pool", b.poolID, "error", err)
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			err := b.PollNow(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrPollInFlight):
				b.logWarn("poll overlapped previous cycle, skipped", "pool", b.poolID)
			case errors.Is(err, ErrNeedsCredentials):
				// Terminal until ResetCredentials; stay quiet per tick.
			default:
				b.logWarn("poll failed", "pool", b.poolID, "error", err)
			}
		}
	}
}

// PollNow runs a single poll cycle immediately.
//
// Returns ErrPollInFlight if a previous cycle's round-trip is still
// outstanding, and ErrNeedsCredentials while polling is suspended awaiting
// new credentials. Fetch failures propagate after updating the device's
// availability/warning flags.
func (b *Bridge) PollNow(ctx context.Context) error {
	if !b.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer b.inFlight.Store(false)

	return b.pollOnce(ctx)
}

// pollOnce fetches the document, updates the state machine, and applies
// all mappings. Caller holds the in-flight guard.
func (b *Bridge) pollOnce(ctx context.Context) error {
	if b.State() == StateNeedsCredentials {
		return ErrNeedsCredentials
	}

	started := time.Now()
	flat, err := b.api.Fetch(ctx, b.poolID)
	if err != nil {
		var authErr *poolcloud.AuthError
		if errors.As(err, &authErr) {
			// Credentials invalid or revoked: suspend polling until new
			// credentials arrive.
			b.setState(StateNeedsCredentials)
			if hostErr := b.host.SetUnavailable("pool account needs re-authentication"); hostErr != nil {
				b.logError("failed to mark device unavailable", "error", hostErr)
			}
			return fmt.Errorf("fetching pool %s: %w", b.poolID, err)
		}

		// Recoverable: device keeps stale data, next tick retries.
		if hostErr := b.host.SetWarning("pool cloud unreachable, data may be stale"); hostErr != nil {
			b.logError("failed to set device warning", "error", hostErr)
		}
		return fmt.Errorf("fetching pool %s: %w", b.poolID, err)
	}

	if b.State() == StateUninitialized {
		b.setState(StatePolling)
	}
	if hostErr := b.host.ClearWarning(); hostErr != nil {
		b.logError("failed to clear device warning", "error", hostErr)
	}
	if hostErr := b.host.SetAvailable(); hostErr != nil {
		b.logError("failed to mark device available", "error", hostErr)
	}

	b.applyState(flat)

	if b.telemetry != nil {
		b.telemetry.WritePollStats(b.poolID, map[string]interface{}{
			"duration_ms": time.Since(started).Milliseconds(),
			"fields":      len(flat),
		})
	}
	return nil
}

// applyState walks the mapping tables against a freshly fetched document.
// Errors and panics are isolated per field so one bad value never aborts
// the remaining mappings.
func (b *Bridge) applyState(flat poolcloud.FlatState) {
	for _, m := range fieldMappings {
		b.processField(m, flat)
	}
	for _, m := range settableMappings {
		b.processField(m.FieldMapping, flat)
		if _, present := flat[m.Key]; present {
			b.ensureListener(m)
		}
	}
}

// processField applies one field mapping: presence check, transform,
// provisioning, edge-trigger, commit.
func (b *Bridge) processField(m FieldMapping, flat poolcloud.FlatState) {
	defer func() {
		if r := recover(); r != nil {
			b.logError("field processing panic recovered",
				"key", m.Key, "capability", m.Capability, "panic", r)
		}
	}()

	raw, present := flat[m.Key]
	if !present {
		// Absence is not evidence of removal; keep the previous value.
		return
	}

	value := raw
	if m.Transform != nil {
		value = m.Transform(raw)
	}

	if err := b.host.EnsureCapability(m.Capability); err != nil {
		b.logWarn("failed to provision capability",
			"capability", m.Capability, "error", err)
		return
	}

	// Edge-triggered events fire against the previous stored value,
	// before the new value is committed.
	if newBool, ok := value.(bool); ok {
		if binding, bound := triggerByCapability[m.Capability]; bound {
			if prev, defined := b.host.CapabilityValue(m.Capability); defined {
				if prevBool, wasBool := prev.(bool); wasBool && prevBool != newBool {
					event := binding.Falling
					if newBool {
						event = binding.Rising
					}
					if err := b.host.FireTrigger(event); err != nil {
						b.logWarn("failed to fire trigger", "event", event, "error", err)
					}
					if b.telemetry != nil {
						b.telemetry.WriteEvent(b.poolID, event)
					}
				}
			}
		}
	}

	if err := b.host.SetCapabilityValue(m.Capability, value); err != nil {
		b.logWarn("failed to commit capability value",
			"capability", m.Capability, "error", err)
		return
	}

	if b.telemetry != nil {
		if f, ok := toFloat(value); ok {
			b.telemetry.WriteCapabilityMetric(b.poolID, m.Capability, f)
		}
	}
}

// ensureListener registers the set listener for a settable capability
// exactly once across all poll cycles.
func (b *Bridge) ensureListener(m SettableMapping) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	if b.registered[m.Capability] {
		return
	}

	if err := b.host.RegisterSetListener(m.Capability, b.makeListener(m)); err != nil {
		b.logWarn("failed to register set listener",
			"capability", m.Capability, "error", err)
		return
	}
	b.registered[m.Capability] = true
	b.logDebug("set listener registered", "capability", m.Capability)
}

// makeListener builds the host-invoked handler for a settable capability:
// inverse transform, remote write, then a one-shot delayed reconciliation
// poll to observe the remote device's authoritative state. The write is
// intentionally fire-and-forget with respect to convergence; only the
// scheduling of the reconcile poll is guaranteed.
func (b *Bridge) makeListener(m SettableMapping) SetListener {
	return func(ctx context.Context, value any) error {
		wire := value
		if m.Inverse != nil {
			wire = m.Inverse(value)
		}

		if err := b.api.Write(ctx, b.poolID, m.WritePath, wire); err != nil {
			return fmt.Errorf("writing %s: %w", m.WritePath, err)
		}

		b.logDebug("capability write applied",
			"capability", m.Capability, "path", m.WritePath)

		// Not cancelled if another write or poll lands first; duplicate
		// reconciliation polls are harmless.
		b.schedule(reconcileDelay, func() {
			if err := b.PollNow(context.Background()); err != nil &&
				!errors.Is(err, ErrPollInFlight) {
				b.logWarn("reconcile poll failed", "pool", b.poolID, "error", err)
			}
		})

		return nil
	}
}

// logDebug logs a debug message if a logger is set.
func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// logInfo logs an info message if a logger is set.
func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

// logWarn logs a warning if a logger is set.
func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

// logError logs an error if a logger is set.
func (b *Bridge) logError(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, args...)
	}
}

// Package device drives one session with a controller unit: the connection
// negotiation, paged custom-mode transfers, LED feedback, and slot selection
// over the channel-message pair. A Device owns its ports and holds exactly
// one negotiation state and one identity; nothing is shared across sessions.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lcxl3/sysex"
	"lcxl3/transport"
)

// Device is a single session over one unit's port pair. Safe for concurrent
// use; overlapping operations fail fast instead of queueing.
type Device struct {
	port   transport.Port
	daw    transport.DAWPort
	config Config
	log    zerolog.Logger

	mu           sync.RWMutex
	state        State
	identity     *Identity
	transferring bool
	closed       bool
}

// New wraps an open frame port. daw may be nil when the OS publishes no
// channel-message pair for the unit; slot operations then fail with
// ErrDAWUnavailable.
//
// Example:
//
//	dev := device.New(unit.SysEx, unit.DAW,
//	    device.WithLogger(logger),
//	    device.WithConnectTimeout(3*time.Second),
//	)
//	defer dev.Close()
func New(port transport.Port, daw transport.DAWPort, opts ...Option) *Device {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Device{
		port:   port,
		daw:    daw,
		config: cfg,
		log:    cfg.Logger,
	}
}

// NewFromUnit wraps a hot-plugged unit's ports.
func NewFromUnit(u *transport.Unit, opts ...Option) *Device {
	return New(u.SysEx, u.DAW, opts...)
}

// State returns the current negotiation state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Identity returns the identity recorded by the last successful handshake.
func (d *Device) Identity() (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.identity == nil {
		return Identity{}, false
	}
	return *d.identity, true
}

// SetLEDs drives surface LEDs. The unit sends no acknowledgement, so this
// never waits and may interleave with a running transfer.
func (d *Device) SetLEDs(states ...sysex.LEDState) error {
	if len(states) == 0 {
		return nil
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return d.port.Send(sysex.BuildLEDSet(states))
}

// Close releases both ports and discards the recorded identity.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.identity = nil
	d.state = StateFailed
	d.mu.Unlock()

	var err error
	if d.daw != nil {
		err = d.daw.Close()
	}
	if cerr := d.port.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (d *Device) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Device) fail() {
	d.setState(StateFailed)
}

// claimTransfer enforces at-most-one in-flight transfer per session.
func (d *Device) claimTransfer() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.state != StateConnected {
		return fmt.Errorf("%w: state %s", ErrNotConnected, d.state)
	}
	if d.transferring {
		return &ConnectionBusyError{State: d.state, Reason: "transfer in progress"}
	}
	d.transferring = true
	return nil
}

func (d *Device) releaseTransfer() {
	d.mu.Lock()
	d.transferring = false
	d.mu.Unlock()
}

// nextFrame waits for one inbound frame, the window, or cancellation,
// whichever comes first.
func (d *Device) nextFrame(ctx context.Context, window time.Duration, phase string) ([]byte, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case raw, ok := <-d.port.Frames():
		if !ok {
			return nil, ErrClosed
		}
		return raw, nil
	case <-timer.C:
		return nil, &ProtocolTimeoutError{Phase: phase, Window: window}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drainFrames discards anything queued from a previous exchange so stale
// replies cannot satisfy a new wait.
func (d *Device) drainFrames() {
	for {
		select {
		case _, ok := <-d.port.Frames():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"lcxl3/sysex"
)

// State is the negotiation state of a session. It moves forward only; a
// failed attempt parks in StateFailed until the next Connect restarts it.
type State int

const (
	StateIdle State = iota
	StateAwaitingSynAck
	StateAwaitingInquiryResponse
	StateLegacyAwaitingInquiryResponse
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSynAck:
		return "awaiting syn-ack"
	case StateAwaitingInquiryResponse:
		return "awaiting inquiry response"
	case StateLegacyAwaitingInquiryResponse:
		return "awaiting legacy inquiry response"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Identity describes the unit a handshake reached. Serial is empty when the
// legacy fallback path was used, since only the syn-ack carries it.
type Identity struct {
	Manufacturer []byte
	Family       uint16
	Model        uint16
	Firmware     string
	Serial       string
}

// Connect negotiates with the unit and records its identity.
//
// The modern sequence sends the vendor syn, waits for the syn-ack carrying
// the serial number, then confirms identity with a device inquiry addressed
// to the negotiated id. If no syn-ack arrives in time the session falls back
// to a single broadcast inquiry, which older firmware answers directly.
//
// Exactly one Connect may run at a time; a concurrent call fails with
// ErrConnectionBusy. The whole call is bounded by the connect timeout
// regardless of how the per-step waits land.
//
// Example:
//
//	dev := device.New(unit.SysEx, unit.DAW)
//	identity, err := dev.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println("serial:", identity.Serial)
func (d *Device) Connect(parent context.Context) (Identity, error) {
	if err := d.claimHandshake(); err != nil {
		return Identity{}, err
	}

	ctx, cancel := context.WithTimeout(parent, d.config.ConnectTimeout)
	defer cancel()

	identity, err := d.negotiate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			err = &ProtocolTimeoutError{Phase: "handshake", Window: d.config.ConnectTimeout}
		}
		d.fail()
		d.log.Warn().Err(err).Msg("handshake failed")
		return Identity{}, err
	}

	d.mu.Lock()
	d.identity = &identity
	d.state = StateConnected
	d.mu.Unlock()

	d.log.Info().
		Str("serial", identity.Serial).
		Str("firmware", identity.Firmware).
		Msg("connected")
	return identity, nil
}

// claimHandshake takes the idle-to-negotiating transition, or reports who
// holds the session.
func (d *Device) claimHandshake() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	switch d.state {
	case StateIdle, StateFailed:
		d.state = StateAwaitingSynAck
		d.identity = nil
		return nil
	case StateConnected:
		return &ConnectionBusyError{State: d.state, Reason: "already connected"}
	default:
		return &ConnectionBusyError{State: d.state, Reason: "handshake in progress"}
	}
}

func (d *Device) negotiate(ctx context.Context) (Identity, error) {
	d.drainFrames()

	if err := d.port.Send(sysex.BuildSyn()); err != nil {
		return Identity{}, &HandshakeError{State: StateAwaitingSynAck, Cause: err}
	}
	d.log.Debug().Msg("sent syn")

	raw, err := d.nextFrame(ctx, d.config.SynAckTimeout, "syn-ack")
	if errors.Is(err, ErrProtocolTimeout) {
		return d.legacyInquiry(ctx)
	}
	if err != nil {
		return Identity{}, err
	}

	serial, err := sysex.ParseSynAck(raw)
	if err != nil {
		return Identity{}, &HandshakeError{State: StateAwaitingSynAck, Cause: err}
	}
	d.log.Debug().Str("serial", serial).Msg("syn-ack received")

	d.setState(StateAwaitingInquiryResponse)
	if err := d.port.Send(sysex.BuildInquiry(sysex.DeviceIDNegotiated)); err != nil {
		return Identity{}, &HandshakeError{State: StateAwaitingInquiryResponse, Cause: err}
	}

	identity, err := d.awaitInquiryReply(ctx, StateAwaitingInquiryResponse)
	if err != nil {
		return Identity{}, err
	}
	identity.Serial = serial
	return identity, nil
}

// legacyInquiry is the single fallback when the syn-ack never arrives:
// older firmware answers a broadcast inquiry but knows no syn.
func (d *Device) legacyInquiry(ctx context.Context) (Identity, error) {
	d.setState(StateLegacyAwaitingInquiryResponse)
	d.log.Debug().Msg("no syn-ack, trying broadcast inquiry")

	if err := d.port.Send(sysex.BuildInquiry(sysex.DeviceIDBroadcast)); err != nil {
		return Identity{}, &HandshakeError{State: StateLegacyAwaitingInquiryResponse, Cause: err}
	}
	return d.awaitInquiryReply(ctx, StateLegacyAwaitingInquiryResponse)
}

func (d *Device) awaitInquiryReply(ctx context.Context, state State) (Identity, error) {
	raw, err := d.nextFrame(ctx, d.config.InquiryTimeout, "inquiry response")
	if err != nil {
		return Identity{}, err
	}

	reply, err := sysex.ParseInquiryReply(raw)
	if err != nil {
		return Identity{}, &HandshakeError{State: state, Cause: err}
	}
	if !bytes.Equal(reply.Manufacturer, sysex.ManufacturerNovation) {
		return Identity{}, &HandshakeError{
			State: state,
			Cause: fmt.Errorf("manufacturer % X is not % X", reply.Manufacturer, sysex.ManufacturerNovation),
		}
	}

	return Identity{
		Manufacturer: reply.Manufacturer,
		Family:       reply.Family,
		Model:        reply.Model,
		Firmware:     reply.FirmwareString(),
	}, nil
}

package device

import (
	"errors"
	"fmt"
	"time"
)

// Session-level failure categories. The structured types below wrap these
// sentinels, so errors.Is matches the category and errors.As recovers the
// detail.
var (
	// ErrProtocolTimeout means an expected response never arrived within
	// its window.
	ErrProtocolTimeout = errors.New("protocol timeout")

	// ErrHandshakeRejected means a negotiation response was malformed or
	// came from the wrong vendor.
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrTransferFailed means a paged profile exchange broke down.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrSlotOutOfRange means the requested slot does not exist on the
	// device.
	ErrSlotOutOfRange = errors.New("slot out of range")

	// ErrConnectionBusy means another operation already holds the session.
	ErrConnectionBusy = errors.New("connection busy")

	// ErrNotConnected means the operation needs a completed handshake.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed means the session has been closed.
	ErrClosed = errors.New("device closed")

	// ErrDAWUnavailable means the unit published no channel-message port
	// pair, so slot selection cannot work.
	ErrDAWUnavailable = errors.New("daw port unavailable")
)

// ProtocolTimeoutError reports which wait expired and how long it was.
type ProtocolTimeoutError struct {
	Phase  string
	Window time.Duration
}

func (e *ProtocolTimeoutError) Error() string {
	return fmt.Sprintf("protocol timeout: no %s within %s", e.Phase, e.Window)
}

func (e *ProtocolTimeoutError) Unwrap() error { return ErrProtocolTimeout }

// HandshakeError reports a failed negotiation and the state it failed in.
type HandshakeError struct {
	State State
	Cause error
}

func (e *HandshakeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("handshake rejected (%s): %v", e.State, e.Cause)
	}
	return fmt.Sprintf("handshake rejected (%s)", e.State)
}

func (e *HandshakeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrHandshakeRejected, e.Cause}
	}
	return []error{ErrHandshakeRejected}
}

// TransferError reports a failed profile transfer. Page is -1 when the
// failure is not tied to a single page.
type TransferError struct {
	Slot   int
	Page   int
	Reason string
	Cause  error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer failed: slot %d", e.Slot)
	if e.Page >= 0 {
		msg += fmt.Sprintf(" page %d", e.Page)
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrTransferFailed, e.Cause}
	}
	return []error{ErrTransferFailed}
}

// SlotRangeError reports a slot outside SlotMin..SlotMax.
type SlotRangeError struct {
	Slot int
}

func (e *SlotRangeError) Error() string {
	return fmt.Sprintf("slot %d out of range %d..%d", e.Slot, SlotMin, SlotMax)
}

func (e *SlotRangeError) Unwrap() error { return ErrSlotOutOfRange }

// ConnectionBusyError reports what already holds the session.
type ConnectionBusyError struct {
	State  State
	Reason string
}

func (e *ConnectionBusyError) Error() string {
	return fmt.Sprintf("connection busy: %s (%s)", e.Reason, e.State)
}

func (e *ConnectionBusyError) Unwrap() error { return ErrConnectionBusy }

package sysex

import (
	"errors"
	"fmt"
)

// Error kinds. Structured errors below unwrap to these so callers can match
// with errors.Is without losing the offending bytes.
var (
	// ErrInvalidEncoding reports a byte >= 0x80 where only 7-bit data is allowed.
	ErrInvalidEncoding = errors.New("invalid 7-bit encoding")

	// ErrMalformedFrame reports a missing or misplaced envelope marker.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrNotASCII reports a string that cannot survive a 7-bit transport.
	ErrNotASCII = errors.New("not 7-bit ascii")

	// ErrUnexpectedReply reports a well-formed frame that is not the message
	// the caller was waiting for.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// InvalidEncodingError pinpoints the byte that broke a decode.
type InvalidEncodingError struct {
	// Offset is the position within the encoded input
	Offset int

	// Byte is the offending value (>= 0x80)
	Byte byte
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid 7-bit encoding: byte 0x%02X at offset %d has high bit set", e.Byte, e.Offset)
}

func (e *InvalidEncodingError) Unwrap() error { return ErrInvalidEncoding }

// MalformedFrameError describes an envelope violation with the expected and
// observed bytes so a failing capture can be replayed in a test.
type MalformedFrameError struct {
	// Reason names the violated rule ("start marker", "end marker", ...)
	Reason string

	// Offset is the position within the raw frame, -1 if not byte-specific
	Offset int

	// Want and Got hold the expected and observed bytes when byte-specific
	Want, Got byte
}

func (e *MalformedFrameError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("malformed frame: %s", e.Reason)
	}
	return fmt.Sprintf("malformed frame: %s at offset %d: want 0x%02X, got 0x%02X", e.Reason, e.Offset, e.Want, e.Got)
}

func (e *MalformedFrameError) Unwrap() error { return ErrMalformedFrame }

// UnexpectedReplyError names the message that was awaited and the byte that
// ruled the received frame out.
type UnexpectedReplyError struct {
	// Expected names the awaited message ("SYN-ACK", "inquiry reply", ...)
	Expected string

	// Reason names the mismatched field
	Reason string

	// Offset is the position within the frame body, -1 if not byte-specific
	Offset int

	// Want and Got hold the expected and observed bytes when byte-specific
	Want, Got byte
}

func (e *UnexpectedReplyError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("expected %s: %s", e.Expected, e.Reason)
	}
	return fmt.Sprintf("expected %s: %s at offset %d: want 0x%02X, got 0x%02X", e.Expected, e.Reason, e.Offset, e.Want, e.Got)
}

func (e *UnexpectedReplyError) Unwrap() error { return ErrUnexpectedReply }

// NotASCIIError identifies the first rune that is not 7-bit clean.
type NotASCIIError struct {
	// Offset is the byte position within the string
	Offset int

	// Rune is the offending character
	Rune rune
}

func (e *NotASCIIError) Error() string {
	return fmt.Sprintf("not 7-bit ascii: %q at offset %d", e.Rune, e.Offset)
}

func (e *NotASCIIError) Unwrap() error { return ErrNotASCII }

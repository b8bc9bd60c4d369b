package custommode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFieldFormat reports a payload region that matches no
	// confirmed wire convention. Unconfirmed layouts surface here instead of
	// being guessed into a parse.
	ErrUnknownFieldFormat = errors.New("unknown field format")

	// ErrNameTooLong reports a mode name over MaxNameLen bytes. Names are
	// rejected, never silently truncated.
	ErrNameTooLong = errors.New("name too long")

	// ErrModeTooLarge reports an encoded mode that does not fit the page
	// budget of one slot.
	ErrModeTooLarge = errors.New("mode too large")
)

// UnknownFieldFormatError pins the first byte that broke field parsing.
type UnknownFieldFormatError struct {
	// Reason names the rule the payload violated
	Reason string

	// Offset is the position within the decoded payload
	Offset int

	// Got is the offending byte
	Got byte
}

func (e *UnknownFieldFormatError) Error() string {
	return fmt.Sprintf("unknown field format: %s at offset %d (byte 0x%02X)", e.Reason, e.Offset, e.Got)
}

func (e *UnknownFieldFormatError) Unwrap() error { return ErrUnknownFieldFormat }

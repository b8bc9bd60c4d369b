// Package custommode models the named control-mapping profiles the device
// stores in its slots, and the field codec that moves them over the wire.
package custommode

import (
	"fmt"
	"time"
)

// MaxNameLen bounds mode names at both ends of the wire. Encode and decode
// share this single constant; an encoder cap below the decoder cap is how
// names historically lost their tails.
const MaxNameLen = 18

// Behaviour tags how the device reports a control's movement.
type Behaviour byte

const (
	// Absolute sends the control's position as the CC value
	Absolute Behaviour = iota

	// Relative sends signed increments around 0x40
	Relative

	// Momentary sends Max while held and Min on release
	Momentary
)

func (b Behaviour) String() string {
	switch b {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	case Momentary:
		return "momentary"
	}
	return fmt.Sprintf("behaviour(%d)", byte(b))
}

// Transform optionally reshapes the reported value.
type Transform byte

const (
	// TransformNone reports the raw value
	TransformNone Transform = iota

	// TransformInvert reports Max-relative instead of Min-relative values
	TransformInvert
)

func (t Transform) String() string {
	switch t {
	case TransformNone:
		return "none"
	case TransformInvert:
		return "invert"
	}
	return fmt.Sprintf("transform(%d)", byte(t))
}

// Control surface identifiers. Knobs, faders and buttons share one id space
// kept below the LED record marker so payload scanning stays unambiguous.
const (
	// ControlIDFirst is the lowest assignable control id (top-left knob)
	ControlIDFirst = 0x10

	// ControlIDLast is the highest assignable control id (bottom-right button)
	ControlIDLast = 0x3F

	// KnobRows, ButtonRows and Columns describe the physical surface
	KnobRows   = 3
	ButtonRows = 2
	Columns    = 8
)

// KnobID returns the control id of the knob at row (0 = top) and col.
func KnobID(row, col int) byte {
	return byte(ControlIDFirst + row*Columns + col)
}

// FaderID returns the control id of the fader below the knob columns.
func FaderID(col int) byte {
	return byte(ControlIDFirst + KnobRows*Columns + col)
}

// ButtonID returns the control id of the button at row (0 = upper) and col.
func ButtonID(row, col int) byte {
	return byte(ControlIDFirst + (KnobRows+1)*Columns + row*Columns + col)
}

// Control is one mapping entry: which physical control, what it sends, and
// how it behaves. Min above Max is legal and inverts the travel direction.
type Control struct {
	ID        byte      `json:"id"`
	Channel   byte      `json:"channel"`
	CC        byte      `json:"cc"`
	Behaviour Behaviour `json:"behaviour"`
	Min       byte      `json:"min"`
	Max       byte      `json:"max"`
	Transform Transform `json:"transform,omitempty"`
}

// Validate checks the mapping against the wire field ranges.
func (c Control) Validate() error {
	if c.ID < ControlIDFirst || c.ID > ControlIDLast {
		return fmt.Errorf("control id 0x%02X outside 0x%02X..0x%02X", c.ID, ControlIDFirst, ControlIDLast)
	}
	if c.Channel > 15 {
		return fmt.Errorf("control 0x%02X: channel %d outside 0..15", c.ID, c.Channel)
	}
	if c.CC > 127 {
		return fmt.Errorf("control 0x%02X: cc %d outside 0..127", c.ID, c.CC)
	}
	if c.Behaviour > Momentary {
		return fmt.Errorf("control 0x%02X: unknown behaviour %d", c.ID, byte(c.Behaviour))
	}
	if c.Transform > TransformInvert {
		return fmt.Errorf("control 0x%02X: unknown transform %d", c.ID, byte(c.Transform))
	}
	if c.Min > 127 || c.Max > 127 {
		return fmt.Errorf("control 0x%02X: range %d..%d outside 0..127", c.ID, c.Min, c.Max)
	}
	return nil
}

// Mode is one slot-sized profile: a name, the control mappings keyed by
// control id, static LED colours, and host-side bookkeeping timestamps that
// never travel on the wire.
type Mode struct {
	// Name labels the mode on the device display, at most MaxNameLen bytes.
	// Ignored when DefaultName is set.
	Name string `json:"name"`

	// DefaultName asks the device to show the slot's factory name
	DefaultName bool `json:"defaultName,omitempty"`

	Controls map[byte]Control `json:"controls"`
	LEDs     map[byte]byte    `json:"leds,omitempty"`

	CreatedAt  time.Time `json:"createdAt,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
}

// NewMode returns an empty named mode stamped with the current time.
func NewMode(name string) *Mode {
	now := time.Now()
	return &Mode{
		Name:       name,
		Controls:   make(map[byte]Control),
		LEDs:       make(map[byte]byte),
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// SetControl stores a mapping under its own id and bumps ModifiedAt.
func (m *Mode) SetControl(c Control) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if m.Controls == nil {
		m.Controls = make(map[byte]Control)
	}
	m.Controls[c.ID] = c
	m.ModifiedAt = time.Now()
	return nil
}

// SetLED stores a static colour for a control and bumps ModifiedAt.
func (m *Mode) SetLED(controlID, colour byte) error {
	if controlID < ControlIDFirst || controlID > ControlIDLast {
		return fmt.Errorf("control id 0x%02X outside 0x%02X..0x%02X", controlID, ControlIDFirst, ControlIDLast)
	}
	if colour > 127 {
		return fmt.Errorf("colour %d outside 0..127", colour)
	}
	if m.LEDs == nil {
		m.LEDs = make(map[byte]byte)
	}
	m.LEDs[controlID] = colour
	m.ModifiedAt = time.Now()
	return nil
}

// Validate checks the whole mode against the wire field ranges.
func (m *Mode) Validate() error {
	if !m.DefaultName && len(m.Name) > MaxNameLen {
		return fmt.Errorf("mode name %q is %d bytes, limit %d: %w", m.Name, len(m.Name), MaxNameLen, ErrNameTooLong)
	}
	for id, c := range m.Controls {
		if id != c.ID {
			return fmt.Errorf("control keyed 0x%02X carries id 0x%02X", id, c.ID)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for id, colour := range m.LEDs {
		if id < ControlIDFirst || id > ControlIDLast {
			return fmt.Errorf("led id 0x%02X outside 0x%02X..0x%02X", id, ControlIDFirst, ControlIDLast)
		}
		if colour > 127 {
			return fmt.Errorf("led 0x%02X: colour %d outside 0..127", id, colour)
		}
	}
	return nil
}

// Package transport carries framed messages between the protocol core and a
// physical device, over either a pair of MIDI ports or a DIN serial line.
package transport

import "strings"

// Port moves whole frames (start marker through end marker) to and from one
// device connection. Implementations own the underlying handles; the
// protocol layer only sends byte sequences and drains the inbound queue.
type Port interface {
	// Send transmits one complete frame
	Send(frame []byte) error

	// Frames is the inbound frame queue, closed when the port closes
	Frames() <-chan []byte

	Close() error
}

// ControlChange is one CC message received on the DAW port.
type ControlChange struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// DAWPort speaks the channel-message side protocol on the device's second
// port pair. Slot selection rides here, never on the frame port.
type DAWPort interface {
	SendNoteOn(channel, key, velocity uint8) error
	SendNoteOff(channel, key uint8) error
	SendControlChange(channel, controller, value uint8) error

	// ControlChanges is the inbound CC queue, closed when the port closes
	ControlChanges() <-chan ControlChange

	Close() error
}

// Port name matching. The device publishes two pairs per unit, e.g.
// "LCXL3 1 MIDI In"/"LCXL3 1 MIDI Out" and "LCXL3 1 DAW In"/"LCXL3 1 DAW Out";
// older firmware spells out "Launch Control XL".
func matchesDevice(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "lcxl3") || strings.Contains(n, "launch control xl")
}

// IsSysExPortName reports whether name is the frame-carrying pair of a unit.
func IsSysExPortName(name string) bool {
	return matchesDevice(name) && strings.Contains(strings.ToLower(name), "midi")
}

// IsDAWPortName reports whether name is the channel-message pair of a unit.
func IsDAWPortName(name string) bool {
	return matchesDevice(name) && strings.Contains(strings.ToLower(name), "daw")
}

// portKey folds the two directions of a pair onto one key: the OS suffixes
// the device's own In/Out label, which is opposite for each direction.
func portKey(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " in")
	n = strings.TrimSuffix(n, " out")
	return strings.TrimSpace(n)
}

// unitID folds a pair key onto the unit it belongs to, so the MIDI and DAW
// pairs of one unit group together.
func unitID(name string) string {
	key := portKey(name)
	key = strings.TrimSuffix(key, " midi")
	key = strings.TrimSuffix(key, " daw")
	return strings.TrimSpace(key)
}

package custommode

import (
	"fmt"
	"sort"

	"lcxl3/sysex"
)

// Field markers inside a mode payload. The name field uses the bare
// marker/length/bytes form in both directions; captured write and read
// traffic for the same profile confirms there is no extra leading byte, and
// no decode branch for one exists here.
const (
	// NameMarker opens the name field (0x20)
	NameMarker = 0x20

	// NameLenDefault in the length position means "use the slot's factory
	// name"; no name bytes follow (0x1F)
	NameLenDefault = 0x1F

	// WriteDelimiter separates the name field from control records in
	// host-to-device payloads only; read replies have none (0x21)
	WriteDelimiter = 0x21

	// LEDMarker opens a 3-byte static colour record and, being above every
	// assignable control id, ends the control-record run (0x60)
	LEDMarker = 0x60

	controlRecordLen = 6
	ledRecordLen     = 3

	// nameScanLimit bounds the marker scan; captures place the name field
	// at payload offset 0, so anything past a small preamble is garbage
	nameScanLimit = 8
)

// AppendNameField appends `0x20, length, bytes` (or the 0x1F default-name
// form) to buf. Names over MaxNameLen are rejected, never truncated.
func AppendNameField(buf []byte, name string, useDefault bool) ([]byte, error) {
	if useDefault {
		return append(buf, NameMarker, NameLenDefault), nil
	}
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("mode name %q is %d bytes, limit %d: %w", name, len(name), MaxNameLen, ErrNameTooLong)
	}
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return nil, &sysex.NotASCIIError{Offset: i, Rune: rune(name[i])}
		}
	}
	buf = append(buf, NameMarker, byte(len(name)))
	return append(buf, name...), nil
}

// DecodeNameField scans payload for the name marker, decodes the field and
// returns how many bytes it consumed from the start of payload. A length
// byte of NameLenDefault yields useDefault instead of a 31-byte read.
func DecodeNameField(payload []byte) (name string, useDefault bool, n int, err error) {
	limit := nameScanLimit
	if limit > len(payload) {
		limit = len(payload)
	}

	pos := -1
	for i := 0; i < limit; i++ {
		if payload[i] == NameMarker {
			pos = i
			break
		}
	}
	if pos < 0 {
		got := byte(0)
		if len(payload) > 0 {
			got = payload[0]
		}
		return "", false, 0, &UnknownFieldFormatError{Reason: "name marker not found", Offset: 0, Got: got}
	}

	if pos+1 >= len(payload) {
		return "", false, 0, &UnknownFieldFormatError{Reason: "name length missing", Offset: pos, Got: payload[pos]}
	}
	length := payload[pos+1]

	if length == NameLenDefault {
		return "", true, pos + 2, nil
	}
	if int(length) > MaxNameLen {
		return "", false, 0, &UnknownFieldFormatError{Reason: fmt.Sprintf("name length %d over limit %d", length, MaxNameLen), Offset: pos + 1, Got: length}
	}
	if pos+2+int(length) > len(payload) {
		return "", false, 0, &UnknownFieldFormatError{Reason: "name bytes truncated", Offset: pos + 1, Got: length}
	}

	start := pos + 2
	return string(payload[start : start+int(length)]), false, start + int(length), nil
}

// EncodeWritePayload serializes a mode for a host-to-device transfer:
// name field, write delimiter, control records in id order, LED records.
func EncodeWritePayload(m *Mode) ([]byte, error) {
	return encodePayload(m, true)
}

// EncodeReadPayload serializes a mode the way the device reports it: the
// same fields without the write delimiter.
func EncodeReadPayload(m *Mode) ([]byte, error) {
	return encodePayload(m, false)
}

func encodePayload(m *Mode, write bool) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 2+MaxNameLen+1+len(m.Controls)*controlRecordLen+len(m.LEDs)*ledRecordLen)
	buf, err := AppendNameField(buf, m.Name, m.DefaultName)
	if err != nil {
		return nil, err
	}
	if write {
		buf = append(buf, WriteDelimiter)
	}

	for _, id := range sortedKeys(m.Controls) {
		c := m.Controls[id]
		typeByte := byte(c.Behaviour) | byte(c.Transform)<<2
		buf = append(buf, c.ID, typeByte, c.Channel, c.CC, c.Min, c.Max)
	}
	for _, id := range sortedKeys(m.LEDs) {
		buf = append(buf, LEDMarker, id, m.LEDs[id])
	}

	return buf, nil
}

// DecodeWritePayload parses a host-to-device payload: the name field must
// be followed by the write delimiter before any records. A control id equal
// to the delimiter byte stays unambiguous because the delimiter position is
// fixed, never scanned for.
func DecodeWritePayload(payload []byte) (*Mode, error) {
	name, useDefault, pos, err := DecodeNameField(payload)
	if err != nil {
		return nil, err
	}
	if pos >= len(payload) {
		return nil, &UnknownFieldFormatError{Reason: "write delimiter missing", Offset: pos, Got: 0}
	}
	if payload[pos] != WriteDelimiter {
		return nil, &UnknownFieldFormatError{Reason: "write delimiter missing", Offset: pos, Got: payload[pos]}
	}
	return decodeRecords(payload, pos+1, name, useDefault)
}

// DecodeReadPayload parses a device-to-host payload: records begin directly
// after the name field, with no delimiter.
func DecodeReadPayload(payload []byte) (*Mode, error) {
	name, useDefault, pos, err := DecodeNameField(payload)
	if err != nil {
		return nil, err
	}
	return decodeRecords(payload, pos, name, useDefault)
}

// decodeRecords walks the control and LED records that fill the rest of a
// payload. Regions matching no confirmed field layout fail with
// UnknownFieldFormatError instead of a guess.
func decodeRecords(payload []byte, pos int, name string, useDefault bool) (*Mode, error) {
	mode := &Mode{
		Name:        name,
		DefaultName: useDefault,
		Controls:    make(map[byte]Control),
		LEDs:        make(map[byte]byte),
	}

	for pos < len(payload) {
		if payload[pos] == LEDMarker {
			if pos+ledRecordLen > len(payload) {
				return nil, &UnknownFieldFormatError{Reason: "led record truncated", Offset: pos, Got: payload[pos]}
			}
			id, colour := payload[pos+1], payload[pos+2]
			if id < ControlIDFirst || id > ControlIDLast {
				return nil, &UnknownFieldFormatError{Reason: "led control id out of range", Offset: pos + 1, Got: id}
			}
			if _, dup := mode.LEDs[id]; dup {
				return nil, &UnknownFieldFormatError{Reason: "duplicate led record", Offset: pos + 1, Got: id}
			}
			mode.LEDs[id] = colour
			pos += ledRecordLen
			continue
		}

		if pos+controlRecordLen > len(payload) {
			return nil, &UnknownFieldFormatError{Reason: "control record truncated", Offset: pos, Got: payload[pos]}
		}
		c, err := decodeControlRecord(payload[pos:pos+controlRecordLen], pos)
		if err != nil {
			return nil, err
		}
		if _, dup := mode.Controls[c.ID]; dup {
			return nil, &UnknownFieldFormatError{Reason: "duplicate control record", Offset: pos, Got: c.ID}
		}
		mode.Controls[c.ID] = c
		pos += controlRecordLen
	}

	return mode, nil
}

// decodeControlRecord parses one fixed-width mapping record. The type byte
// carries behaviour in bits 0-1 and transform in bits 2-4; set reserved bits
// mean an unconfirmed layout.
func decodeControlRecord(rec []byte, offset int) (Control, error) {
	id := rec[0]
	if id < ControlIDFirst || id > ControlIDLast {
		return Control{}, &UnknownFieldFormatError{Reason: "control id out of range", Offset: offset, Got: id}
	}

	typeByte := rec[1]
	if typeByte>>5 != 0 {
		return Control{}, &UnknownFieldFormatError{Reason: "reserved type bits set", Offset: offset + 1, Got: typeByte}
	}
	behaviour := Behaviour(typeByte & 0x03)
	if behaviour > Momentary {
		return Control{}, &UnknownFieldFormatError{Reason: "unknown behaviour", Offset: offset + 1, Got: typeByte}
	}
	transform := Transform(typeByte >> 2 & 0x07)
	if transform > TransformInvert {
		return Control{}, &UnknownFieldFormatError{Reason: "unknown transform", Offset: offset + 1, Got: typeByte}
	}

	if rec[2] > 15 {
		return Control{}, &UnknownFieldFormatError{Reason: "channel out of range", Offset: offset + 2, Got: rec[2]}
	}

	return Control{
		ID:        id,
		Behaviour: behaviour,
		Transform: transform,
		Channel:   rec[2],
		CC:        rec[3],
		Min:       rec[4],
		Max:       rec[5],
	}, nil
}

func sortedKeys[V any](m map[byte]V) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

package sysex

// Frame is one parsed envelope unit. Manufacturer is the 1-byte universal or
// 3-byte extended id; Body is everything between it and the end marker, left
// uninterpreted for the message layer.
type Frame struct {
	Manufacturer []byte
	Body         []byte
}

// IsNovation reports whether the frame carries the vendor id this device
// family answers to.
func (f Frame) IsNovation() bool {
	m := f.Manufacturer
	return len(m) == 3 && m[0] == ManufacturerNovation[0] && m[1] == ManufacturerNovation[1] && m[2] == ManufacturerNovation[2]
}

// IsUniversal reports whether the frame lives in the universal non-realtime
// space used by the device inquiry.
func (f Frame) IsUniversal() bool {
	return len(f.Manufacturer) == 1 && f.Manufacturer[0] == ManufacturerUniversal
}

// BuildFrame wraps body in the envelope:
//
//	[START][MANUFACTURER...][BODY...][END]
//
// The caller supplies a 7-bit-clean body; payload bytes that need the full
// 8-bit range go through Encode7Bit first.
func BuildFrame(manufacturer, body []byte) []byte {
	frame := make([]byte, 0, len(manufacturer)+len(body)+2)
	frame = append(frame, StartOfExclusive)
	frame = append(frame, manufacturer...)
	frame = append(frame, body...)
	frame = append(frame, EndOfExclusive)
	return frame
}

// ParseFrame validates the envelope and splits the manufacturer id from the
// body. A leading zero byte selects the extended 3-byte id form, anything
// else the 1-byte form. Marker or id violations fail with MalformedFrameError.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < MinFrameSize {
		return Frame{}, &MalformedFrameError{Reason: "frame shorter than start + id + end", Offset: -1}
	}
	if raw[0] != StartOfExclusive {
		return Frame{}, &MalformedFrameError{Reason: "start marker", Offset: 0, Want: StartOfExclusive, Got: raw[0]}
	}
	last := len(raw) - 1
	if raw[last] != EndOfExclusive {
		return Frame{}, &MalformedFrameError{Reason: "end marker", Offset: last, Want: EndOfExclusive, Got: raw[last]}
	}

	idLen := 1
	if raw[1] == 0x00 {
		idLen = 3
		if len(raw) < 2+idLen {
			return Frame{}, &MalformedFrameError{Reason: "truncated extended manufacturer id", Offset: -1}
		}
	}

	body := raw[1+idLen : last]
	for i, b := range body {
		if b&0x80 != 0 {
			return Frame{}, &MalformedFrameError{Reason: "interior byte not 7-bit clean", Offset: 1 + idLen + i, Want: b & 0x7F, Got: b}
		}
	}

	return Frame{Manufacturer: raw[1 : 1+idLen], Body: body}, nil
}

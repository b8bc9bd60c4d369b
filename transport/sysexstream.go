package transport

import "lcxl3/sysex"

// SysExStream reassembles system-exclusive frames out of a raw MIDI byte
// stream. DIN and serial transports deliver bytes with no message framing,
// so the splitter tracks the F0..F7 envelope itself. Realtime status bytes
// may legally appear inside a frame and are dropped; any other status byte
// cancels the frame in progress.
type SysExStream struct {
	buf    []byte
	inside bool
}

// Feed consumes a chunk of raw bytes and returns the frames completed by it,
// in arrival order. Partial frames are held across calls.
func (s *SysExStream) Feed(chunk []byte) [][]byte {
	var frames [][]byte
	for _, b := range chunk {
		switch {
		case b == sysex.StartOfExclusive:
			s.buf = s.buf[:0]
			s.buf = append(s.buf, b)
			s.inside = true
		case !s.inside:
			// Channel traffic outside a frame is not ours.
		case b == sysex.EndOfExclusive:
			s.buf = append(s.buf, b)
			frame := make([]byte, len(s.buf))
			copy(frame, s.buf)
			frames = append(frames, frame)
			s.buf = s.buf[:0]
			s.inside = false
		case b >= 0xF8:
			// Realtime bytes interleave with anything, including SysEx.
		case b >= 0x80:
			s.buf = s.buf[:0]
			s.inside = false
		default:
			s.buf = append(s.buf, b)
		}
	}
	return frames
}

// Pending reports whether a frame is open and waiting for its end marker.
func (s *SysExStream) Pending() bool {
	return s.inside
}

// Reset drops any partial frame.
func (s *SysExStream) Reset() {
	s.buf = s.buf[:0]
	s.inside = false
}

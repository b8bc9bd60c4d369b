package sysex

import (
	"fmt"
	"strings"
)

// The transport reserves bytes >= 0x80 for status traffic, so arbitrary
// payloads travel in 8-byte blocks: one header byte whose bit i carries the
// high bit of source byte i, then up to seven source bytes masked to 7 bits.
// The final block may be short; a lone header byte carries no data.

// EncodedLen returns the number of bytes Encode7Bit produces for n input
// bytes: one header for every started group of seven.
func EncodedLen(n int) int {
	return n + (n+6)/7
}

// DecodedLen returns the number of bytes Decode7Bit produces for n encoded
// bytes: the input minus one header for every started block of eight.
func DecodedLen(n int) int {
	return n - (n+7)/8
}

// Encode7Bit packs data into the 7-bit-clean block form.
//
// Block structure:
//
//	[HEADER][B0&0x7F]...[B6&0x7F]
//
// where HEADER bit i is set iff Bi had its high bit set. The empty input
// encodes to the empty output.
func Encode7Bit(data []byte) []byte {
	out := make([]byte, 0, EncodedLen(len(data)))

	for start := 0; start < len(data); start += 7 {
		end := start + 7
		if end > len(data) {
			end = len(data)
		}
		group := data[start:end]

		var header byte
		for i, b := range group {
			if b&0x80 != 0 {
				header |= 1 << i
			}
		}

		out = append(out, header)
		for _, b := range group {
			out = append(out, b&0x7F)
		}
	}

	return out
}

// Decode7Bit is the exact inverse of Encode7Bit. Any input byte >= 0x80
// fails with InvalidEncodingError; a trailing header-only block is legal and
// contributes nothing.
func Decode7Bit(encoded []byte) ([]byte, error) {
	out := make([]byte, 0, DecodedLen(len(encoded)))

	for start := 0; start < len(encoded); start += 8 {
		header := encoded[start]
		if header&0x80 != 0 {
			return nil, &InvalidEncodingError{Offset: start, Byte: header}
		}

		end := start + 8
		if end > len(encoded) {
			end = len(encoded)
		}

		for i, b := range encoded[start+1 : end] {
			if b&0x80 != 0 {
				return nil, &InvalidEncodingError{Offset: start + 1 + i, Byte: b}
			}
			if header&(1<<i) != 0 {
				b |= 0x80
			}
			out = append(out, b)
		}
	}

	return out, nil
}

// EncodeASCII packs a 7-bit ASCII string. Non-ASCII input fails with
// NotASCIIError rather than being mangled on the wire.
func EncodeASCII(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return nil, &NotASCIIError{Offset: i, Rune: rune(s[i])}
		}
	}
	return Encode7Bit([]byte(s)), nil
}

// DecodeASCII unpacks a string previously packed with EncodeASCII. A decoded
// byte with the high bit set means the payload was never ASCII.
func DecodeASCII(encoded []byte) (string, error) {
	data, err := Decode7Bit(encoded)
	if err != nil {
		return "", err
	}
	for i, b := range data {
		if b >= 0x80 {
			return "", &NotASCIIError{Offset: i, Rune: rune(b)}
		}
	}
	return string(data), nil
}

// HexDump renders encoded bytes one block per line so chunk boundaries line
// up with what went over the wire. Useful when diffing captures.
func HexDump(encoded []byte) string {
	var sb strings.Builder
	for start := 0; start < len(encoded); start += 8 {
		end := start + 8
		if end > len(encoded) {
			end = len(encoded)
		}
		fmt.Fprintf(&sb, "%04X:", start)
		for _, b := range encoded[start:end] {
			fmt.Fprintf(&sb, " %02X", b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

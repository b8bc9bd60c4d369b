package sysex

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncode7BitKnownVector(t *testing.T) {
	// Seven bytes alternating high bit: header collects the odd positions.
	in := []byte{0x81, 0x02, 0x83, 0x04, 0x85, 0x06, 0x87}
	want := []byte{0x55, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	got := Encode7Bit(in)
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode7Bit = % X, want % X", got, want)
	}
}

func TestSevenBitRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single low byte", []byte{0x01}},
		{"single high byte", []byte{0xFF}},
		{"exactly one group", []byte{0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86}},
		{"one group plus one", []byte{0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87}},
		{"ascii text", []byte("CHANNEL STRIP")},
		{"all zeros", make([]byte, 23)},
		{"all 0xFF", bytes.Repeat([]byte{0xFF}, 23)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := Encode7Bit(tt.data)

			if len(enc) != EncodedLen(len(tt.data)) {
				t.Errorf("encoded length = %d, want %d", len(enc), EncodedLen(len(tt.data)))
			}
			for i, b := range enc {
				if b&0x80 != 0 {
					t.Fatalf("encoded byte 0x%02X at offset %d not 7-bit clean", b, i)
				}
			}

			dec, err := Decode7Bit(enc)
			if err != nil {
				t.Fatalf("Decode7Bit: %v", err)
			}
			if !bytes.Equal(dec, tt.data) {
				t.Errorf("round trip = % X, want % X", dec, tt.data)
			}
			if len(dec) != DecodedLen(len(enc)) {
				t.Errorf("decoded length = %d, want %d", len(dec), DecodedLen(len(enc)))
			}
		})
	}
}

func TestSevenBitRoundTripLong(t *testing.T) {
	// Deterministic pseudo-random buffer spanning many blocks.
	data := make([]byte, 1024)
	state := uint32(0x2029)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}

	dec, err := Decode7Bit(Encode7Bit(data))
	if err != nil {
		t.Fatalf("Decode7Bit: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatal("1 KiB round trip mismatch")
	}
}

func TestDecode7BitRejectsHighBit(t *testing.T) {
	tests := []struct {
		name       string
		encoded    []byte
		wantOffset int
	}{
		{"high header", []byte{0x80, 0x01}, 0},
		{"high payload first block", []byte{0x00, 0x91}, 1},
		{"high payload second block", []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x00, 0xA0}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode7Bit(tt.encoded)
			if !errors.Is(err, ErrInvalidEncoding) {
				t.Fatalf("err = %v, want ErrInvalidEncoding", err)
			}

			var encErr *InvalidEncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("err = %T, want *InvalidEncodingError", err)
			}
			if encErr.Offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", encErr.Offset, tt.wantOffset)
			}
			if encErr.Byte != tt.encoded[tt.wantOffset] {
				t.Errorf("byte = 0x%02X, want 0x%02X", encErr.Byte, tt.encoded[tt.wantOffset])
			}
		})
	}
}

func TestDecode7BitHeaderOnlyBlock(t *testing.T) {
	// A lone header carries no data; it may legally trail a full block.
	dec, err := Decode7Bit([]byte{0x00})
	if err != nil {
		t.Fatalf("Decode7Bit: %v", err)
	}
	if len(dec) != 0 {
		t.Fatalf("decoded %d bytes from header-only input, want 0", len(dec))
	}

	full := append(Encode7Bit([]byte{1, 2, 3, 4, 5, 6, 7}), 0x00)
	dec, err = Decode7Bit(full)
	if err != nil {
		t.Fatalf("Decode7Bit: %v", err)
	}
	if !bytes.Equal(dec, []byte{1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("decoded % X, want 01..07", dec)
	}
}

func TestEncodedLen(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 2},
		{6, 7},
		{7, 8},
		{8, 10},
		{14, 16},
		{15, 18},
		{256, 293},
	}

	for _, tt := range tests {
		if got := EncodedLen(tt.n); got != tt.want {
			t.Errorf("EncodedLen(%d) = %d, want %d", tt.n, got, tt.want)
		}
		if got := DecodedLen(tt.want); got != tt.n {
			t.Errorf("DecodedLen(%d) = %d, want %d", tt.want, got, tt.n)
		}
	}
}

func TestASCIIRoundTrip(t *testing.T) {
	for _, s := range []string{"", "A", "CHANNEL STRIP", "EXACTLY18CHARSLONG"} {
		enc, err := EncodeASCII(s)
		if err != nil {
			t.Fatalf("EncodeASCII(%q): %v", s, err)
		}
		got, err := DecodeASCII(enc)
		if err != nil {
			t.Fatalf("DecodeASCII(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("round trip = %q, want %q", got, s)
		}
	}
}

func TestEncodeASCIIRejectsNonASCII(t *testing.T) {
	_, err := EncodeASCII("caf\xc3\xa9")
	if !errors.Is(err, ErrNotASCII) {
		t.Fatalf("err = %v, want ErrNotASCII", err)
	}

	var asciiErr *NotASCIIError
	if !errors.As(err, &asciiErr) {
		t.Fatalf("err = %T, want *NotASCIIError", err)
	}
	if asciiErr.Offset != 3 {
		t.Errorf("offset = %d, want 3", asciiErr.Offset)
	}
}

func TestDecodeASCIIRejectsHighDecodedByte(t *testing.T) {
	enc := Encode7Bit([]byte{0x41, 0xC9})
	_, err := DecodeASCII(enc)
	if !errors.Is(err, ErrNotASCII) {
		t.Fatalf("err = %v, want ErrNotASCII", err)
	}
}

func TestHexDumpGroupsByBlock(t *testing.T) {
	enc := Encode7Bit([]byte{0x81, 0x02, 0x83, 0x04, 0x85, 0x06, 0x87, 0xFF})
	dump := HexDump(enc)

	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("dump has %d lines, want 2 (one per block):\n%s", len(lines), dump)
	}
	if !strings.HasPrefix(lines[0], "0000: 55 01 02 03 04 05 06 07") {
		t.Errorf("first block line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0008: 01 7F") {
		t.Errorf("second block line = %q", lines[1])
	}
}

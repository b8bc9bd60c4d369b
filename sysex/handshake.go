package sysex

import "fmt"

// Handshake traffic, as captured from the device:
//
//	SYN       F0 00 20 29 00 42 02 F7
//	SYN-ACK   F0 00 20 29 00 42 02 <serial ascii...> F7
//	INQUIRY   F0 7E <deviceID> 06 01 F7
//	REPLY     F0 7E <deviceID> 06 02 <manufacturer> <family> <model> <firmware(4)> F7
//
// Family and model travel LSB-first in two 7-bit bytes each.

// BuildSyn constructs the vendor hello that opens the modern handshake.
func BuildSyn() []byte {
	return BuildFrame(ManufacturerNovation, synAddress)
}

// BuildSynAck constructs the device's answer to a SYN. The serial rides as
// plain ASCII after the shared address bytes.
func BuildSynAck(serial string) []byte {
	body := make([]byte, 0, len(synAddress)+len(serial))
	body = append(body, synAddress...)
	body = append(body, serial...)
	return BuildFrame(ManufacturerNovation, body)
}

// ParseSyn validates a vendor hello.
func ParseSyn(raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		return err
	}
	if !f.IsNovation() {
		return &UnexpectedReplyError{Expected: "SYN", Reason: "manufacturer id", Offset: -1}
	}
	if err := matchBody(f.Body, synAddress, "SYN"); err != nil {
		return err
	}
	if len(f.Body) != len(synAddress) {
		return &UnexpectedReplyError{Expected: "SYN", Reason: "trailing bytes after address", Offset: -1}
	}
	return nil
}

// ParseSynAck extracts the unit serial number from a SYN-ACK. Non-printable
// bytes in the serial region are skipped, matching how the captured testers
// read it; an empty serial is legal (seen on factory-reset units).
func ParseSynAck(raw []byte) (string, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return "", err
	}
	if !f.IsNovation() {
		return "", &UnexpectedReplyError{Expected: "SYN-ACK", Reason: "manufacturer id", Offset: -1}
	}
	if err := matchBody(f.Body, synAddress, "SYN-ACK"); err != nil {
		return "", err
	}

	serial := make([]byte, 0, len(f.Body)-len(synAddress))
	for _, b := range f.Body[len(synAddress):] {
		if b >= 0x20 && b < 0x7F {
			serial = append(serial, b)
		}
	}
	return string(serial), nil
}

// BuildInquiry constructs a universal device inquiry addressed to deviceID.
// DeviceIDNegotiated targets the unit that answered the SYN; the legacy path
// broadcasts with DeviceIDBroadcast.
func BuildInquiry(deviceID byte) []byte {
	return BuildFrame([]byte{ManufacturerUniversal}, []byte{deviceID, SubIDGeneralInfo, SubIDInquiryRequest})
}

// ParseInquiry validates a universal device inquiry and returns its target.
func ParseInquiry(raw []byte) (byte, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return 0, err
	}
	if !f.IsUniversal() {
		return 0, &UnexpectedReplyError{Expected: "inquiry", Reason: "universal id", Offset: -1}
	}
	if len(f.Body) != 3 {
		return 0, &UnexpectedReplyError{Expected: "inquiry", Reason: "body length", Offset: -1}
	}
	if f.Body[1] != SubIDGeneralInfo {
		return 0, &UnexpectedReplyError{Expected: "inquiry", Reason: "sub-id", Offset: 1, Want: SubIDGeneralInfo, Got: f.Body[1]}
	}
	if f.Body[2] != SubIDInquiryRequest {
		return 0, &UnexpectedReplyError{Expected: "inquiry", Reason: "sub-id", Offset: 2, Want: SubIDInquiryRequest, Got: f.Body[2]}
	}
	return f.Body[0], nil
}

// InquiryReply is the identity block a device answers an inquiry with.
type InquiryReply struct {
	// DeviceID echoes the id the reply is addressed from
	DeviceID byte

	// Manufacturer is the 1-byte universal or 3-byte extended id
	Manufacturer []byte

	// Family and Model identify the product line and member
	Family uint16
	Model  uint16

	// Firmware holds the four raw revision bytes
	Firmware [4]byte
}

// FirmwareString renders the revision bytes the way the vendor tools do.
func (r InquiryReply) FirmwareString() string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Firmware[0], r.Firmware[1], r.Firmware[2], r.Firmware[3])
}

// BuildInquiryReply constructs the identity answer to a device inquiry.
func BuildInquiryReply(r InquiryReply) []byte {
	body := make([]byte, 0, 3+len(r.Manufacturer)+8)
	body = append(body, r.DeviceID, SubIDGeneralInfo, SubIDInquiryReply)
	body = append(body, r.Manufacturer...)
	body = append(body,
		byte(r.Family&0x7F), byte(r.Family>>7&0x7F),
		byte(r.Model&0x7F), byte(r.Model>>7&0x7F),
	)
	body = append(body, r.Firmware[:]...)
	return BuildFrame([]byte{ManufacturerUniversal}, body)
}

// ParseInquiryReply decodes the identity answer. The manufacturer id inside
// the body follows the same 1-or-3-byte rule as the envelope.
func ParseInquiryReply(raw []byte) (InquiryReply, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return InquiryReply{}, err
	}
	if !f.IsUniversal() {
		return InquiryReply{}, &UnexpectedReplyError{Expected: "inquiry reply", Reason: "universal id", Offset: -1}
	}
	body := f.Body
	if len(body) < 3 {
		return InquiryReply{}, &UnexpectedReplyError{Expected: "inquiry reply", Reason: "body length", Offset: -1}
	}
	if body[1] != SubIDGeneralInfo {
		return InquiryReply{}, &UnexpectedReplyError{Expected: "inquiry reply", Reason: "sub-id", Offset: 1, Want: SubIDGeneralInfo, Got: body[1]}
	}
	if body[2] != SubIDInquiryReply {
		return InquiryReply{}, &UnexpectedReplyError{Expected: "inquiry reply", Reason: "sub-id", Offset: 2, Want: SubIDInquiryReply, Got: body[2]}
	}

	rest := body[3:]
	idLen := 1
	if len(rest) > 0 && rest[0] == 0x00 {
		idLen = 3
	}
	if len(rest) < idLen+8 {
		return InquiryReply{}, &UnexpectedReplyError{Expected: "inquiry reply", Reason: "identity block length", Offset: -1}
	}

	r := InquiryReply{
		DeviceID:     body[0],
		Manufacturer: rest[:idLen],
		Family:       uint16(rest[idLen]) | uint16(rest[idLen+1])<<7,
		Model:        uint16(rest[idLen+2]) | uint16(rest[idLen+3])<<7,
	}
	copy(r.Firmware[:], rest[idLen+4:idLen+8])
	return r, nil
}

// matchBody checks that body opens with the expected address bytes.
func matchBody(body, address []byte, expected string) error {
	if len(body) < len(address) {
		return &UnexpectedReplyError{Expected: expected, Reason: "truncated address", Offset: -1}
	}
	for i, want := range address {
		if body[i] != want {
			return &UnexpectedReplyError{Expected: expected, Reason: "address byte", Offset: i, Want: want, Got: body[i]}
		}
	}
	return nil
}

package sysex

// Custom-mode traffic shares one frame shape and dispatches on a command
// byte right after the address:
//
//	F0 00 20 29 02 15 05 00 <CMD> <args...> F7
//
// Read request   CMD=0x40  [page][slot]
// Read reply     CMD=0x10  [page][slot][pageCount][data...]
// Write page     CMD=0x45  [page][slot][pageCount][data...]
// Write ack      CMD=0x15  [page][status]
// LED set        CMD=0x78  [controlID colour]...
//
// Slot bytes here are wire slots (0-based); the device package owns the
// public 1-based numbering.

// ModePage is one fragment of a mode transfer, in either direction.
type ModePage struct {
	// Page is this fragment's 0-based index
	Page byte

	// Slot is the 0-based wire slot the mode lives in
	Slot byte

	// PageCount is the total number of fragments in the transfer
	PageCount byte

	// Data is the fragment payload, at most PagePayloadMax bytes
	Data []byte
}

// LEDState pairs a control id with a palette colour for immediate feedback
// outside a full mode write.
type LEDState struct {
	Control byte
	Colour  byte
}

// ModeCommand returns the command byte of a custom-mode frame, rejecting
// frames outside the family.
func ModeCommand(raw []byte) (byte, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return 0, err
	}
	body, err := customModeBody(f)
	if err != nil {
		return 0, err
	}
	return body[0], nil
}

// BuildModeReadRequest asks for one page of the mode stored in a wire slot.
func BuildModeReadRequest(page, slot byte) []byte {
	body := append(append([]byte{}, customModeAddress...), CmdModeRead, page, slot)
	return BuildFrame(ManufacturerNovation, body)
}

// ParseModeReadRequest decodes a read request into its page and wire slot.
func ParseModeReadRequest(raw []byte) (page, slot byte, err error) {
	body, err := modeBody(raw, CmdModeRead, "mode read request")
	if err != nil {
		return 0, 0, err
	}
	if len(body) != 3 {
		return 0, 0, &UnexpectedReplyError{Expected: "mode read request", Reason: "argument count", Offset: -1}
	}
	return body[1], body[2], nil
}

// BuildModeReadReply packs one page of mode data flowing device to host.
func BuildModeReadReply(p ModePage) []byte {
	return buildModePage(CmdModeReadReply, p)
}

// ParseModeReadReply decodes one page of mode data flowing device to host.
func ParseModeReadReply(raw []byte) (ModePage, error) {
	return parseModePage(raw, CmdModeReadReply, "mode read reply")
}

// BuildModeWritePage packs one page of mode data flowing host to device.
func BuildModeWritePage(p ModePage) []byte {
	return buildModePage(CmdModeWrite, p)
}

// ParseModeWritePage decodes one page of mode data flowing host to device.
func ParseModeWritePage(raw []byte) (ModePage, error) {
	return parseModePage(raw, CmdModeWrite, "mode write page")
}

// BuildWriteAck packs the device's verdict on a written page. WriteStatusOK
// accepts the page; anything else rejects it.
func BuildWriteAck(page, status byte) []byte {
	body := append(append([]byte{}, customModeAddress...), CmdModeWriteAck, page, status)
	return BuildFrame(ManufacturerNovation, body)
}

// ParseWriteAck decodes a page acknowledgement into its page and status.
func ParseWriteAck(raw []byte) (page, status byte, err error) {
	body, err := modeBody(raw, CmdModeWriteAck, "write ack")
	if err != nil {
		return 0, 0, err
	}
	if len(body) != 3 {
		return 0, 0, &UnexpectedReplyError{Expected: "write ack", Reason: "argument count", Offset: -1}
	}
	return body[1], body[2], nil
}

// BuildLEDSet lights controls immediately, without touching the stored mode.
func BuildLEDSet(states []LEDState) []byte {
	body := make([]byte, 0, len(customModeAddress)+1+2*len(states))
	body = append(body, customModeAddress...)
	body = append(body, CmdLEDSet)
	for _, s := range states {
		body = append(body, s.Control&0x7F, s.Colour&0x7F)
	}
	return BuildFrame(ManufacturerNovation, body)
}

// ParseLEDSet decodes an immediate LED message into its control/colour pairs.
func ParseLEDSet(raw []byte) ([]LEDState, error) {
	body, err := modeBody(raw, CmdLEDSet, "led set")
	if err != nil {
		return nil, err
	}
	pairs := body[1:]
	if len(pairs)%2 != 0 {
		return nil, &UnexpectedReplyError{Expected: "led set", Reason: "odd pair bytes", Offset: -1}
	}
	states := make([]LEDState, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		states = append(states, LEDState{Control: pairs[i], Colour: pairs[i+1]})
	}
	return states, nil
}

func buildModePage(cmd byte, p ModePage) []byte {
	body := make([]byte, 0, len(customModeAddress)+4+len(p.Data))
	body = append(body, customModeAddress...)
	body = append(body, cmd, p.Page, p.Slot, p.PageCount)
	body = append(body, p.Data...)
	return BuildFrame(ManufacturerNovation, body)
}

func parseModePage(raw []byte, cmd byte, expected string) (ModePage, error) {
	body, err := modeBody(raw, cmd, expected)
	if err != nil {
		return ModePage{}, err
	}
	if len(body) < 4 {
		return ModePage{}, &UnexpectedReplyError{Expected: expected, Reason: "argument count", Offset: -1}
	}
	return ModePage{
		Page:      body[1],
		Slot:      body[2],
		PageCount: body[3],
		Data:      body[4:],
	}, nil
}

// modeBody validates the family address and command and returns the body
// from the command byte onward.
func modeBody(raw []byte, cmd byte, expected string) ([]byte, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	body, err := customModeBody(f)
	if err != nil {
		return nil, err
	}
	if body[0] != cmd {
		return nil, &UnexpectedReplyError{Expected: expected, Reason: "command", Offset: len(customModeAddress), Want: cmd, Got: body[0]}
	}
	return body, nil
}

// customModeBody strips the family address, leaving the command byte first.
func customModeBody(f Frame) ([]byte, error) {
	if !f.IsNovation() {
		return nil, &UnexpectedReplyError{Expected: "custom-mode message", Reason: "manufacturer id", Offset: -1}
	}
	if err := matchBody(f.Body, customModeAddress, "custom-mode message"); err != nil {
		return nil, err
	}
	if len(f.Body) < len(customModeAddress)+1 {
		return nil, &UnexpectedReplyError{Expected: "custom-mode message", Reason: "missing command byte", Offset: -1}
	}
	return f.Body[len(customModeAddress):], nil
}

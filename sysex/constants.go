package sysex

// Frame envelope markers. Every exchanged unit is bounded by these and
// everything in between must be 7-bit clean.
const (
	// StartOfExclusive is the frame start marker (0xF0)
	StartOfExclusive = 0xF0

	// EndOfExclusive is the frame end marker (0xF7)
	EndOfExclusive = 0xF7

	// MinFrameSize is the smallest parseable frame:
	// START(1) + MANUFACTURER(1) + END(1)
	MinFrameSize = 3
)

// ManufacturerNovation is the extended manufacturer id carried by every
// vendor-specific frame the device emits or accepts.
var ManufacturerNovation = []byte{0x00, 0x20, 0x29}

// Universal (non-realtime) message constants, used by the device inquiry
// exchange during the handshake.
const (
	// ManufacturerUniversal addresses the universal non-realtime space (0x7E)
	ManufacturerUniversal = 0x7E

	// SubIDGeneralInfo selects the General Information group (0x06)
	SubIDGeneralInfo = 0x06

	// SubIDInquiryRequest asks a device to identify itself (0x01)
	SubIDInquiryRequest = 0x01

	// SubIDInquiryReply carries the identity answer (0x02)
	SubIDInquiryReply = 0x02

	// DeviceIDNegotiated is the directed device id used after a SYN-ACK
	DeviceIDNegotiated = 0x00

	// DeviceIDBroadcast addresses all devices, used by the legacy fallback
	DeviceIDBroadcast = 0x7F
)

// Vendor handshake addressing. The SYN and SYN-ACK share this prefix after
// the manufacturer id; the SYN-ACK appends the unit serial number in ASCII.
var synAddress = []byte{0x00, 0x42, 0x02}

// Custom-mode message family. All slot read/write traffic shares the address
// prefix and dispatches on a command byte directly after it.
var customModeAddress = []byte{0x02, 0x15, 0x05, 0x00}

// Custom-mode command bytes (offset 8 of the raw frame).
const (
	// CmdModeRead requests one page of a stored mode: [page, slot]
	CmdModeRead = 0x40

	// CmdModeReadReply carries one page of mode data: [page, slot, pageCount, data...]
	CmdModeReadReply = 0x10

	// CmdModeWrite stores one page of mode data: [page, slot, pageCount, data...]
	CmdModeWrite = 0x45

	// CmdModeWriteAck acknowledges a written page: [page, status]
	CmdModeWriteAck = 0x15

	// CmdLEDSet lights controls immediately: [controlID, colour]...
	CmdLEDSet = 0x78
)

// WriteStatusOK is the acknowledgement status for a successfully stored page.
// Any other status byte is a device-side rejection.
const WriteStatusOK = 0x06

// PagePayloadMax is the largest data chunk one custom-mode message carries.
// Modes larger than this are split across pages.
const PagePayloadMax = 256

// PageCountMax bounds pages per mode; the hardware stores nothing bigger.
const PageCountMax = 4

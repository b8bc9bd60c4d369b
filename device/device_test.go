package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lcxl3/custommode"
	"lcxl3/sysex"
	"lcxl3/transport"
)

const testSerial = "LX2B5C0340828"

// fakePort scripts the unit's side of an exchange: every frame the session
// sends is answered by the reply function, and the answers land on the
// inbound queue exactly as device traffic would.
type fakePort struct {
	mu     sync.Mutex
	sent   [][]byte
	frames chan []byte
	reply  func(frame []byte) [][]byte
	closed bool
}

func newFakePort(reply func(frame []byte) [][]byte) *fakePort {
	return &fakePort{
		frames: make(chan []byte, 16),
		reply:  reply,
	}
}

func (p *fakePort) Send(frame []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("port closed")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	p.sent = append(p.sent, cp)
	reply := p.reply
	p.mu.Unlock()

	if reply == nil {
		return nil
	}
	for _, r := range reply(cp) {
		p.frames <- r
	}
	return nil
}

func (p *fakePort) Frames() <-chan []byte { return p.frames }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.frames)
	}
	return nil
}

func (p *fakePort) sentFrames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.sent...)
}

func synAckReply() []byte { return sysex.BuildSynAck(testSerial) }

func inquiryReply() []byte {
	return sysex.BuildInquiryReply(sysex.InquiryReply{
		DeviceID:     sysex.DeviceIDNegotiated,
		Manufacturer: sysex.ManufacturerNovation,
		Family:       0x0215,
		Model:        0x0061,
		Firmware:     [4]byte{1, 0, 10, 84},
	})
}

// healthyReply answers like a unit on current firmware: syn-ack to the syn,
// identity to any inquiry, and defers everything else to next.
func healthyReply(next func(frame []byte) [][]byte) func(frame []byte) [][]byte {
	return func(frame []byte) [][]byte {
		if sysex.ParseSyn(frame) == nil {
			return [][]byte{synAckReply()}
		}
		if _, err := sysex.ParseInquiry(frame); err == nil {
			return [][]byte{inquiryReply()}
		}
		if next != nil {
			return next(frame)
		}
		return nil
	}
}

func connected(t *testing.T, next func(frame []byte) [][]byte, opts ...Option) (*Device, *fakePort) {
	t.Helper()
	port := newFakePort(healthyReply(next))
	dev := New(port, nil, opts...)
	if _, err := dev.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	return dev, port
}

func TestConnectModernHandshake(t *testing.T) {
	port := newFakePort(healthyReply(nil))
	dev := New(port, nil)

	id, err := dev.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if id.Serial != testSerial {
		t.Errorf("Serial = %q, want %q", id.Serial, testSerial)
	}
	if id.Firmware != "1.0.10.84" {
		t.Errorf("Firmware = %q, want %q", id.Firmware, "1.0.10.84")
	}
	if id.Family != 0x0215 || id.Model != 0x0061 {
		t.Errorf("Family/Model = 0x%04X/0x%04X, want 0x0215/0x0061", id.Family, id.Model)
	}
	if dev.State() != StateConnected {
		t.Errorf("State() = %v, want %v", dev.State(), StateConnected)
	}

	got, ok := dev.Identity()
	if !ok || got.Serial != testSerial {
		t.Errorf("Identity() = %+v, %v", got, ok)
	}

	// The inquiry after a syn-ack must address the negotiated id, not
	// broadcast.
	sent := port.sentFrames()
	if len(sent) != 2 {
		t.Fatalf("sent %d frames, want 2 (syn, inquiry)", len(sent))
	}
	devID, err := sysex.ParseInquiry(sent[1])
	if err != nil {
		t.Fatalf("second frame is not an inquiry: %v", err)
	}
	if devID != sysex.DeviceIDNegotiated {
		t.Errorf("inquiry device id = 0x%02X, want 0x%02X", devID, sysex.DeviceIDNegotiated)
	}
}

func TestConnectLegacyFallback(t *testing.T) {
	// The unit never answers the syn; only a broadcast inquiry gets the
	// identity back.
	reply := func(frame []byte) [][]byte {
		if devID, err := sysex.ParseInquiry(frame); err == nil && devID == sysex.DeviceIDBroadcast {
			return [][]byte{inquiryReply()}
		}
		return nil
	}
	dev := New(newFakePort(reply), nil, WithSynAckTimeout(20*time.Millisecond))

	id, err := dev.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if id.Serial != "" {
		t.Errorf("Serial = %q, want empty on the legacy path", id.Serial)
	}
	if id.Firmware != "1.0.10.84" {
		t.Errorf("Firmware = %q, want %q", id.Firmware, "1.0.10.84")
	}
	if dev.State() != StateConnected {
		t.Errorf("State() = %v, want %v", dev.State(), StateConnected)
	}
}

func TestConnectForgedManufacturerRejected(t *testing.T) {
	// A syn-ack shaped reply from the wrong vendor must end the handshake,
	// not fall through to the legacy path.
	forged := sysex.BuildFrame([]byte{0x00, 0x21, 0x10},
		append([]byte{0x00, 0x42, 0x02}, []byte(testSerial)...))
	reply := func(frame []byte) [][]byte {
		if sysex.ParseSyn(frame) == nil {
			return [][]byte{forged}
		}
		return nil
	}
	port := newFakePort(reply)
	dev := New(port, nil)

	_, err := dev.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("Connect() = %v, want ErrHandshakeRejected", err)
	}
	if !errors.Is(err, sysex.ErrUnexpectedReply) {
		t.Errorf("cause chain lost the reply mismatch: %v", err)
	}
	if dev.State() != StateFailed {
		t.Errorf("State() = %v, want %v", dev.State(), StateFailed)
	}
	if _, ok := dev.Identity(); ok {
		t.Error("Identity() reports an identity after a rejected handshake")
	}
	if sent := port.sentFrames(); len(sent) != 1 {
		t.Errorf("sent %d frames, want 1 (no retry after rejection)", len(sent))
	}
}

func TestConnectBusy(t *testing.T) {
	synSeen := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	reply := func(frame []byte) [][]byte {
		if sysex.ParseSyn(frame) == nil {
			once.Do(func() { close(synSeen) })
			<-release
			return [][]byte{synAckReply()}
		}
		if _, err := sysex.ParseInquiry(frame); err == nil {
			return [][]byte{inquiryReply()}
		}
		return nil
	}
	dev := New(newFakePort(reply), nil)

	type result struct {
		id  Identity
		err error
	}
	first := make(chan result, 1)
	go func() {
		id, err := dev.Connect(context.Background())
		first <- result{id, err}
	}()

	<-synSeen
	_, err := dev.Connect(context.Background())
	if !errors.Is(err, ErrConnectionBusy) {
		t.Fatalf("second Connect() = %v, want ErrConnectionBusy", err)
	}

	close(release)
	r := <-first
	if r.err != nil {
		t.Fatalf("first Connect() = %v", r.err)
	}
	if r.id.Serial != testSerial {
		t.Errorf("first Connect serial = %q, want %q", r.id.Serial, testSerial)
	}
	if dev.State() != StateConnected {
		t.Errorf("State() = %v, want %v", dev.State(), StateConnected)
	}
}

func TestConnectOverallTimeout(t *testing.T) {
	// Nothing ever answers. The per-step waits would keep the attempt
	// alive past the ceiling if the ceiling were not absolute.
	dev := New(newFakePort(nil), nil,
		WithSynAckTimeout(20*time.Millisecond),
		WithInquiryTimeout(time.Second),
		WithConnectTimeout(80*time.Millisecond),
	)

	start := time.Now()
	_, err := dev.Connect(context.Background())
	if !errors.Is(err, ErrProtocolTimeout) {
		t.Fatalf("Connect() = %v, want ErrProtocolTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Connect took %v, ceiling was 80ms", elapsed)
	}
	if dev.State() != StateFailed {
		t.Errorf("State() = %v, want %v", dev.State(), StateFailed)
	}
}

func TestConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := New(newFakePort(nil), nil)
	_, err := dev.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() = %v, want context.Canceled", err)
	}
	if dev.State() != StateFailed {
		t.Errorf("State() = %v, want %v", dev.State(), StateFailed)
	}
}

func TestConnectAgainAfterFailure(t *testing.T) {
	forged := sysex.BuildFrame([]byte{0x00, 0x21, 0x10},
		append([]byte{0x00, 0x42, 0x02}, []byte("NOPE")...))
	var syns int
	var mu sync.Mutex
	reply := func(frame []byte) [][]byte {
		if sysex.ParseSyn(frame) == nil {
			mu.Lock()
			syns++
			n := syns
			mu.Unlock()
			if n == 1 {
				return [][]byte{forged}
			}
			return [][]byte{synAckReply()}
		}
		if _, err := sysex.ParseInquiry(frame); err == nil {
			return [][]byte{inquiryReply()}
		}
		return nil
	}
	dev := New(newFakePort(reply), nil)

	if _, err := dev.Connect(context.Background()); !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("first Connect() = %v, want ErrHandshakeRejected", err)
	}
	id, err := dev.Connect(context.Background())
	if err != nil {
		t.Fatalf("second Connect() = %v", err)
	}
	if id.Serial != testSerial {
		t.Errorf("Serial = %q, want %q", id.Serial, testSerial)
	}
}

func TestSlotRangeCheckedBeforeIO(t *testing.T) {
	port := newFakePort(nil)
	dev := New(port, nil)

	for _, slot := range []int{0, -3, 16, 99} {
		if _, err := dev.ReadMode(context.Background(), slot); !errors.Is(err, ErrSlotOutOfRange) {
			t.Errorf("ReadMode(slot %d) = %v, want ErrSlotOutOfRange", slot, err)
		}
		if err := dev.WriteMode(context.Background(), slot, custommode.NewMode("X")); !errors.Is(err, ErrSlotOutOfRange) {
			t.Errorf("WriteMode(slot %d) = %v, want ErrSlotOutOfRange", slot, err)
		}
	}

	var rangeErr *SlotRangeError
	_, err := dev.ReadMode(context.Background(), 16)
	if !errors.As(err, &rangeErr) || rangeErr.Slot != 16 {
		t.Errorf("error carries no slot: %v", err)
	}

	if sent := port.sentFrames(); len(sent) != 0 {
		t.Errorf("out-of-range slots reached the transport: %d frames sent", len(sent))
	}
}

func TestTransferRequiresConnection(t *testing.T) {
	dev := New(newFakePort(nil), nil)
	if _, err := dev.ReadMode(context.Background(), 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadMode before Connect = %v, want ErrNotConnected", err)
	}
}

// fullMode fills every control and the two button rows, which is enough
// payload to spread over two pages.
func fullMode(t *testing.T) *custommode.Mode {
	t.Helper()
	m := custommode.NewMode("EVERY CONTROL SET")
	for id := custommode.ControlIDFirst; id <= custommode.ControlIDLast; id++ {
		c := custommode.Control{
			ID:        byte(id),
			Channel:   byte(id % 16),
			CC:        byte(id),
			Behaviour: custommode.Absolute,
			Max:       127,
		}
		if err := m.SetControl(c); err != nil {
			t.Fatalf("SetControl(0x%02X) = %v", id, err)
		}
	}
	for col := 0; col < custommode.Columns; col++ {
		if err := m.SetLED(custommode.ButtonID(0, col), byte(col)); err != nil {
			t.Fatalf("SetLED = %v", err)
		}
		if err := m.SetLED(custommode.ButtonID(1, col), byte(col+8)); err != nil {
			t.Fatalf("SetLED = %v", err)
		}
	}
	return m
}

// readReplies renders a mode the way the unit answers a read request.
func readReplies(t *testing.T, m *custommode.Mode, wireSlot byte) [][]byte {
	t.Helper()
	payload, err := custommode.EncodeReadPayload(m)
	if err != nil {
		t.Fatalf("EncodeReadPayload = %v", err)
	}
	pages, err := custommode.SplitPages(payload)
	if err != nil {
		t.Fatalf("SplitPages = %v", err)
	}
	var out [][]byte
	for i, data := range pages {
		out = append(out, sysex.BuildModeReadReply(sysex.ModePage{
			Page: byte(i), Slot: wireSlot, PageCount: byte(len(pages)), Data: data,
		}))
	}
	return out
}

func TestReadMode(t *testing.T) {
	want := fullMode(t)
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, slot, err := sysex.ParseModeReadRequest(frame); err == nil {
			return readReplies(t, want, slot)
		}
		return nil
	})

	got, err := dev.ReadMode(context.Background(), 5)
	if err != nil {
		t.Fatalf("ReadMode() = %v", err)
	}
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if len(got.Controls) != len(want.Controls) {
		t.Fatalf("decoded %d controls, want %d", len(got.Controls), len(want.Controls))
	}
	for id, c := range want.Controls {
		if got.Controls[id] != c {
			t.Errorf("control 0x%02X = %+v, want %+v", id, got.Controls[id], c)
		}
	}
	for id, colour := range want.LEDs {
		if got.LEDs[id] != colour {
			t.Errorf("led 0x%02X = %d, want %d", id, got.LEDs[id], colour)
		}
	}
}

func TestReadModeDefaultName(t *testing.T) {
	want := custommode.NewMode("")
	want.DefaultName = true
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, slot, err := sysex.ParseModeReadRequest(frame); err == nil {
			return readReplies(t, want, slot)
		}
		return nil
	})

	got, err := dev.ReadMode(context.Background(), 7)
	if err != nil {
		t.Fatalf("ReadMode() = %v", err)
	}
	if !got.DefaultName {
		t.Error("DefaultName lost in transit")
	}
	if got.Name != "Custom 7" {
		t.Errorf("Name = %q, want the slot default %q", got.Name, "Custom 7")
	}
}

func TestReadModeOutOfOrderPage(t *testing.T) {
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, slot, err := sysex.ParseModeReadRequest(frame); err == nil {
			// Second page first.
			return [][]byte{
				sysex.BuildModeReadReply(sysex.ModePage{Page: 1, Slot: slot, PageCount: 2, Data: []byte{0x20, 0x00}}),
			}
		}
		return nil
	})

	_, err := dev.ReadMode(context.Background(), 2)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("ReadMode() = %v, want ErrTransferFailed", err)
	}
	var terr *TransferError
	if !errors.As(err, &terr) || terr.Page != 0 {
		t.Errorf("error does not point at the missing page: %v", err)
	}
}

func TestReadModeDuplicatePage(t *testing.T) {
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, slot, err := sysex.ParseModeReadRequest(frame); err == nil {
			page := sysex.ModePage{Page: 0, Slot: slot, PageCount: 2, Data: []byte{0x20, 0x00}}
			raw := sysex.BuildModeReadReply(page)
			return [][]byte{raw, raw}
		}
		return nil
	})

	_, err := dev.ReadMode(context.Background(), 2)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("ReadMode() = %v, want ErrTransferFailed", err)
	}
	var terr *TransferError
	if !errors.As(err, &terr) || terr.Page != 1 {
		t.Errorf("error does not point at the duplicated position: %v", err)
	}
}

func TestReadModeWrongSlotPage(t *testing.T) {
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, _, err := sysex.ParseModeReadRequest(frame); err == nil {
			return [][]byte{
				sysex.BuildModeReadReply(sysex.ModePage{Page: 0, Slot: 9, PageCount: 1, Data: []byte{0x20, 0x00}}),
			}
		}
		return nil
	})

	_, err := dev.ReadMode(context.Background(), 2)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("ReadMode() = %v, want ErrTransferFailed", err)
	}
}

func TestWriteMode(t *testing.T) {
	mode := fullMode(t)
	dev, port := connected(t, func(frame []byte) [][]byte {
		if p, err := sysex.ParseModeWritePage(frame); err == nil {
			return [][]byte{sysex.BuildWriteAck(p.Page, sysex.WriteStatusOK)}
		}
		return nil
	})

	if err := dev.WriteMode(context.Background(), 3, mode); err != nil {
		t.Fatalf("WriteMode() = %v", err)
	}

	var pages []sysex.ModePage
	for _, frame := range port.sentFrames() {
		if p, err := sysex.ParseModeWritePage(frame); err == nil {
			pages = append(pages, p)
		}
	}
	if len(pages) != 2 {
		t.Fatalf("sent %d write pages, want 2", len(pages))
	}
	for i, p := range pages {
		if int(p.Page) != i {
			t.Errorf("page %d sent with index %d", i, p.Page)
		}
		if p.Slot != 2 {
			t.Errorf("page %d addressed wire slot %d, want 2", i, p.Slot)
		}
		if p.PageCount != 2 {
			t.Errorf("page %d carries count %d, want 2", i, p.PageCount)
		}
	}

	// What went on the wire is what a read of the same slot would decode.
	joined := custommode.JoinPages([][]byte{pages[0].Data, pages[1].Data})
	got, err := custommode.DecodeWritePayload(joined)
	if err != nil {
		t.Fatalf("DecodeWritePayload = %v", err)
	}
	if got.Name != mode.Name {
		t.Errorf("Name = %q, want %q", got.Name, mode.Name)
	}
}

func TestWriteModePageNack(t *testing.T) {
	mode := fullMode(t)
	dev, port := connected(t, func(frame []byte) [][]byte {
		if p, err := sysex.ParseModeWritePage(frame); err == nil {
			status := byte(sysex.WriteStatusOK)
			if p.Page == 1 {
				status = 0x04
			}
			return [][]byte{sysex.BuildWriteAck(p.Page, status)}
		}
		return nil
	}, WithWriteRetries(0))

	err := dev.WriteMode(context.Background(), 3, mode)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("WriteMode() = %v, want ErrTransferFailed", err)
	}
	var terr *TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("WriteMode() error is not a TransferError: %v", err)
	}
	if terr.Page != 1 || terr.Slot != 3 {
		t.Errorf("TransferError = slot %d page %d, want slot 3 page 1", terr.Slot, terr.Page)
	}

	// Pages past the failed one must not have been sent.
	var writes int
	for _, frame := range port.sentFrames() {
		if _, err := sysex.ParseModeWritePage(frame); err == nil {
			writes++
		}
	}
	if writes != 2 {
		t.Errorf("sent %d write pages, want 2 (stop at the nack)", writes)
	}
}

func TestWriteModeRetryAfterMissingAck(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if p, err := sysex.ParseModeWritePage(frame); err == nil {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return nil // swallow the first page, force a resend
			}
			return [][]byte{sysex.BuildWriteAck(p.Page, sysex.WriteStatusOK)}
		}
		return nil
	}, WithPageTimeout(30*time.Millisecond))

	mode := custommode.NewMode("RETRY")
	if err := dev.WriteMode(context.Background(), 1, mode); err != nil {
		t.Fatalf("WriteMode() = %v", err)
	}
	if attempts != 2 {
		t.Errorf("unit saw %d attempts, want 2", attempts)
	}
}

func TestWriteModeAckPageMismatch(t *testing.T) {
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, err := sysex.ParseModeWritePage(frame); err == nil {
			return [][]byte{sysex.BuildWriteAck(3, sysex.WriteStatusOK)}
		}
		return nil
	}, WithWriteRetries(1))

	err := dev.WriteMode(context.Background(), 1, custommode.NewMode("DESYNC"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("WriteMode() = %v, want ErrTransferFailed", err)
	}
}

func TestTransferBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	dev, _ := connected(t, func(frame []byte) [][]byte {
		if _, _, err := sysex.ParseModeReadRequest(frame); err == nil {
			once.Do(func() { close(started) })
			<-release
		}
		return nil
	}, WithPageTimeout(20*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := dev.ReadMode(context.Background(), 1)
		done <- err
	}()

	<-started
	if _, err := dev.ReadMode(context.Background(), 2); !errors.Is(err, ErrConnectionBusy) {
		t.Fatalf("overlapping ReadMode = %v, want ErrConnectionBusy", err)
	}

	close(release)
	if err := <-done; !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("first ReadMode = %v, want ErrTransferFailed after silence", err)
	}
}

func TestSetLEDs(t *testing.T) {
	port := newFakePort(nil)
	dev := New(port, nil)

	if err := dev.SetLEDs(); err != nil {
		t.Fatalf("SetLEDs() = %v", err)
	}
	if len(port.sentFrames()) != 0 {
		t.Error("empty SetLEDs touched the transport")
	}

	states := []sysex.LEDState{
		{Control: 0x30, Colour: 21},
		{Control: 0x31, Colour: 5},
	}
	if err := dev.SetLEDs(states...); err != nil {
		t.Fatalf("SetLEDs() = %v", err)
	}

	sent := port.sentFrames()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	got, err := sysex.ParseLEDSet(sent[0])
	if err != nil {
		t.Fatalf("ParseLEDSet = %v", err)
	}
	if len(got) != 2 || got[0] != states[0] || got[1] != states[1] {
		t.Errorf("ParseLEDSet = %+v, want %+v", got, states)
	}
}

func TestCloseDiscardsSession(t *testing.T) {
	dev, _ := connected(t, nil)

	if err := dev.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if _, ok := dev.Identity(); ok {
		t.Error("Identity() survives Close")
	}
	if _, err := dev.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
	if _, err := dev.ReadMode(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadMode after Close = %v, want ErrClosed", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

// fakeDAW records channel messages and lets a test script the unit's
// replies on the inbound CC queue.
type fakeDAW struct {
	mu      sync.Mutex
	notes   [][3]uint8
	ccs     [][3]uint8
	inbound chan transport.ControlChange
	onCC    func(channel, controller, value uint8)
	closed  bool
}

func newFakeDAW() *fakeDAW {
	return &fakeDAW{inbound: make(chan transport.ControlChange, 8)}
}

func (f *fakeDAW) SendNoteOn(channel, key, velocity uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, [3]uint8{channel, key, velocity})
	return nil
}

func (f *fakeDAW) SendNoteOff(channel, key uint8) error {
	return f.SendNoteOn(channel, key, 0)
}

func (f *fakeDAW) SendControlChange(channel, controller, value uint8) error {
	f.mu.Lock()
	f.ccs = append(f.ccs, [3]uint8{channel, controller, value})
	cb := f.onCC
	f.mu.Unlock()
	if cb != nil {
		cb(channel, controller, value)
	}
	return nil
}

func (f *fakeDAW) ControlChanges() <-chan transport.ControlChange { return f.inbound }

func (f *fakeDAW) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func TestSelectSlot(t *testing.T) {
	daw := newFakeDAW()
	dev := New(newFakePort(nil), daw)

	if err := dev.SelectSlot(3); err != nil {
		t.Fatalf("SelectSlot() = %v", err)
	}

	wantNotes := [][3]uint8{
		{slotGuardChannel, slotGuardKey, 127},
		{slotGuardChannel, slotGuardKey, 0},
	}
	if len(daw.notes) != 2 || daw.notes[0] != wantNotes[0] || daw.notes[1] != wantNotes[1] {
		t.Errorf("guard notes = %v, want %v", daw.notes, wantNotes)
	}
	wantCC := [3]uint8{slotSetChannel, slotController, slotReportBase + 2}
	if len(daw.ccs) != 1 || daw.ccs[0] != wantCC {
		t.Errorf("slot cc = %v, want %v", daw.ccs, wantCC)
	}
}

func TestActiveSlot(t *testing.T) {
	daw := newFakeDAW()
	daw.onCC = func(channel, controller, value uint8) {
		if channel == slotQueryChannel && controller == slotController {
			// Noise on another controller first, then the report.
			daw.inbound <- transport.ControlChange{Channel: 0, Controller: 13, Value: 99}
			daw.inbound <- transport.ControlChange{Channel: slotSetChannel, Controller: slotController, Value: slotReportBase + 4}
		}
	}
	dev := New(newFakePort(nil), daw)

	slot, err := dev.ActiveSlot(context.Background())
	if err != nil {
		t.Fatalf("ActiveSlot() = %v", err)
	}
	if slot != 5 {
		t.Errorf("ActiveSlot() = %d, want 5", slot)
	}
}

func TestActiveSlotTimeout(t *testing.T) {
	dev := New(newFakePort(nil), newFakeDAW(), WithSlotReportTimeout(20*time.Millisecond))

	_, err := dev.ActiveSlot(context.Background())
	if !errors.Is(err, ErrProtocolTimeout) {
		t.Fatalf("ActiveSlot() = %v, want ErrProtocolTimeout", err)
	}
}

func TestSlotOpsWithoutDAWPort(t *testing.T) {
	dev := New(newFakePort(nil), nil)

	if err := dev.SelectSlot(1); !errors.Is(err, ErrDAWUnavailable) {
		t.Errorf("SelectSlot() = %v, want ErrDAWUnavailable", err)
	}
	if _, err := dev.ActiveSlot(context.Background()); !errors.Is(err, ErrDAWUnavailable) {
		t.Errorf("ActiveSlot() = %v, want ErrDAWUnavailable", err)
	}
	if err := dev.SelectSlot(40); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("SelectSlot(40) = %v, want ErrSlotOutOfRange", err)
	}
}

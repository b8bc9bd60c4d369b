package transport

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakeSerialLine feeds scripted chunks to Read and records writes. Closing
// the line, from either side, makes Read fail the way a yanked cable does.
type fakeSerialLine struct {
	reads chan []byte

	mu      sync.Mutex
	written []byte
	closed  bool
}

func newFakeSerialLine() *fakeSerialLine {
	return &fakeSerialLine{reads: make(chan []byte, 8)}
}

func (l *fakeSerialLine) fail() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.reads)
	}
}

func (l *fakeSerialLine) Read(p []byte) (int, error) {
	chunk, ok := <-l.reads
	if !ok {
		return 0, errors.New("line gone")
	}
	return copy(p, chunk), nil
}

func (l *fakeSerialLine) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, errors.New("line gone")
	}
	l.written = append(l.written, p...)
	return len(p), nil
}

func (l *fakeSerialLine) Close() error {
	l.fail()
	return nil
}

func (l *fakeSerialLine) SetMode(mode *serial.Mode) error      { return nil }
func (l *fakeSerialLine) Drain() error                         { return nil }
func (l *fakeSerialLine) ResetInputBuffer() error              { return nil }
func (l *fakeSerialLine) ResetOutputBuffer() error             { return nil }
func (l *fakeSerialLine) SetDTR(dtr bool) error                { return nil }
func (l *fakeSerialLine) SetRTS(rts bool) error                { return nil }
func (l *fakeSerialLine) SetReadTimeout(t time.Duration) error { return nil }
func (l *fakeSerialLine) Break(d time.Duration) error          { return nil }

func (l *fakeSerialLine) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func TestSerialPortReassemblesAcrossReads(t *testing.T) {
	line := newFakeSerialLine()
	p := newSerialPort("/dev/ttyTest", line)
	defer p.Close()

	frame := []byte{0xF0, 0x00, 0x20, 0x29, 0x00, 0x42, 0x02, 0xF7}
	line.reads <- frame[:3]
	line.reads <- frame[3:]

	select {
	case got := <-p.Frames():
		if !bytes.Equal(got, frame) {
			t.Errorf("frame = % X, want % X", got, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame within a second")
	}
}

func TestSerialPortReadFailureClosesFrames(t *testing.T) {
	line := newFakeSerialLine()
	p := newSerialPort("/dev/ttyTest", line)
	defer p.Close()

	line.fail()

	// The read loop must hand the failure on by closing the frame queue,
	// not leave readers parked on a channel nothing feeds anymore.
	select {
	case _, ok := <-p.Frames():
		if ok {
			t.Fatal("got a frame from a dead line")
		}
	case <-time.After(time.Second):
		t.Fatal("Frames() still open a second after the line failed")
	}
}

func TestSerialPortClose(t *testing.T) {
	line := newFakeSerialLine()
	p := newSerialPort("/dev/ttyTest", line)

	if err := p.Send([]byte{0xF0, 0x01, 0xF7}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if want := []byte{0xF0, 0x01, 0xF7}; !bytes.Equal(line.written, want) {
		t.Errorf("line saw % X, want % X", line.written, want)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case _, ok := <-p.Frames():
		if ok {
			t.Fatal("got a frame after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Frames() still open after Close")
	}
	if err := p.Send([]byte{0xF0, 0x02, 0xF7}); err == nil {
		t.Error("Send() after Close did not fail")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

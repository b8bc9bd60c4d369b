package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultSerialBaud is the DIN MIDI line rate.
const DefaultSerialBaud = 31250

// SerialPort is a Port over a raw serial device carrying DIN MIDI bytes.
// Inbound bytes are reassembled into frames by a SysExStream; channel
// traffic on the same line is discarded.
type SerialPort struct {
	name string
	port serial.Port

	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// OpenSerialPort opens the named serial device and starts the read loop.
// A baud of 0 selects the DIN MIDI rate.
func OpenSerialPort(name string, baud int) (*SerialPort, error) {
	if baud == 0 {
		baud = DefaultSerialBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	// A short timeout keeps Read from pinning the goroutine past Close.
	if err := port.SetReadTimeout(250 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	return newSerialPort(name, port), nil
}

func newSerialPort(name string, port serial.Port) *SerialPort {
	p := &SerialPort{
		name:   name,
		port:   port,
		frames: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.readLoop()
	return p
}

// Name returns the device path the port was opened with.
func (p *SerialPort) Name() string {
	return p.name
}

// readLoop owns the frames channel: it closes it on exit, whether Close
// stopped the loop or the line itself failed, so readers unblock either way.
func (p *SerialPort) readLoop() {
	defer p.wg.Done()
	defer close(p.frames)
	var stream SysExStream
	buf := make([]byte, 512)
	for {
		select {
		case <-p.done:
			return
		default:
		}
		n, err := p.port.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		for _, frame := range stream.Feed(buf[:n]) {
			select {
			case p.frames <- frame:
			case <-p.done:
				return
			}
		}
	}
}

// Send writes a complete frame to the line.
func (p *SerialPort) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("port %s is closed", p.name)
	}
	n, err := p.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write to %s: %w", p.name, err)
	}
	if n != len(frame) {
		return fmt.Errorf("short write to %s: %d of %d bytes", p.name, n, len(frame))
	}
	return nil
}

// Frames returns the inbound frame queue. The channel is closed when the
// port is.
func (p *SerialPort) Frames() <-chan []byte {
	return p.frames
}

func (p *SerialPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	err := p.port.Close()
	p.wg.Wait()
	return err
}

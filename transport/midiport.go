package transport

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"lcxl3/sysex"
)

// MIDIPort is a Port over one gomidi In/Out pair.
type MIDIPort struct {
	name     string
	inPort   drivers.In
	outPort  drivers.Out
	send     func(msg gomidi.Message) error
	stopFunc func()

	frames chan []byte

	mu     sync.Mutex
	closed bool
}

// OpenMIDIPort opens a matched In/Out pair and starts delivering inbound
// frames. The listener re-attaches the envelope markers the driver strips.
func OpenMIDIPort(name string, inPort drivers.In, outPort drivers.Out) (*MIDIPort, error) {
	p := &MIDIPort{
		name:    name,
		inPort:  inPort,
		outPort: outPort,
		frames:  make(chan []byte, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		p.send = send
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var data []byte
			if !msg.GetSysEx(&data) {
				return
			}
			frame := make([]byte, 0, len(data)+2)
			frame = append(frame, sysex.StartOfExclusive)
			frame = append(frame, data...)
			frame = append(frame, sysex.EndOfExclusive)

			select {
			case p.frames <- frame:
			default:
			}
		}, gomidi.UseSysEx())
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		p.stopFunc = stop
	}

	return p, nil
}

// Name returns the pair's base name as published by the OS.
func (p *MIDIPort) Name() string {
	return p.name
}

// Send transmits one complete frame.
func (p *MIDIPort) Send(frame []byte) error {
	if len(frame) < 2 {
		return &sysex.MalformedFrameError{Reason: "frame shorter than its markers", Offset: -1}
	}
	if frame[0] != sysex.StartOfExclusive {
		return &sysex.MalformedFrameError{Reason: "start marker", Offset: 0, Want: sysex.StartOfExclusive, Got: frame[0]}
	}
	if frame[len(frame)-1] != sysex.EndOfExclusive {
		return &sysex.MalformedFrameError{Reason: "end marker", Offset: len(frame) - 1, Want: sysex.EndOfExclusive, Got: frame[len(frame)-1]}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("port %s is closed", p.name)
	}
	if p.send == nil {
		return fmt.Errorf("port %s has no output", p.name)
	}
	return p.send(gomidi.SysEx(frame[1 : len(frame)-1]))
}

// Frames returns the inbound frame queue.
func (p *MIDIPort) Frames() <-chan []byte {
	return p.frames
}

func (p *MIDIPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.stopFunc != nil {
		p.stopFunc()
	}
	close(p.frames)
	if p.inPort != nil {
		p.inPort.Close()
	}
	if p.outPort != nil {
		p.outPort.Close()
	}
	return nil
}

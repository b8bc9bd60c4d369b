package transport

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// MIDIDAWPort is a DAWPort over the unit's second gomidi In/Out pair.
type MIDIDAWPort struct {
	name     string
	inPort   drivers.In
	outPort  drivers.Out
	send     func(msg gomidi.Message) error
	stopFunc func()

	ccs chan ControlChange

	mu     sync.Mutex
	closed bool
}

// OpenDAWPort opens the channel-message pair and starts delivering inbound
// control changes.
func OpenDAWPort(name string, inPort drivers.In, outPort drivers.Out) (*MIDIDAWPort, error) {
	p := &MIDIDAWPort{
		name:    name,
		inPort:  inPort,
		outPort: outPort,
		ccs:     make(chan ControlChange, 32),
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
			var channel, controller, value uint8
			if !msg.GetControlChange(&channel, &controller, &value) {
				return
			}
			select {
			case p.ccs <- ControlChange{Channel: channel, Controller: controller, Value: value}:
			default:
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		p.stopFunc = stop
	}

	return p, nil
}

// Name returns the pair's base name as published by the OS.
func (p *MIDIDAWPort) Name() string {
	return p.name
}

func (p *MIDIDAWPort) SendNoteOn(channel, key, velocity uint8) error {
	return p.sendMsg(gomidi.NoteOn(channel, key, velocity))
}

func (p *MIDIDAWPort) SendNoteOff(channel, key uint8) error {
	return p.sendMsg(gomidi.NoteOff(channel, key))
}

func (p *MIDIDAWPort) SendControlChange(channel, controller, value uint8) error {
	return p.sendMsg(gomidi.ControlChange(channel, controller, value))
}

func (p *MIDIDAWPort) sendMsg(msg gomidi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("port %s is closed", p.name)
	}
	if p.send == nil {
		return fmt.Errorf("port %s has no output", p.name)
	}
	return p.send(msg)
}

// ControlChanges returns the inbound CC queue.
func (p *MIDIDAWPort) ControlChanges() <-chan ControlChange {
	return p.ccs
}

func (p *MIDIDAWPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.stopFunc != nil {
		p.stopFunc()
	}
	close(p.ccs)
	if p.inPort != nil {
		p.inPort.Close()
	}
	if p.outPort != nil {
		p.outPort.Close()
	}
	return nil
}

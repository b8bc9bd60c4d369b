package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Unit is one physical device: the frame-carrying port pair plus, when the
// OS publishes it, the channel-message pair. DAW is nil when only the MIDI
// pair is present.
type Unit struct {
	ID    string
	SysEx Port
	DAW   DAWPort
}

// DeviceEvent is emitted when units appear or vanish.
type DeviceEvent struct {
	Type DeviceEventType
	ID   string
	Unit *Unit
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Watcher handles hot-plug detection of units by polling the OS port list.
type Watcher struct {
	units    map[string]*Unit
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration
	log      zerolog.Logger

	// listPorts returns the OS port handles; swapped out in tests
	listPorts func() ([]drivers.In, []drivers.Out)
}

// NewWatcher creates a watcher. Pass zerolog.Nop() to silence it.
func NewWatcher(logger zerolog.Logger) *Watcher {
	return &Watcher{
		units:    make(map[string]*Unit),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
		log:      logger,
		listPorts: func() ([]drivers.In, []drivers.Out) {
			return gomidi.GetInPorts(), gomidi.GetOutPorts()
		},
	}
}

// Events returns a channel of connect/disconnect events.
func (w *Watcher) Events() <-chan DeviceEvent {
	return w.events
}

// Units returns a snapshot of connected units.
func (w *Watcher) Units() map[string]*Unit {
	w.mu.RLock()
	defer w.mu.RUnlock()
	copy := make(map[string]*Unit, len(w.units))
	for k, v := range w.units {
		copy[k] = v
	}
	return copy
}

// First returns any connected unit (or nil).
func (w *Watcher) First() *Unit {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, u := range w.units {
		return u
	}
	return nil
}

// Run starts the polling loop (blocking - run in goroutine).
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan()

	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// unitPorts collects the four OS handles of one unit while scanning.
type unitPorts struct {
	name     string
	sysExIn  drivers.In
	sysExOut drivers.Out
	dawIn    drivers.In
	dawOut   drivers.Out
}

func (up *unitPorts) complete() bool {
	return up.sysExIn != nil && up.sysExOut != nil
}

func (w *Watcher) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts, outPorts := w.listPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		// CoreMIDI is hung - skip this scan
		// User needs to run: sudo killall coreaudiod midiserver
		w.log.Warn().Msg("port scan timed out, skipping")
		return
	}

	// Group the four handles of each unit under its ID
	found := make(map[string]*unitPorts)
	lookup := func(id string) *unitPorts {
		up := found[id]
		if up == nil {
			up = &unitPorts{}
			found[id] = up
		}
		return up
	}

	for i, inPort := range inPorts {
		name := inPort.String()
		if !matchesDevice(name) {
			continue
		}
		up := lookup(unitID(name))
		switch {
		case IsSysExPortName(name):
			up.sysExIn = inPorts[i]
			up.name = portKey(name)
		case IsDAWPortName(name):
			up.dawIn = inPorts[i]
		}
	}
	for i, outPort := range outPorts {
		name := outPort.String()
		if !matchesDevice(name) {
			continue
		}
		up := lookup(unitID(name))
		switch {
		case IsSysExPortName(name):
			up.sysExOut = outPorts[i]
		case IsDAWPortName(name):
			up.dawOut = outPorts[i]
		}
	}

	seenIDs := make(map[string]bool)
	for id, up := range found {
		if !up.complete() {
			continue
		}
		seenIDs[id] = true

		w.mu.RLock()
		_, exists := w.units[id]
		w.mu.RUnlock()
		if exists {
			continue
		}

		sysEx, err := OpenMIDIPort(up.name, up.sysExIn, up.sysExOut)
		if err != nil {
			w.log.Debug().Str("unit", id).Err(err).Msg("open frame pair failed")
			continue
		}

		var daw DAWPort
		if up.dawIn != nil && up.dawOut != nil {
			dawPort, err := OpenDAWPort(id, up.dawIn, up.dawOut)
			if err != nil {
				w.log.Debug().Str("unit", id).Err(err).Msg("open channel pair failed")
			} else {
				daw = dawPort
			}
		}

		unit := &Unit{ID: id, SysEx: sysEx, DAW: daw}
		w.mu.Lock()
		w.units[id] = unit
		w.mu.Unlock()

		w.log.Info().Str("unit", id).Bool("daw", daw != nil).Msg("unit connected")
		w.events <- DeviceEvent{
			Type: DeviceConnected,
			ID:   id,
			Unit: unit,
		}
	}

	// Check for disconnects. The event sends can block on a slow consumer,
	// so they happen after the lock is released; Units() and First() must
	// stay answerable while a disconnect event is pending.
	w.mu.Lock()
	var toRemove []string
	for id := range w.units {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		closeUnit(w.units[id])
		delete(w.units, id)
	}
	w.mu.Unlock()

	for _, id := range toRemove {
		w.log.Info().Str("unit", id).Msg("unit disconnected")
		w.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
}

func (w *Watcher) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.units {
		closeUnit(u)
	}
	w.units = make(map[string]*Unit)
}

func closeUnit(u *Unit) {
	if u.SysEx != nil {
		u.SysEx.Close()
	}
	if u.DAW != nil {
		u.DAW.Close()
	}
}

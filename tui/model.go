// Package tui is the interactive monitor: it watches for units, connects as
// they appear, and shows the active custom mode and a log of protocol
// activity.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lcxl3/custommode"
	"lcxl3/device"
	"lcxl3/sysex"
	"lcxl3/transport"
	"lcxl3/widgets"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d7af5f"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d75f5f"))
)

// logLines bounds the activity log shown under the surface.
const logLines = 8

// keyHelp is the footer legend; every binding here has a case in handleKey.
var keyHelp = []widgets.KeySection{{
	Keys: []widgets.KeyBinding{
		{Key: "[ / ]", Desc: "select slot"},
		{Key: "enter", Desc: "switch device to slot"},
		{Key: "r", Desc: "re-read slot"},
		{Key: "s", Desc: "query active slot"},
		{Key: "l", Desc: "led sweep"},
		{Key: "q", Desc: "quit"},
	},
}}

type Model struct {
	watcher *transport.Watcher
	opts    []device.Option

	dev      *device.Device
	unitID   string
	identity device.Identity
	mode     *custommode.Mode
	modeSlot int

	slot     int
	busy     bool
	log      []string
	quitting bool
}

type DeviceEventMsg transport.DeviceEvent

type connectedMsg struct {
	identity device.Identity
	err      error
}

type modeMsg struct {
	slot int
	mode *custommode.Mode
	err  error
}

type slotAppliedMsg struct {
	slot int
	err  error
}

type activeSlotMsg struct {
	slot int
	err  error
}

type ledsMsg struct {
	err error
}

// NewModel returns a monitor that follows units reported by w. Devices built
// for incoming units get opts applied; slot is the initial selection.
func NewModel(w *transport.Watcher, slot int, opts ...device.Option) Model {
	if slot < device.SlotMin || slot > device.SlotMax {
		slot = device.SlotMin
	}
	return Model{
		watcher: w,
		opts:    opts,
		slot:    slot,
		log:     []string{"waiting for device"},
	}
}

func ListenForDevices(w *transport.Watcher) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForDevices(m.watcher)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case DeviceEventMsg:
		return m.handleDeviceEvent(transport.DeviceEvent(msg))

	case connectedMsg:
		m.busy = false
		if msg.err != nil {
			m = m.push(errorStyle.Render(fmt.Sprintf("handshake failed: %v", msg.err)))
			return m, nil
		}
		m.identity = msg.identity
		m = m.push(fmt.Sprintf("connected, firmware %s serial %s", msg.identity.Firmware, msg.identity.Serial))
		m.busy = true
		return m, m.readCmd()

	case modeMsg:
		m.busy = false
		if msg.err != nil {
			m = m.push(errorStyle.Render(fmt.Sprintf("read slot %d: %v", msg.slot, msg.err)))
			return m, nil
		}
		m.mode = msg.mode
		m.modeSlot = msg.slot
		m = m.push(fmt.Sprintf("read slot %d: %q, %d controls", msg.slot, msg.mode.Name, len(msg.mode.Controls)))

	case slotAppliedMsg:
		m.busy = false
		if msg.err != nil {
			m = m.push(errorStyle.Render(fmt.Sprintf("select slot %d: %v", msg.slot, msg.err)))
			return m, nil
		}
		m = m.push(fmt.Sprintf("device switched to slot %d", msg.slot))
		m.busy = true
		return m, m.readCmd()

	case activeSlotMsg:
		m.busy = false
		if msg.err != nil {
			m = m.push(errorStyle.Render(fmt.Sprintf("query active slot: %v", msg.err)))
			return m, nil
		}
		m.slot = msg.slot
		m = m.push(fmt.Sprintf("device reports slot %d active", msg.slot))

	case ledsMsg:
		m.busy = false
		if msg.err != nil {
			m = m.push(errorStyle.Render(fmt.Sprintf("led sweep: %v", msg.err)))
			return m, nil
		}
		m = m.push("led sweep sent")
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.dev != nil {
			m.dev.Close()
		}
		return m, tea.Quit

	case "[":
		if m.slot > device.SlotMin {
			m.slot--
		}

	case "]":
		if m.slot < device.SlotMax {
			m.slot++
		}

	case "r":
		if m.dev != nil && !m.busy {
			m.busy = true
			return m, m.readCmd()
		}

	case "enter":
		if m.dev != nil && !m.busy {
			m.busy = true
			return m, m.selectSlotCmd()
		}

	case "s":
		if m.dev != nil && !m.busy {
			m.busy = true
			return m, m.activeSlotCmd()
		}

	case "l":
		if m.dev != nil && !m.busy {
			m.busy = true
			return m, m.ledSweepCmd()
		}
	}

	return m, nil
}

func (m Model) handleDeviceEvent(event transport.DeviceEvent) (tea.Model, tea.Cmd) {
	switch event.Type {
	case transport.DeviceConnected:
		if m.dev != nil {
			m = m.push(dimStyle.Render(fmt.Sprintf("ignoring extra unit %s", event.ID)))
			return m, ListenForDevices(m.watcher)
		}
		m.dev = device.NewFromUnit(event.Unit, m.opts...)
		m.unitID = event.ID
		m = m.push(fmt.Sprintf("unit %s attached, connecting", event.ID))
		m.busy = true
		return m, tea.Batch(m.connectCmd(), ListenForDevices(m.watcher))

	case transport.DeviceDisconnected:
		if m.dev != nil && m.unitID == event.ID {
			m.dev.Close()
			m.dev = nil
			m.unitID = ""
			m.mode = nil
			m.identity = device.Identity{}
			m.busy = false
			m = m.push(errorStyle.Render("device unplugged"))
		}
	}
	return m, ListenForDevices(m.watcher)
}

func (m Model) connectCmd() tea.Cmd {
	dev := m.dev
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		identity, err := dev.Connect(ctx)
		return connectedMsg{identity: identity, err: err}
	}
}

func (m Model) readCmd() tea.Cmd {
	dev, slot := m.dev, m.slot
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		mode, err := dev.ReadMode(ctx, slot)
		return modeMsg{slot: slot, mode: mode, err: err}
	}
}

func (m Model) selectSlotCmd() tea.Cmd {
	dev, slot := m.dev, m.slot
	return func() tea.Msg {
		return slotAppliedMsg{slot: slot, err: dev.SelectSlot(slot)}
	}
}

func (m Model) activeSlotCmd() tea.Cmd {
	dev := m.dev
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slot, err := dev.ActiveSlot(ctx)
		return activeSlotMsg{slot: slot, err: err}
	}
}

func (m Model) ledSweepCmd() tea.Cmd {
	dev := m.dev
	return func() tea.Msg {
		return ledsMsg{err: dev.SetLEDs(ledSweep()...)}
	}
}

func (m Model) push(line string) Model {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := "no device"
	if m.dev != nil {
		state = m.dev.State().String()
		if m.identity.Serial != "" {
			state += "  " + m.identity.Serial
		}
	}
	busy := ""
	if m.busy {
		busy = "  ..."
	}
	header := headerStyle.Render(fmt.Sprintf("lcxl3 monitor  %s  slot:%02d%s", state, m.slot, busy))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	if m.mode != nil {
		out.WriteString(fmt.Sprintf("slot %02d  %s", m.modeSlot, widgets.RenderModeSummary(m.mode)))
		out.WriteString("\n\n")
		out.WriteString(widgets.RenderSurface(m.mode))
		out.WriteString("\n")
	} else {
		out.WriteString(dimStyle.Render("(no mode loaded)"))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	for _, line := range m.log {
		out.WriteString(line)
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))

	return out.String()
}

// ledSweep colours each control row distinctly so a glance confirms the
// frame reached the hardware.
func ledSweep() []sysex.LEDState {
	var states []sysex.LEDState
	for row := 0; row < custommode.KnobRows; row++ {
		for col := 0; col < custommode.Columns; col++ {
			states = append(states, sysex.LEDState{Control: custommode.KnobID(row, col), Colour: byte(4 + row*8 + col)})
		}
	}
	for col := 0; col < custommode.Columns; col++ {
		states = append(states, sysex.LEDState{Control: custommode.FaderID(col), Colour: byte(28 + col)})
	}
	for row := 0; row < custommode.ButtonRows; row++ {
		for col := 0; col < custommode.Columns; col++ {
			states = append(states, sysex.LEDState{Control: custommode.ButtonID(row, col), Colour: byte(36 + row*8 + col)})
		}
	}
	return states
}

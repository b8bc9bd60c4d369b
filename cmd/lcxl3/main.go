package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"lcxl3/config"
	"lcxl3/custommode"
	"lcxl3/device"
	"lcxl3/sysex"
	"lcxl3/trace"
	"lcxl3/transport"
	"lcxl3/tui"
	"lcxl3/widgets"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		fatal(err)
	}
	logger = newLogger(cfg.Level())

	if cfg.Trace {
		dir, err := config.ConfigDir()
		if err != nil {
			fatal(err)
		}
		if err := trace.Enable(filepath.Join(dir, "wire.log")); err != nil {
			fatal(err)
		}
		defer trace.Disable()
	}

	switch os.Args[1] {
	case "ports":
		listPorts()
	case "connect":
		connect()
	case "slot":
		slotCmd(os.Args[2:])
	case "read":
		readCmd(os.Args[2:])
	case "write":
		writeCmd(os.Args[2:])
	case "dump":
		dumpCmd(os.Args[2:])
	case "leds":
		ledsCmd(os.Args[2:])
	case "encode7":
		encode7(os.Args[2:])
	case "decode7":
		decode7(os.Args[2:])
	case "monitor":
		monitor()
	case "config":
		configCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("lcxl3 - Launch Control XL 3 protocol tool")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports            - List MIDI ports")
	fmt.Println("  connect          - Handshake and print the unit's identity")
	fmt.Println("  slot             - Query the active custom-mode slot")
	fmt.Println("  slot <n>         - Switch the unit to slot n")
	fmt.Println("  read <n> [file]  - Read the mode in slot n into a JSON file")
	fmt.Println("  write <n> <file> - Write a JSON mode file into slot n")
	fmt.Println("  dump <n>         - Read slot n and render it")
	fmt.Println("  leds [colour]    - Light the whole surface (palette colour 0..127)")
	fmt.Println("  encode7 <hex>    - Pack bytes into the 7-bit wire encoding")
	fmt.Println("  decode7 <hex>    - Unpack the 7-bit wire encoding")
	fmt.Println("  monitor          - Interactive monitor")
	fmt.Println("  config [init]    - Show or write the config file")
}

func newLogger(level zerolog.Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// openDevice builds a Device over whichever transport the config names: a
// DIN serial line when serial.device is set, otherwise the first unit the
// port watcher reports. The cleanup releases the transport.
func openDevice() (*device.Device, func(), error) {
	opts := cfg.DeviceOptions(logger)

	if cfg.Serial.Device != "" {
		port, err := transport.OpenSerialPort(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return nil, nil, err
		}
		var p transport.Port = port
		if cfg.Trace {
			p = trace.Port(p)
		}
		dev := device.New(p, nil, opts...)
		return dev, func() { dev.Close() }, nil
	}

	watcher := transport.NewWatcher(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go watcher.Run(ctx)

	deadline := time.After(4 * time.Second)
	for {
		select {
		case event, ok := <-watcher.Events():
			if !ok {
				cancel()
				return nil, nil, fmt.Errorf("port watcher stopped")
			}
			if event.Type != transport.DeviceConnected {
				continue
			}
			if cfg.Trace {
				event.Unit.SysEx = trace.Port(event.Unit.SysEx)
			}
			dev := device.NewFromUnit(event.Unit, opts...)
			cleanup := func() {
				dev.Close()
				cancel()
			}
			return dev, cleanup, nil
		case <-deadline:
			cancel()
			return nil, nil, fmt.Errorf("no unit found (is the device plugged in?)")
		}
	}
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s%s\n", i, p.String(), portRole(p.String()))
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s%s\n", i, p.String(), portRole(p.String()))
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func portRole(name string) string {
	switch {
	case transport.IsSysExPortName(name):
		return "   <- frame port"
	case transport.IsDAWPortName(name):
		return "   <- daw port"
	}
	return ""
}

func connect() {
	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	identity, err := dev.Connect(context.Background())
	if err != nil {
		fatal(err)
	}

	serial := identity.Serial
	if serial == "" {
		serial = "(legacy handshake, none reported)"
	}
	fmt.Println("connected")
	fmt.Printf("  serial:   %s\n", serial)
	fmt.Printf("  firmware: %s\n", identity.Firmware)
	fmt.Printf("  device:   family %04X model %04X\n", identity.Family, identity.Model)
}

func slotCmd(args []string) {
	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	if len(args) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slot, err := dev.ActiveSlot(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("active slot: %d\n", slot)
		return
	}

	slot := parseSlot(args[0])
	if err := dev.SelectSlot(slot); err != nil {
		fatal(err)
	}
	fmt.Printf("switched to slot %d\n", slot)
}

func readCmd(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: lcxl3 read <slot> [file]")
		os.Exit(2)
	}
	slot := parseSlot(args[0])

	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	if _, err := dev.Connect(context.Background()); err != nil {
		fatal(err)
	}
	mode, err := dev.ReadMode(context.Background(), slot)
	if err != nil {
		fatal(err)
	}

	var path string
	if len(args) >= 2 {
		path = args[1]
	} else {
		dir, err := cfg.ModesDir()
		if err != nil {
			fatal(err)
		}
		path = filepath.Join(dir, custommode.FileName(mode))
	}
	if err := custommode.SaveFile(mode, path); err != nil {
		fatal(err)
	}
	fmt.Printf("slot %d: %q, %d controls -> %s\n", slot, mode.Name, len(mode.Controls), path)
}

func writeCmd(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: lcxl3 write <slot> <file>")
		os.Exit(2)
	}
	slot := parseSlot(args[0])

	mode, err := custommode.LoadFile(args[1])
	if err != nil {
		fatal(err)
	}

	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	if _, err := dev.Connect(context.Background()); err != nil {
		fatal(err)
	}
	if err := dev.WriteMode(context.Background(), slot, mode); err != nil {
		fatal(err)
	}
	fmt.Printf("%s -> slot %d (%q, %d controls)\n", args[1], slot, mode.Name, len(mode.Controls))
}

func dumpCmd(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: lcxl3 dump <slot>")
		os.Exit(2)
	}
	slot := parseSlot(args[0])

	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	if _, err := dev.Connect(context.Background()); err != nil {
		fatal(err)
	}
	mode, err := dev.ReadMode(context.Background(), slot)
	if err != nil {
		fatal(err)
	}

	fmt.Println(widgets.RenderModeSummary(mode))
	fmt.Println()
	fmt.Println(widgets.RenderSurface(mode))
	fmt.Println()
	fmt.Println(widgets.RenderControlList(mode))
}

func ledsCmd(args []string) {
	colour := byte(37)
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 || v > 127 {
			fatal(fmt.Errorf("colour %q outside 0..127", args[0]))
		}
		colour = byte(v)
	}

	dev, cleanup, err := openDevice()
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	var states []sysex.LEDState
	for row := 0; row < custommode.KnobRows; row++ {
		for col := 0; col < custommode.Columns; col++ {
			states = append(states, sysex.LEDState{Control: custommode.KnobID(row, col), Colour: colour})
		}
	}
	for col := 0; col < custommode.Columns; col++ {
		states = append(states, sysex.LEDState{Control: custommode.FaderID(col), Colour: colour})
	}
	for row := 0; row < custommode.ButtonRows; row++ {
		for col := 0; col < custommode.Columns; col++ {
			states = append(states, sysex.LEDState{Control: custommode.ButtonID(row, col), Colour: colour})
		}
	}

	if err := dev.SetLEDs(states...); err != nil {
		fatal(err)
	}
	fmt.Printf("lit %d controls with colour %d\n", len(states), colour)
}

func encode7(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: lcxl3 encode7 <hex>")
		os.Exit(2)
	}
	data := parseHex(args)
	encoded := sysex.Encode7Bit(data)
	fmt.Printf("%d bytes -> %d encoded bytes\n", len(data), len(encoded))
	fmt.Print(sysex.HexDump(encoded))
}

func decode7(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: lcxl3 decode7 <hex>")
		os.Exit(2)
	}
	data := parseHex(args)
	decoded, err := sysex.Decode7Bit(data)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%d encoded bytes -> %d bytes\n", len(data), len(decoded))
	fmt.Print(sysex.HexDump(decoded))
}

func monitor() {
	if cfg.Serial.Device != "" {
		fatal(fmt.Errorf("monitor follows hot-plugged MIDI units; unset serial.device to use it"))
	}

	// Console logging would scribble over the alternate screen; activity
	// shows up in the monitor's own log lines instead.
	quiet := zerolog.Nop()
	watcher := transport.NewWatcher(quiet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	m := tui.NewModel(watcher, cfg.DefaultSlot, cfg.DeviceOptions(quiet)...)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

func configCmd(args []string) {
	path, err := config.ConfigPath()
	if err != nil {
		fatal(err)
	}

	if len(args) >= 1 && args[0] == "init" {
		if err := cfg.Save(); err != nil {
			fatal(err)
		}
		fmt.Printf("wrote %s\n", path)
		return
	}

	fmt.Printf("# %s\n", path)
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fatal(err)
	}
}

func parseSlot(arg string) int {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		fatal(fmt.Errorf("slot %q is not a number", arg))
	}
	return slot
}

func parseHex(args []string) []byte {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ",", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		fatal(fmt.Errorf("bad hex: %w", err))
	}
	return data
}

// Package widgets renders the controller surface and mode contents for
// terminal display.
package widgets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lcxl3/custommode"
)

var unmappedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a3a3a"))

// RenderControl renders one control glyph in its LED colour, or dimmed
// when the mode maps nothing to it.
func RenderControl(symbol string, colour byte, mapped bool) string {
	if !mapped {
		return unmappedStyle.Render(symbol)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(ColourRGB(colour))))
	return style.Render(symbol)
}

// controlRow renders eight controls of one row type.
func controlRow(m *custommode.Mode, symbol string, id func(col int) byte) string {
	var line strings.Builder
	for col := 0; col < custommode.Columns; col++ {
		if col > 0 {
			line.WriteString(" ")
		}
		cid := id(col)
		_, mapped := m.Controls[cid]
		line.WriteString(RenderControl(symbol, m.LEDs[cid], mapped))
	}
	return line.String()
}

// RenderSurface draws the whole control surface of a mode: three knob
// rows, the fader row, and two button rows, top to bottom as on the
// hardware.
func RenderSurface(m *custommode.Mode) string {
	var lines []string
	for row := 0; row < custommode.KnobRows; row++ {
		r := row
		lines = append(lines, controlRow(m, "●", func(col int) byte { return custommode.KnobID(r, col) }))
	}
	lines = append(lines, controlRow(m, "▮", custommode.FaderID))
	for row := 0; row < 2; row++ {
		r := row
		lines = append(lines, controlRow(m, "■", func(col int) byte { return custommode.ButtonID(r, col) }))
	}
	return strings.Join(lines, "\n")
}

// RenderModeSummary is the one-line header shown above a surface.
func RenderModeSummary(m *custommode.Mode) string {
	name := m.Name
	if m.DefaultName {
		name = "(default name)"
	}
	return fmt.Sprintf("%s  %d controls, %d leds", name, len(m.Controls), len(m.LEDs))
}

// RenderControlList renders each mapping on its own line, ordered by
// control id.
func RenderControlList(m *custommode.Mode) string {
	ids := make([]int, 0, len(m.Controls))
	for id := range m.Controls {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var lines []string
	for _, id := range ids {
		c := m.Controls[byte(id)]
		line := fmt.Sprintf("  0x%02X  ch %-2d cc %-3d %-9s %3d..%-3d", c.ID, c.Channel, c.CC, c.Behaviour, c.Min, c.Max)
		if c.Transform != custommode.TransformNone {
			line += "  " + c.Transform.String()
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderKeyHelp formats key bindings in a friendly way.
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings.
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description.
type KeyBinding struct {
	Key  string
	Desc string
}

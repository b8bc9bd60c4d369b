package widgets

import "fmt"

// RGB is a display colour for terminal previews.
type RGB [3]uint8

// The device LED table is indexed 0..127: four grayscale entries, then
// groups of four indices sharing a hue at falling brightness. The groups
// past 59 hold assorted accents; previewing those as neutral gray keeps
// the layout readable without pretending to match the hardware exactly.
var baseHues = []RGB{
	{255, 61, 61},   // red
	{255, 141, 61},  // orange
	{255, 187, 61},  // amber
	{255, 255, 61},  // yellow
	{187, 255, 61},  // lime
	{61, 255, 61},   // green
	{61, 255, 136},  // spring
	{61, 255, 204},  // turquoise
	{61, 238, 255},  // cyan
	{61, 153, 255},  // sky
	{61, 61, 255},   // blue
	{136, 61, 255},  // violet
	{255, 61, 255},  // magenta
	{255, 61, 153},  // pink
}

var gray = []RGB{
	{0, 0, 0},
	{64, 64, 64},
	{144, 144, 144},
	{255, 255, 255},
}

// ColourRGB maps a device LED colour index to a preview colour.
func ColourRGB(colour byte) RGB {
	colour &= 0x7F
	if colour < 4 {
		return gray[colour]
	}
	if int(colour) < 4+len(baseHues)*4 {
		hue := baseHues[(colour-4)/4]
		switch (colour - 4) % 4 {
		case 0:
			return hue
		case 1:
			return scale(hue, 0.72)
		case 2:
			return scale(hue, 0.45)
		default:
			return scale(hue, 0.25)
		}
	}
	return RGB{120, 120, 120}
}

func scale(c RGB, f float64) RGB {
	return RGB{
		uint8(float64(c[0]) * f),
		uint8(float64(c[1]) * f),
		uint8(float64(c[2]) * f),
	}
}

func rgbToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

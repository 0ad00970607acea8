package render

import (
	"image/color"
	"strconv"
	"strings"
)

var (
	grassColor     = color.RGBA{0x22, 0x8b, 0x22, 0xff}
	asphaltColor   = color.RGBA{0x34, 0x49, 0x5e, 0xff}
	markingColor   = color.RGBA{0xec, 0xf0, 0xf1, 0xff}
	housingColor   = color.RGBA{0x2c, 0x3e, 0x50, 0xff}
	windshieldTint = color.RGBA{0x34, 0x98, 0xdb, 0xff}
	// UnknownLightColor is used for tokens the viewer cannot interpret.
	UnknownLightColor = color.RGBA{0x7f, 0x8c, 0x8d, 0xff}
)

// VehiclePalette is indexed by vehicle id modulo its length.
var VehiclePalette = [6]color.RGBA{
	{0xe7, 0x4c, 0x3c, 0xff},
	{0xf1, 0xc4, 0x0f, 0xff},
	{0x9b, 0x59, 0xb6, 0xff},
	{0x1a, 0xbc, 0x9c, 0xff},
	{0x34, 0x98, 0xdb, 0xff},
	{0xe6, 0x7e, 0x22, 0xff},
}

// VehicleColor picks the palette entry for a vehicle id.
func VehicleColor(id int) color.RGBA {
	n := len(VehiclePalette)
	return VehiclePalette[((id%n)+n)%n]
}

// named follows the CSS keywords the simulation emits.
var named = map[string]color.RGBA{
	"green":  {0x00, 0x80, 0x00, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
	"orange": {0xff, 0xa5, 0x00, 0xff},
	"amber":  {0xff, 0xbf, 0x00, 0xff},
	"lime":   {0x00, 0xff, 0x00, 0xff},
	"black":  {0x00, 0x00, 0x00, 0xff},
	"white":  {0xff, 0xff, 0xff, 0xff},
}

// LightColor resolves a signal token. Unknown tokens fall back to a neutral gray.
func LightColor(token string) color.RGBA {
	key := strings.ToLower(strings.TrimSpace(token))
	if c, ok := named[key]; ok {
		return c
	}
	if c, ok := parseHex(key); ok {
		return c
	}
	return UnknownLightColor
}

func parseHex(raw string) (color.RGBA, bool) {
	if !strings.HasPrefix(raw, "#") {
		return color.RGBA{}, false
	}
	digits := raw[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) != 6 {
		return color.RGBA{}, false
	}
	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 0xff}, true
}

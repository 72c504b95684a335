package render

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme ramps, best condition first. The standard ramp matches the
// dashboard's historical green-to-red scheme; colorblind is a
// viridis-style ramp; mono is for print.
var themes = map[string][]string{
	"standard":   {"#00FF00", "#7FFF00", "#FFFF00", "#FF7F00", "#FF0000"},
	"colorblind": {"#FDE725", "#5EC962", "#21918C", "#3B528B", "#440154"},
	"mono":       {"#F7F7F7", "#CCCCCC", "#969696", "#636363", "#252525"},
}

// DefaultTheme is used when a request names an unknown theme.
const DefaultTheme = "standard"

// normalizeTheme maps unknown theme names to the default.
func normalizeTheme(theme string) string {
	if _, ok := themes[theme]; !ok {
		return DefaultTheme
	}
	return theme
}

// rampColors returns n colors along the theme's ramp, always as
// lowercase hex. When n differs from the number of stops, intermediate
// colors are interpolated in Luv space so adjacent classes stay
// visually distinct.
func rampColors(theme string, n int) []string {
	stops := themes[normalizeTheme(theme)]
	if n <= 0 {
		return nil
	}
	if n == len(stops) {
		out := make([]string, n)
		for i, s := range stops {
			out[i] = strings.ToLower(s)
		}
		return out
	}

	parsed := make([]colorful.Color, len(stops))
	for i, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			c = colorful.Color{}
		}
		parsed[i] = c
	}

	out := make([]string, n)
	if n == 1 {
		out[0] = parsed[0].Hex()
		return out
	}
	for i := 0; i < n; i++ {
		// Position along the ramp in [0, 1], mapped onto the stop pairs.
		pos := float64(i) / float64(n-1) * float64(len(parsed)-1)
		lo := int(pos)
		if lo >= len(parsed)-1 {
			out[i] = parsed[len(parsed)-1].Hex()
			continue
		}
		frac := pos - float64(lo)
		out[i] = parsed[lo].BlendLuv(parsed[lo+1], frac).Clamped().Hex()
	}
	return out
}

// ClassColor returns the theme color for a single condition class
// ordinal (0 = best of 5). Used for live condition updates.
func ClassColor(theme string, class int) string {
	colors := rampColors(theme, 5)
	if class < 0 {
		class = 0
	}
	if class >= len(colors) {
		class = len(colors) - 1
	}
	return colors[class]
}

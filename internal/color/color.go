package color

import (
	"fmt"
	"image/color"
	"strings"
)

// RGBA represents a color with 8-bit straight (non-premultiplied) RGBA
// components. Two values are the same color only if all four channels match.
type RGBA struct {
	R, G, B, A uint8
}

// White is exact opaque white, the value the normalizer snaps interiors to.
var White = RGBA{R: 255, G: 255, B: 255, A: 255}

// Classifier thresholds.
const (
	LineLuminanceMax      = 40  // luminance strictly below this is dark enough to be a line
	NearWhiteLuminanceMin = 235 // luminance strictly above this is near-white
	OpaqueAlphaMin        = 200 // alpha strictly above this counts as opaque
)

// FromStdColor converts a standard library color to straight-alpha RGBA.
func FromStdColor(c color.Color) RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA{R: n.R, G: n.G, B: n.B, A: n.A}
}

// ToStdColor converts RGBA to a standard library straight-alpha color.
func (c RGBA) ToStdColor() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// String formats the color as #rrggbbaa.
func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseHex parses a hex color string like "#000", "#000000", "#FF00FF" or
// "#FF00FF80". Colors without an alpha component are opaque.
func ParseHex(s string) (RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	var r, g, b uint8
	a := uint8(255)
	switch len(s) {
	case 3:
		_, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		r = r*16 + r
		g = g*16 + g
		b = b*16 + b
	case 6:
		_, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
	case 8:
		_, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
	default:
		return RGBA{}, fmt.Errorf("invalid hex color %q: must be 3, 6 or 8 hex digits", s)
	}
	return RGBA{R: r, G: g, B: b, A: a}, nil
}

// Luminance returns the integer perceptual luminance of c in [0, 255],
// floor((299r + 587g + 114b) / 1000). Alpha is ignored.
func Luminance(c RGBA) int {
	return (int(c.R)*299 + int(c.G)*587 + int(c.B)*114) / 1000
}

// IsLine reports whether c is a dark, opaque boundary pixel. Line pixels are
// never filled, crossed or rewritten.
func IsLine(c RGBA) bool {
	return Luminance(c) < LineLuminanceMax && c.A > OpaqueAlphaMin
}

// IsNearWhiteInterior reports whether c is light and opaque enough to be
// snapped to exact white during normalization.
func IsNearWhiteInterior(c RGBA) bool {
	return Luminance(c) > NearWhiteLuminanceMin && c.A > OpaqueAlphaMin
}

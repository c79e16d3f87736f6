// Package normalize cleans up freshly loaded line art so that exact-color
// flood fill is not defeated by anti-aliasing and compression noise.
package normalize

import (
	"github.com/maax3v3/colorfill/internal/buffer"
	"github.com/maax3v3/colorfill/internal/color"
)

const (
	// MajorityWhiteMin is the number of exact-white cells in a 3×3 window
	// needed to snap its center to white.
	MajorityWhiteMin = 5

	// MajorityLineMax is the number of line cells in a 3×3 window at which
	// the center is left alone to preserve thin detail.
	MajorityLineMax = 4
)

// Stats reports how many pixels each pass rewrote.
type Stats struct {
	Snapped int // near-white pixels snapped to exact white
	Cleaned int // pixels turned white by the majority pass
}

// Changed returns the total number of rewritten pixels.
func (s Stats) Changed() int { return s.Snapped + s.Cleaned }

// Normalize runs the snap pass followed by the majority pass on b in place.
// Line pixels are never modified.
//
// Snap is idempotent but a single majority pass is not: a pixel can reach
// MajorityWhiteMin only through neighbors whitened in the previous run, so a
// second Normalize may clean more speckle clusters. Typical line art is
// stable after one run.
func Normalize(b *buffer.Buffer) Stats {
	var st Stats
	st.Snapped = Snap(b)
	st.Cleaned = Majority(b)
	return st
}

// Snap replaces every near-white, non-line pixel with exact opaque white and
// returns the number of pixels that changed value.
func Snap(b *buffer.Buffer) int {
	changed := 0
	for i := 0; i < b.Len(); i++ {
		p := b.AtOffset(i)
		if color.IsLine(p) || !color.IsNearWhiteInterior(p) {
			continue
		}
		if p != color.White {
			b.SetOffset(i, color.White)
			changed++
		}
	}
	return changed
}

// Majority whitens interior pixels whose 3×3 window (center included) holds
// at least MajorityWhiteMin exact-white cells, unless the window holds
// MajorityLineMax or more line cells. Counts are taken from a copy of b made
// before the pass, so earlier writes never influence later decisions.
// Border pixels are untouched, and buffers smaller than 3×3 are skipped.
func Majority(b *buffer.Buffer) int {
	w, h := b.Width(), b.Height()
	if w < 3 || h < 3 {
		return 0
	}
	original := b.Clone()

	changed := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := original.At(x, y)
			if color.IsLine(p) {
				continue
			}

			white, line := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					n := original.At(x+dx, y+dy)
					if n == color.White {
						white++
					}
					if color.IsLine(n) {
						line++
					}
				}
			}

			if line >= MajorityLineMax {
				continue
			}
			if white >= MajorityWhiteMin && p != color.White {
				b.Set(x, y, color.White)
				changed++
			}
		}
	}
	return changed
}

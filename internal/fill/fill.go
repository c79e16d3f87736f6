// Package fill implements seed resolution and exact-match flood fill over a
// pixel buffer, recording every write so it can be reverted.
package fill

import (
	"errors"
	"image"

	"github.com/maax3v3/colorfill/internal/buffer"
	"github.com/maax3v3/colorfill/internal/color"
)

// Reasons a fill makes no changes. None of them leave the buffer modified.
var (
	ErrOutOfBounds    = errors.New("fill: seed outside buffer")
	ErrNoEligibleSeed = errors.New("fill: no fillable pixel near seed")
	ErrNoOpTarget     = errors.New("fill: seed already has the fill color")
)

// Delta records the value a pixel held before it was overwritten.
type Delta struct {
	Offset int // y*width + x
	Prev   color.RGBA
}

// Batch is the ordered list of writes made by one operation. Offsets may
// repeat; each entry holds the value seen at the time of that write.
type Batch []Delta

// Seed is the resolved starting pixel and the color that will be replaced.
type Seed struct {
	X, Y   int
	Target color.RGBA
}

// Result describes a completed fill.
type Result struct {
	Seed    Seed
	Changed int
	Batch   Batch
	Err     error // why Changed is zero, if it is
}

// ResolveSeed picks the pixel a tap at (x, y) should fill from.
//
// A tap on an ordinary pixel is its own seed. A tap on a line pixel, or on a
// pixel that already has the fill color, is nudged to the most common exact
// color among the non-line cells of the surrounding 3×3 window. Ties go to
// the color seen first scanning rows top to bottom, left to right.
func ResolveSeed(b *buffer.Buffer, x, y int, fill color.RGBA) (Seed, error) {
	if !b.InBounds(x, y) {
		return Seed{}, ErrOutOfBounds
	}

	target := b.At(x, y)
	if !color.IsLine(target) && target != fill {
		return Seed{X: x, Y: y, Target: target}, nil
	}

	type bucket struct {
		first image.Point
		c     color.RGBA
		count int
	}
	var buckets []bucket

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if !b.InBounds(nx, ny) {
				continue
			}
			c := b.At(nx, ny)
			if color.IsLine(c) {
				continue
			}
			found := false
			for i := range buckets {
				if buckets[i].c == c {
					buckets[i].count++
					found = true
					break
				}
			}
			if !found {
				buckets = append(buckets, bucket{first: image.Point{X: nx, Y: ny}, c: c, count: 1})
			}
		}
	}

	if len(buckets) == 0 {
		return Seed{}, ErrNoEligibleSeed
	}

	best := 0
	for i := 1; i < len(buckets); i++ {
		if buckets[i].count > buckets[best].count {
			best = i
		}
	}
	return Seed{X: buckets[best].first.X, Y: buckets[best].first.Y, Target: buckets[best].c}, nil
}

// Fill resolves the seed for a tap at (x, y) and replaces the 4-connected
// region of the seed's exact color with fill. Line pixels are never written.
func Fill(b *buffer.Buffer, x, y int, fill color.RGBA) Result {
	seed, err := ResolveSeed(b, x, y, fill)
	if err != nil {
		return Result{Err: err}
	}
	return flood(b, seed, fill)
}

func flood(b *buffer.Buffer, seed Seed, fill color.RGBA) Result {
	res := Result{Seed: seed}
	switch {
	case color.IsLine(seed.Target):
		res.Err = ErrNoEligibleSeed
		return res
	case seed.Target == fill:
		res.Err = ErrNoOpTarget
		return res
	}

	// Neighbors are queued without checks; bounds and color are tested when
	// a point is dequeued, so a point may be queued more than once.
	queue := []image.Point{{X: seed.X, Y: seed.Y}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if !b.InBounds(p.X, p.Y) {
			continue
		}
		off := b.Offset(p.X, p.Y)
		c := b.AtOffset(off)
		if c != seed.Target || color.IsLine(c) {
			continue
		}

		res.Batch = append(res.Batch, Delta{Offset: off, Prev: c})
		b.SetOffset(off, fill)
		res.Changed++

		queue = append(queue,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}
	return res
}

// Apply writes every recorded previous value in batch back into b and
// returns the batch that undoes this application. Entries are applied last
// to first so repeated offsets end at their earliest recorded value.
// Offsets outside b are skipped.
func Apply(b *buffer.Buffer, batch Batch) Batch {
	if len(batch) == 0 {
		return nil
	}
	inverse := make(Batch, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		d := batch[i]
		if d.Offset < 0 || d.Offset >= b.Len() {
			continue
		}
		inverse = append(inverse, Delta{Offset: d.Offset, Prev: b.AtOffset(d.Offset)})
		b.SetOffset(d.Offset, d.Prev)
	}
	return inverse
}

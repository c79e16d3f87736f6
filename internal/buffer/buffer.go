// Package buffer holds the flat RGBA pixel grid the fill engine mutates.
package buffer

import (
	"image"
	"sync"

	"github.com/maax3v3/colorfill/internal/color"
)

// Buffer is a fixed-size, row-major grid of straight-alpha pixels.
// The pixel at (x, y) lives at offset y*Width+x. A Buffer is never resized;
// loading a new image produces a new Buffer.
type Buffer struct {
	width, height int
	pix           []color.RGBA
}

// New returns a width×height buffer of transparent black pixels.
// Negative dimensions are treated as zero.
func New(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]color.RGBA, width*height),
	}
}

// Filled returns a width×height buffer where every pixel is c.
func Filled(width, height int, c color.RGBA) *Buffer {
	b := New(width, height)
	for i := range b.pix {
		b.pix[i] = c
	}
	return b
}

// FromImage copies img into a new buffer at its native dimensions.
// Pixels are converted to straight alpha.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	b := New(w, h)

	// Fast path: NRGBA already stores straight-alpha bytes.
	if src, ok := img.(*image.NRGBA); ok {
		parallelRows(h, func(sy, ey int) {
			for y := sy; y < ey; y++ {
				row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
				for x := 0; x < w; x++ {
					i := x * 4
					b.pix[y*w+x] = color.RGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]}
				}
			}
		})
		return b
	}

	parallelRows(h, func(sy, ey int) {
		for y := sy; y < ey; y++ {
			for x := 0; x < w; x++ {
				b.pix[y*w+x] = color.FromStdColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	})
	return b
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Len returns the number of pixels, always Width*Height.
func (b *Buffer) Len() int { return len(b.pix) }

// InBounds reports whether (x, y) addresses a pixel.
func (b *Buffer) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Offset returns the flat index of (x, y). It does not check bounds.
func (b *Buffer) Offset(x, y int) int {
	return y*b.width + x
}

// At returns the pixel at (x, y).
func (b *Buffer) At(x, y int) color.RGBA {
	return b.pix[y*b.width+x]
}

// Set writes the pixel at (x, y).
func (b *Buffer) Set(x, y int, c color.RGBA) {
	b.pix[y*b.width+x] = c
}

// AtOffset returns the pixel at flat index i.
func (b *Buffer) AtOffset(i int) color.RGBA {
	return b.pix[i]
}

// SetOffset writes the pixel at flat index i.
func (b *Buffer) SetOffset(i int, c color.RGBA) {
	b.pix[i] = c
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{width: b.width, height: b.height, pix: make([]color.RGBA, len(b.pix))}
	copy(c.pix, b.pix)
	return c
}

// Equal reports whether b and o have the same dimensions and pixels.
func (b *Buffer) Equal(o *Buffer) bool {
	if b.width != o.width || b.height != o.height {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

// Snapshot exports the buffer as a straight-alpha bitmap: row-major,
// 4 bytes per pixel in R, G, B, A order. The result shares no memory with b.
func (b *Buffer) Snapshot() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	parallelRows(b.height, func(sy, ey int) {
		for y := sy; y < ey; y++ {
			row := out.Pix[y*out.Stride:]
			for x := 0; x < b.width; x++ {
				p := b.pix[y*b.width+x]
				i := x * 4
				row[i] = p.R
				row[i+1] = p.G
				row[i+2] = p.B
				row[i+3] = p.A
			}
		}
	})
	return out
}

// parallelRows runs fn across row bands using multiple goroutines.
func parallelRows(h int, fn func(startY, endY int)) {
	numWorkers := 8
	rowsPerWorker := (h + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(sy, ey int) {
			defer wg.Done()
			fn(sy, ey)
		}(startY, endY)
	}
	wg.Wait()
}

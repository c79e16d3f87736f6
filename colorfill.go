// Package colorfill is a flood-fill coloring book engine.
//
// A Session holds one piece of line art. Tapping a region fills it with a
// color; dark line pixels act as walls and are never painted. Fills can be
// undone and redone.
//
// Usage as a library:
//
//	img, _ := colorfill.LoadImage("drawing.png")
//	s := colorfill.NewSession(colorfill.DefaultOptions())
//	defer s.Close()
//	_ = s.Load(ctx, img)
//	out, _ := s.Fill(ctx, 120, 80, colorfill.Color{R: 255, A: 255})
//	if out.Changed > 0 {
//		colorfill.SavePNG("colored.png", out.Bitmap)
//	}
package colorfill

import (
	"image"
	"io"

	"github.com/maax3v3/colorfill/internal/color"
	"github.com/maax3v3/colorfill/internal/engine"
	"github.com/maax3v3/colorfill/internal/fill"
	"github.com/maax3v3/colorfill/internal/history"
	"github.com/maax3v3/colorfill/internal/imaging"
)

// Reasons an operation made no changes. Check with errors.Is.
var (
	ErrOutOfBounds    = fill.ErrOutOfBounds
	ErrNoEligibleSeed = fill.ErrNoEligibleSeed
	ErrNoOpTarget     = fill.ErrNoOpTarget
	ErrEmptyHistory   = history.ErrEmptyHistory
	ErrNotLoaded      = engine.ErrUnloaded
	ErrClosed         = engine.ErrClosed
)

// Options configures a Session.
type Options struct {
	// UndoLimit is the number of fills that can be undone. Older entries
	// are dropped. Default: 10.
	UndoLimit int

	// RedoLimit is the number of undone steps that can be redone.
	// Default: 5.
	RedoLimit int

	// Normalize snaps near-white pixels to white and removes speckles
	// when an image is loaded. Default: true.
	Normalize bool
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		UndoLimit: history.DefaultUndoLimit,
		RedoLimit: history.DefaultRedoLimit,
		Normalize: true,
	}
}

// Color represents an RGBA color with 8-bit straight-alpha components.
type Color struct {
	R, G, B, A uint8
}

func (c Color) internal() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// ParseHexColor parses a hex color string like "#000", "#FF00FF" or
// "#FF00FF80".
func ParseHexColor(hex string) (Color, error) {
	c, err := color.ParseHex(hex)
	if err != nil {
		return Color{}, err
	}
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}

// IsLineColor reports whether c would be treated as a boundary line.
func IsLineColor(c Color) bool {
	return color.IsLine(c.internal())
}

// LoadImage reads an image from disk. Supports PNG, JPEG, and WEBP.
func LoadImage(path string) (image.Image, error) {
	return imaging.Load(path)
}

// DecodeImage decodes a PNG, JPEG or WEBP image from r.
func DecodeImage(r io.Reader) (image.Image, error) {
	return imaging.Decode(r)
}

// SavePNG writes an image to disk as PNG.
func SavePNG(path string, img image.Image) error {
	return imaging.SavePNG(path, img)
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.EncodePNG(w, img)
}

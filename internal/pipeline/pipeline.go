package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/maax3v3/colorfill"
	"github.com/maax3v3/colorfill/internal/cli"
)

// Summary reports what a batch run did.
type Summary struct {
	Width, Height int
	Applied       int // fills that changed at least one pixel
	Skipped       int // fills that changed nothing
	Painted       int // total pixels painted by applied fills
	Undone        int
}

// Run executes a batch fill: load the input, apply each fill in order,
// undo the requested number of steps and save the result as PNG.
// Progress is written to out.
func Run(ctx context.Context, cfg cli.Config, out io.Writer) (Summary, error) {
	var sum Summary

	// Step 1: Load input image
	fmt.Fprintf(out, "Loading image: %s\n", cfg.InPath)
	img, err := colorfill.LoadImage(cfg.InPath)
	if err != nil {
		return sum, fmt.Errorf("loading image: %w", err)
	}

	// Step 2: Build the session (normalization happens on load)
	s := colorfill.NewSession(colorfill.Options{
		UndoLimit: cfg.UndoLimit,
		RedoLimit: cfg.RedoLimit,
		Normalize: cfg.Normalize,
	})
	defer s.Close()

	if err := s.Load(ctx, img); err != nil {
		return sum, err
	}
	sum.Width, sum.Height = s.Size()
	fmt.Fprintf(out, "Image loaded: %dx%d\n", sum.Width, sum.Height)

	// Step 3: Apply fills
	for i, f := range cfg.Fills {
		c := colorfill.Color{R: f.Color.R, G: f.Color.G, B: f.Color.B, A: f.Color.A}
		res, err := s.Fill(ctx, f.X, f.Y, c)
		if err != nil {
			return sum, fmt.Errorf("fill %d: %w", i+1, err)
		}
		if res.Changed == 0 {
			sum.Skipped++
			fmt.Fprintf(out, "Fill %d at (%d,%d): no change (%v)\n", i+1, f.X, f.Y, res.Reason)
			continue
		}
		sum.Applied++
		sum.Painted += res.Changed
		fmt.Fprintf(out, "Fill %d at (%d,%d): %d pixels from seed (%d,%d)\n",
			i+1, f.X, f.Y, res.Changed, res.Seed.X, res.Seed.Y)
	}

	// Step 4: Undo
	for i := 0; i < cfg.Undo; i++ {
		if _, err := s.Undo(ctx); err != nil {
			if errors.Is(err, colorfill.ErrEmptyHistory) {
				fmt.Fprintf(out, "Undo: history exhausted after %d steps\n", sum.Undone)
				break
			}
			return sum, fmt.Errorf("undo: %w", err)
		}
		sum.Undone++
	}

	// Step 5: Save output
	result, err := s.Snapshot(ctx)
	if err != nil {
		return sum, err
	}
	fmt.Fprintf(out, "Saving output: %s\n", cfg.OutPath)
	if err := colorfill.SavePNG(cfg.OutPath, result); err != nil {
		return sum, fmt.Errorf("saving output: %w", err)
	}

	fmt.Fprintln(out, "Done!")
	return sum, nil
}

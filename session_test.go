package colorfill

import (
	"context"
	"errors"
	"image"
	stdcolor "image/color"
	"path/filepath"
	"testing"
	"time"
)

var (
	red   = Color{255, 0, 0, 255}
	green = Color{0, 200, 0, 255}
)

// twoRooms returns a 9×5 white image framed in black and split by a black
// wall at x=4 into a left room (x 1..3) and a right room (x 5..7).
func twoRooms() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 9, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 9; x++ {
			c := stdcolor.NRGBA{255, 255, 255, 255}
			if x == 0 || x == 4 || x == 8 || y == 0 || y == 4 {
				c = stdcolor.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s := NewSession(opts)
	t.Cleanup(s.Close)
	if err := s.Load(context.Background(), twoRooms()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func snapshot(t *testing.T, s *Session) *image.NRGBA {
	t.Helper()
	img, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return img
}

func equalImages(a, b *image.NRGBA) bool {
	if a == nil || b == nil || a.Bounds() != b.Bounds() {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

func TestSession_NotLoaded(t *testing.T) {
	s := NewSession(DefaultOptions())
	defer s.Close()
	ctx := context.Background()

	out, err := s.Fill(ctx, 1, 1, red)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if out.Changed != 0 || out.Bitmap != nil || !errors.Is(out.Reason, ErrNotLoaded) {
		t.Errorf("Fill = %+v, want a no-op with ErrNotLoaded", out)
	}
	if _, err := s.Undo(ctx); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("Undo err = %v, want ErrEmptyHistory", err)
	}
	if w, h := s.Size(); w != 0 || h != 0 {
		t.Errorf("Size = %dx%d, want 0x0", w, h)
	}
}

func TestSession_LoadSetsSizeAndBitmap(t *testing.T) {
	s := newSession(t, DefaultOptions())
	if w, h := s.Size(); w != 9 || h != 5 {
		t.Errorf("Size = %dx%d, want 9x5", w, h)
	}
	if s.Bitmap() == nil {
		t.Error("expected a bitmap after Load")
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("fresh session should have no history")
	}
}

func TestSession_FillAndUndoRoundTrip(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()
	original := snapshot(t, s)

	out, err := s.Fill(ctx, 2, 2, red)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if out.Changed != 9 || out.Bitmap == nil {
		t.Fatalf("Fill = changed %d, bitmap %v", out.Changed, out.Bitmap != nil)
	}
	filled := snapshot(t, s)

	u, err := s.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !u.Applied || !equalImages(u.Bitmap, original) {
		t.Error("undo did not restore the original")
	}

	r, err := s.Redo(ctx)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if !r.Applied || !equalImages(r.Bitmap, filled) {
		t.Error("redo did not restore the filled state")
	}
	if !equalImages(s.Bitmap(), filled) {
		t.Error("Bitmap() is not the redo result")
	}
}

func TestSession_UndoAfterTwoFills(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()
	original := snapshot(t, s)

	if out, _ := s.Fill(ctx, 2, 2, red); out.Changed != 9 {
		t.Fatalf("fill A changed %d, want 9", out.Changed)
	}
	if out, _ := s.Fill(ctx, 6, 2, green); out.Changed != 9 {
		t.Fatalf("fill B changed %d, want 9", out.Changed)
	}

	if _, err := s.Undo(ctx); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	img := snapshot(t, s)
	if got := img.NRGBAAt(6, 2); got != (stdcolor.NRGBA{255, 255, 255, 255}) {
		t.Errorf("region B = %v, want white after first undo", got)
	}
	if got := img.NRGBAAt(2, 2); got != (stdcolor.NRGBA{255, 0, 0, 255}) {
		t.Errorf("region A = %v, want red after first undo", got)
	}

	if _, err := s.Undo(ctx); err != nil {
		t.Fatalf("second undo: %v", err)
	}
	if !equalImages(snapshot(t, s), original) {
		t.Error("two undos did not restore the original")
	}
	if _, err := s.Undo(ctx); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("third undo err = %v, want ErrEmptyHistory", err)
	}
}

func TestSession_FillClearsRedo(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()

	s.Fill(ctx, 2, 2, red)
	s.Fill(ctx, 6, 2, red)
	s.Undo(ctx)
	s.Undo(ctx)
	if s.RedoDepth() != 2 {
		t.Fatalf("RedoDepth = %d, want 2", s.RedoDepth())
	}

	if out, _ := s.Fill(ctx, 2, 2, green); out.Changed == 0 {
		t.Fatal("fill made no changes")
	}
	if s.CanRedo() {
		t.Errorf("RedoDepth = %d after a fresh fill, want 0", s.RedoDepth())
	}
	if _, err := s.Redo(ctx); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("Redo err = %v, want ErrEmptyHistory", err)
	}
}

func TestSession_NoOpFillKeepsHistoryAndBitmap(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()

	s.Fill(ctx, 2, 2, red)
	s.Undo(ctx)
	before := s.Bitmap()

	out, err := s.Fill(ctx, 2, 2, Color{255, 255, 255, 255})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if out.Changed != 0 || out.Bitmap != nil || !errors.Is(out.Reason, ErrNoOpTarget) {
		t.Errorf("Fill = %+v, want a no-op", out)
	}
	if s.RedoDepth() != 1 {
		t.Errorf("RedoDepth = %d, want 1: a no-op fill must not clear redo", s.RedoDepth())
	}
	if s.Bitmap() != before {
		t.Error("no-op fill replaced the bitmap")
	}
}

func TestSession_UndoLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.UndoLimit = 3
	s := newSession(t, opts)
	ctx := context.Background()

	colors := []Color{red, green, red, green, red}
	for _, c := range colors {
		if out, _ := s.Fill(ctx, 2, 2, c); out.Changed != 9 {
			t.Fatalf("fill changed %d, want 9", out.Changed)
		}
	}
	if s.UndoDepth() != 3 {
		t.Fatalf("UndoDepth = %d, want 3", s.UndoDepth())
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Undo(ctx); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	// The two oldest fills were evicted, so undo stops at the second fill.
	if got := snapshot(t, s).NRGBAAt(2, 2); got != (stdcolor.NRGBA{0, 200, 0, 255}) {
		t.Errorf("room = %v, want green from the second fill", got)
	}
	if _, err := s.Undo(ctx); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("fourth undo err = %v, want ErrEmptyHistory", err)
	}
	if s.RedoDepth() != 3 {
		t.Errorf("RedoDepth = %d, want 3", s.RedoDepth())
	}
}

func TestSession_OutOfBoundsAndLines(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()

	out, _ := s.Fill(ctx, 20, 2, red)
	if out.Changed != 0 || !errors.Is(out.Reason, ErrOutOfBounds) {
		t.Errorf("out of bounds fill = %+v", out)
	}

	// A tap on the wall nudges into the room on its left (first in scan order).
	out, _ = s.Fill(ctx, 4, 2, red)
	if out.Changed != 9 || out.Seed != (image.Point{X: 3, Y: 1}) {
		t.Errorf("wall tap = changed %d seed %v, want 9 at (3,1)", out.Changed, out.Seed)
	}
	if got := snapshot(t, s).NRGBAAt(4, 2); got != (stdcolor.NRGBA{0, 0, 0, 255}) {
		t.Errorf("wall = %v, want black", got)
	}
}

func TestSession_Reset(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()
	original := snapshot(t, s)
	gen := s.Generation()

	s.Fill(ctx, 2, 2, red)
	s.Fill(ctx, 6, 2, green)
	s.Undo(ctx)

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Generation() == gen {
		t.Error("Reset did not change the generation")
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("Reset did not clear history")
	}
	if s.Bitmap() != nil {
		t.Error("Reset did not discard the bitmap")
	}
	if !equalImages(snapshot(t, s), original) {
		t.Error("Reset did not restore the loaded artwork")
	}
}

func TestSession_CancelledStepKeepsHistory(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()
	original := snapshot(t, s)
	if _, err := s.Fill(ctx, 2, 2, red); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	filled := snapshot(t, s)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := s.Undo(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Undo err = %v, want context.Canceled", err)
	}
	if s.UndoDepth() != 1 || s.RedoDepth() != 0 {
		t.Errorf("depths = %d/%d after cancelled undo, want 1/0", s.UndoDepth(), s.RedoDepth())
	}
	if !equalImages(snapshot(t, s), filled) {
		t.Error("cancelled undo modified the artwork")
	}

	if _, err := s.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !equalImages(snapshot(t, s), original) {
		t.Error("undo after a cancelled attempt did not restore the original")
	}

	if _, err := s.Redo(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Redo err = %v, want context.Canceled", err)
	}
	if s.UndoDepth() != 0 || s.RedoDepth() != 1 {
		t.Errorf("depths = %d/%d after cancelled redo, want 0/1", s.UndoDepth(), s.RedoDepth())
	}
	if _, err := s.Redo(ctx); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if !equalImages(snapshot(t, s), filled) {
		t.Error("redo after a cancelled attempt did not restore the fill")
	}
}

// waitForPixel polls the engine until (x, y) holds c.
func waitForPixel(t *testing.T, s *Session, x, y int, c Color) {
	t.Helper()
	want := stdcolor.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snapshot(t, s).NRGBAAt(x, y) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pixel (%d, %d) never became %v", x, y, want)
}

func TestSession_FillOvertakenIsStale(t *testing.T) {
	tests := []struct {
		name       string
		overtake   func(s *Session) error
		wantBitmap bool
	}{
		{
			name:     "reset",
			overtake: func(s *Session) error { return s.resetLocked(context.Background()) },
		},
		{
			name:       "reload",
			overtake:   func(s *Session) error { return s.loadLocked(context.Background(), twoRooms()) },
			wantBitmap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, DefaultOptions())
			ctx := context.Background()
			original := snapshot(t, s)

			// Hold the session so the fill completes in the engine but
			// cannot record its result until the overtaking call is done.
			s.mu.Lock()
			done := make(chan FillOutcome, 1)
			go func() {
				out, err := s.Fill(ctx, 2, 2, red)
				if err != nil {
					t.Errorf("Fill: %v", err)
				}
				done <- out
			}()
			waitForPixel(t, s, 2, 2, red)
			if err := tt.overtake(s); err != nil {
				s.mu.Unlock()
				t.Fatalf("overtake: %v", err)
			}
			s.mu.Unlock()

			out := <-done
			if !out.Stale || out.Changed != 0 || out.Bitmap != nil {
				t.Errorf("Fill = %+v, want a stale outcome", out)
			}
			if s.CanUndo() || s.CanRedo() {
				t.Error("stale fill was recorded in history")
			}
			if got := s.Bitmap(); (got != nil) != tt.wantBitmap {
				t.Errorf("Bitmap present = %v, want %v", got != nil, tt.wantBitmap)
			} else if got != nil && !equalImages(got, original) {
				t.Error("stale fill replaced the bitmap")
			}
			if !equalImages(snapshot(t, s), original) {
				t.Error("artwork does not match the freshly loaded image")
			}
		})
	}
}

func TestSession_ReloadClearsHistory(t *testing.T) {
	s := newSession(t, DefaultOptions())
	ctx := context.Background()
	s.Fill(ctx, 2, 2, red)

	small := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if err := s.Load(ctx, small); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.CanUndo() {
		t.Error("reload kept undo history")
	}
	if w, h := s.Size(); w != 2 || h != 2 {
		t.Errorf("Size = %dx%d, want 2x2", w, h)
	}
}

func TestSession_Closed(t *testing.T) {
	s := NewSession(DefaultOptions())
	s.Close()
	if err := s.Load(context.Background(), twoRooms()); !errors.Is(err, ErrClosed) {
		t.Errorf("Load err = %v, want ErrClosed", err)
	}
	if _, err := s.Fill(context.Background(), 1, 1, red); !errors.Is(err, ErrClosed) {
		t.Errorf("Fill err = %v, want ErrClosed", err)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#f00")
	if err != nil {
		t.Fatalf("ParseHexColor: %v", err)
	}
	if c != red {
		t.Errorf("got %+v, want %+v", c, red)
	}
	if _, err := ParseHexColor("#12"); err == nil {
		t.Error("expected error for short hex")
	}
}

func TestIsLineColor(t *testing.T) {
	if !IsLineColor(Color{0, 0, 0, 255}) {
		t.Error("opaque black should be a line color")
	}
	if IsLineColor(red) {
		t.Error("red should not be a line color")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.png")
	if err := SavePNG(path, twoRooms()); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Bounds().Dx() != 9 || img.Bounds().Dy() != 5 {
		t.Errorf("dimensions: got %v", img.Bounds())
	}
}

package colorfill

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/maax3v3/colorfill/internal/engine"
	"github.com/maax3v3/colorfill/internal/fill"
	"github.com/maax3v3/colorfill/internal/history"
)

// FillOutcome is the result of Session.Fill.
type FillOutcome struct {
	// Changed is the number of pixels painted. Zero means nothing happened
	// and the previous bitmap is still current.
	Changed int

	// Seed is the pixel the fill started from after nudging off lines.
	Seed image.Point

	// Bitmap is the updated image, or nil when Changed is zero.
	Bitmap *image.NRGBA

	// Reason explains a zero-change fill: ErrOutOfBounds,
	// ErrNoEligibleSeed, ErrNoOpTarget or ErrNotLoaded.
	Reason error

	// Stale is set when the session was reset or reloaded while the fill
	// was in flight. The result was discarded.
	Stale bool
}

// StepOutcome is the result of Session.Undo and Session.Redo.
type StepOutcome struct {
	Applied bool
	Bitmap  *image.NRGBA
	Stale   bool
}

// Session couples an engine with its undo/redo history. All methods are safe
// for concurrent use. Fill, Undo and Redo run one at a time in call order;
// Load and Reset may overtake them, in which case their results are dropped.
type Session struct {
	eng *engine.Engine

	// op serializes Fill, Undo and Redo so history order matches the order
	// batches were applied to the buffer.
	op sync.Mutex

	mu     sync.Mutex
	hist   *history.History
	bitmap *image.NRGBA
	width  int
	height int
}

// NewSession creates an empty session. Call Close when done.
func NewSession(opts Options) *Session {
	return &Session{
		eng:  engine.New(engine.Options{Normalize: opts.Normalize}),
		hist: history.New(opts.UndoLimit, opts.RedoLimit),
	}
}

// Close releases the session's worker.
func (s *Session) Close() {
	s.eng.Close()
}

// Load replaces the artwork with img, normalizes it and clears history.
func (s *Session) Load(ctx context.Context, img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, img)
}

func (s *Session) loadLocked(ctx context.Context, img image.Image) error {
	lr, err := s.eng.Load(ctx, img)
	if err != nil {
		return fmt.Errorf("loading artwork: %w", err)
	}
	s.hist.Reset()
	s.bitmap = lr.Bitmap
	s.width, s.height = lr.Width, lr.Height
	return nil
}

// Reset restores the artwork as it was right after loading, clears history
// and discards the current bitmap. Fills still in flight are dropped.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(ctx)
}

func (s *Session) resetLocked(ctx context.Context) error {
	if _, err := s.eng.Reset(ctx); err != nil {
		return err
	}
	s.hist.Reset()
	s.bitmap = nil
	return nil
}

// Fill paints the region under (x, y) with c. A successful fill clears the
// redo history.
func (s *Session) Fill(ctx context.Context, x, y int, c Color) (FillOutcome, error) {
	s.op.Lock()
	defer s.op.Unlock()

	gen := s.eng.Generation()
	res := <-s.eng.FillAsync(ctx, gen, x, y, c.internal())

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(res.Err, engine.ErrStale) || res.Generation != s.eng.Generation() {
		return FillOutcome{Stale: true}, nil
	}
	if isFatal(res.Err) {
		return FillOutcome{}, res.Err
	}

	out := FillOutcome{
		Changed: res.Changed,
		Seed:    image.Point{X: res.Seed.X, Y: res.Seed.Y},
		Reason:  res.Err,
	}
	if res.Changed > 0 {
		s.hist.RecordFill(res.Batch)
		s.bitmap = res.Bitmap
		out.Bitmap = res.Bitmap
	}
	return out, nil
}

// Undo reverts the most recent fill or redo. It returns ErrEmptyHistory when
// there is nothing to undo.
func (s *Session) Undo(ctx context.Context) (StepOutcome, error) {
	return s.step(ctx, (*history.History).PopUndo, (*history.History).PushUndo, (*history.History).PushRedo)
}

// Redo reapplies the most recently undone step. It returns ErrEmptyHistory
// when there is nothing to redo.
func (s *Session) Redo(ctx context.Context) (StepOutcome, error) {
	return s.step(ctx, (*history.History).PopRedo, (*history.History).PushRedo, (*history.History).PushUndo)
}

// step pops a batch from one stack, applies it and pushes the inverse onto
// the other. Undo and redo differ only in which stacks they use. A batch
// that was never applied goes back where it came from.
func (s *Session) step(
	ctx context.Context,
	pop func(*history.History) (fill.Batch, error),
	unpop func(*history.History, fill.Batch),
	push func(*history.History, fill.Batch),
) (StepOutcome, error) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	batch, err := pop(s.hist)
	gen := s.eng.Generation()
	s.mu.Unlock()
	if err != nil {
		return StepOutcome{}, err
	}

	res := <-s.eng.ApplyAsync(ctx, gen, batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(res.Err, engine.ErrStale) || res.Generation != s.eng.Generation() {
		return StepOutcome{Stale: true}, nil
	}
	if res.Err != nil {
		unpop(s.hist, batch)
		return StepOutcome{}, res.Err
	}
	push(s.hist, res.Inverse)
	if res.Bitmap != nil {
		s.bitmap = res.Bitmap
	}
	return StepOutcome{Applied: len(res.Inverse) > 0, Bitmap: res.Bitmap}, nil
}

// Size returns the artwork dimensions, or zero before the first load.
func (s *Session) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Bitmap returns the most recently exported image, or nil after a reset
// or before the first load. Callers must not modify it.
func (s *Session) Bitmap() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bitmap
}

// Snapshot exports the current buffer regardless of history.
func (s *Session) Snapshot(ctx context.Context) (*image.NRGBA, error) {
	return s.eng.Snapshot(ctx)
}

// Generation returns the current generation. It changes on Load and Reset.
func (s *Session) Generation() uint64 {
	return s.eng.Generation()
}

// CanUndo reports whether Undo has anything to apply.
func (s *Session) CanUndo() bool { return s.UndoDepth() > 0 }

// CanRedo reports whether Redo has anything to apply.
func (s *Session) CanRedo() bool { return s.RedoDepth() > 0 }

// UndoDepth returns the number of undoable steps.
func (s *Session) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.UndoLen()
}

// RedoDepth returns the number of redoable steps.
func (s *Session) RedoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.RedoLen()
}

// isFatal separates transport failures (closed engine, cancelled context)
// from the zero-change reasons a fill reports.
func isFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, fill.ErrOutOfBounds),
		errors.Is(err, fill.ErrNoEligibleSeed),
		errors.Is(err, fill.ErrNoOpTarget),
		errors.Is(err, engine.ErrUnloaded):
		return false
	}
	return true
}

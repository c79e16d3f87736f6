// Package engine owns the pixel buffer and serializes every operation on it
// through a single worker goroutine.
//
// Each operation is tagged with the generation it was submitted under.
// Loading or resetting starts a new generation; work tagged with an older
// one is skipped without touching the buffer.
package engine

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/maax3v3/colorfill/internal/buffer"
	"github.com/maax3v3/colorfill/internal/color"
	"github.com/maax3v3/colorfill/internal/fill"
	"github.com/maax3v3/colorfill/internal/normalize"
)

var (
	// ErrUnloaded is reported by operations issued before any image is loaded.
	ErrUnloaded = errors.New("engine: no image loaded")

	// ErrStale is reported when an operation's generation is no longer current.
	ErrStale = errors.New("engine: stale generation")

	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("engine: closed")
)

// Options configures an Engine.
type Options struct {
	// Normalize runs the snap and majority passes on every loaded image.
	Normalize bool
}

// DefaultOptions returns Options with normalization enabled.
func DefaultOptions() Options {
	return Options{Normalize: true}
}

// LoadResult describes a completed load.
type LoadResult struct {
	Generation    uint64
	Width, Height int
	Normalize     normalize.Stats
	Bitmap        *image.NRGBA
}

// FillResult describes a completed fill. Bitmap is nil unless Changed > 0.
type FillResult struct {
	Generation uint64
	Seed       fill.Seed
	Changed    int
	Batch      fill.Batch
	Bitmap     *image.NRGBA
	Err        error
}

// ApplyResult describes a completed batch application. Inverse restores the
// state from before the application. Bitmap is nil if nothing was written.
type ApplyResult struct {
	Generation uint64
	Inverse    fill.Batch
	Bitmap     *image.NRGBA
	Err        error
}

// Engine is the single owner of a pixel buffer.
type Engine struct {
	opts Options

	jobs      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// gen is only written by the worker; anyone may read it.
	gen atomic.Uint64

	// Owned by the worker goroutine.
	buf      *buffer.Buffer
	pristine *buffer.Buffer
}

// New starts an Engine. Call Close to stop its worker.
func New(opts Options) *Engine {
	e := &Engine{
		opts: opts,
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case job := <-e.jobs:
			job()
		case <-e.done:
			return
		}
	}
}

// Close stops the worker. Operations submitted afterwards fail with ErrClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// Generation returns the current generation.
func (e *Engine) Generation() uint64 {
	return e.gen.Load()
}

// submit hands job to the worker. A successful send means the job will run;
// an error means it never will.
func (e *Engine) submit(ctx context.Context, job func()) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case e.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	}
}

// Load replaces the buffer with img at its native size, normalizes it if
// enabled, and starts a new generation.
func (e *Engine) Load(ctx context.Context, img image.Image) (LoadResult, error) {
	if img == nil {
		return LoadResult{}, errors.New("engine: input image is nil")
	}

	// Decoding into the flat buffer happens on the caller's goroutine; only
	// the swap is serialized.
	b := buffer.FromImage(img)
	var st normalize.Stats
	if e.opts.Normalize {
		st = normalize.Normalize(b)
	}
	pristine := b.Clone()

	out := make(chan LoadResult, 1)
	err := e.submit(ctx, func() {
		e.buf = b
		e.pristine = pristine
		gen := e.gen.Add(1)
		out <- LoadResult{
			Generation: gen,
			Width:      b.Width(),
			Height:     b.Height(),
			Normalize:  st,
			Bitmap:     b.Snapshot(),
		}
	})
	if err != nil {
		return LoadResult{}, err
	}
	return <-out, nil
}

// Reset restores the buffer to its state right after the last load and
// starts a new generation. It returns the new generation.
func (e *Engine) Reset(ctx context.Context) (uint64, error) {
	out := make(chan uint64, 1)
	err := e.submit(ctx, func() {
		if e.pristine != nil {
			e.buf = e.pristine.Clone()
		}
		out <- e.gen.Add(1)
	})
	if err != nil {
		return 0, err
	}
	return <-out, nil
}

// FillAsync queues a fill at (x, y) tagged with gen and returns a channel
// that receives exactly one result.
func (e *Engine) FillAsync(ctx context.Context, gen uint64, x, y int, c color.RGBA) <-chan FillResult {
	out := make(chan FillResult, 1)
	err := e.submit(ctx, func() {
		out <- e.fill(gen, x, y, c)
	})
	if err != nil {
		out <- FillResult{Generation: gen, Err: err}
	}
	return out
}

// Fill runs a fill at (x, y) under the current generation and waits for it.
func (e *Engine) Fill(ctx context.Context, x, y int, c color.RGBA) FillResult {
	return <-e.FillAsync(ctx, e.Generation(), x, y, c)
}

func (e *Engine) fill(gen uint64, x, y int, c color.RGBA) FillResult {
	res := FillResult{Generation: gen}
	if gen != e.gen.Load() {
		res.Err = ErrStale
		return res
	}
	if e.buf == nil {
		res.Err = ErrUnloaded
		return res
	}

	r := fill.Fill(e.buf, x, y, c)
	res.Seed = r.Seed
	res.Changed = r.Changed
	res.Batch = r.Batch
	res.Err = r.Err
	if r.Changed > 0 {
		res.Bitmap = e.buf.Snapshot()
	}
	return res
}

// ApplyAsync queues the application of batch tagged with gen. Undo and redo
// are both an application of a previously returned batch.
func (e *Engine) ApplyAsync(ctx context.Context, gen uint64, batch fill.Batch) <-chan ApplyResult {
	out := make(chan ApplyResult, 1)
	err := e.submit(ctx, func() {
		out <- e.apply(gen, batch)
	})
	if err != nil {
		out <- ApplyResult{Generation: gen, Err: err}
	}
	return out
}

// Apply applies batch under the current generation and waits for it.
func (e *Engine) Apply(ctx context.Context, batch fill.Batch) ApplyResult {
	return <-e.ApplyAsync(ctx, e.Generation(), batch)
}

func (e *Engine) apply(gen uint64, batch fill.Batch) ApplyResult {
	res := ApplyResult{Generation: gen}
	if gen != e.gen.Load() {
		res.Err = ErrStale
		return res
	}
	if e.buf == nil {
		res.Err = ErrUnloaded
		return res
	}

	res.Inverse = fill.Apply(e.buf, batch)
	if len(res.Inverse) > 0 {
		res.Bitmap = e.buf.Snapshot()
	}
	return res
}

// Size returns the buffer dimensions, or zero before the first load.
func (e *Engine) Size(ctx context.Context) (width, height int, err error) {
	type size struct{ w, h int }
	out := make(chan size, 1)
	err = e.submit(ctx, func() {
		if e.buf == nil {
			out <- size{}
			return
		}
		out <- size{e.buf.Width(), e.buf.Height()}
	})
	if err != nil {
		return 0, 0, err
	}
	s := <-out
	return s.w, s.h, nil
}

// Snapshot exports the current buffer, or returns nil before the first load.
func (e *Engine) Snapshot(ctx context.Context) (*image.NRGBA, error) {
	out := make(chan *image.NRGBA, 1)
	err := e.submit(ctx, func() {
		if e.buf == nil {
			out <- nil
			return
		}
		out <- e.buf.Snapshot()
	})
	if err != nil {
		return nil, err
	}
	return <-out, nil
}

// Package history keeps bounded undo and redo stacks of fill batches.
package history

import (
	"errors"

	"github.com/maax3v3/colorfill/internal/fill"
)

// Default stack capacities.
const (
	DefaultUndoLimit = 10
	DefaultRedoLimit = 5
)

// ErrEmptyHistory is returned when popping a stack with no entries.
var ErrEmptyHistory = errors.New("history: nothing to apply")

// History holds two bounded LIFO stacks. Pushing onto a full stack evicts
// its oldest entry. History is not safe for concurrent use.
type History struct {
	undo, redo           []fill.Batch
	undoLimit, redoLimit int
}

// New returns an empty History. Negative limits are treated as zero, which
// disables that stack.
func New(undoLimit, redoLimit int) *History {
	if undoLimit < 0 {
		undoLimit = 0
	}
	if redoLimit < 0 {
		redoLimit = 0
	}
	return &History{undoLimit: undoLimit, redoLimit: redoLimit}
}

// RecordFill pushes the batch of a fresh fill onto the undo stack and drops
// all redo entries, since they belong to a timeline that no longer exists.
// Empty batches are ignored.
func (h *History) RecordFill(b fill.Batch) {
	if len(b) == 0 {
		return
	}
	h.PushUndo(b)
	h.redo = nil
}

// PushUndo pushes b onto the undo stack without touching redo.
func (h *History) PushUndo(b fill.Batch) {
	h.undo = push(h.undo, b, h.undoLimit)
}

// PushRedo pushes b onto the redo stack.
func (h *History) PushRedo(b fill.Batch) {
	h.redo = push(h.redo, b, h.redoLimit)
}

// PopUndo removes and returns the most recent undo batch.
func (h *History) PopUndo() (fill.Batch, error) {
	var b fill.Batch
	var err error
	h.undo, b, err = pop(h.undo)
	return b, err
}

// PopRedo removes and returns the most recent redo batch.
func (h *History) PopRedo() (fill.Batch, error) {
	var b fill.Batch
	var err error
	h.redo, b, err = pop(h.redo)
	return b, err
}

// UndoLen returns the number of undoable batches.
func (h *History) UndoLen() int { return len(h.undo) }

// RedoLen returns the number of redoable batches.
func (h *History) RedoLen() int { return len(h.redo) }

// Reset empties both stacks.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func push(stack []fill.Batch, b fill.Batch, limit int) []fill.Batch {
	if limit == 0 {
		return stack[:0]
	}
	stack = append(stack, b)
	if over := len(stack) - limit; over > 0 {
		n := copy(stack, stack[over:])
		for i := n; i < len(stack); i++ {
			stack[i] = nil
		}
		stack = stack[:n]
	}
	return stack
}

func pop(stack []fill.Batch) ([]fill.Batch, fill.Batch, error) {
	if len(stack) == 0 {
		return stack, nil, ErrEmptyHistory
	}
	last := len(stack) - 1
	b := stack[last]
	stack[last] = nil
	return stack[:last], b, nil
}

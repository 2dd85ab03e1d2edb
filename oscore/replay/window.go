package replay

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// DefaultSize is the window width used when none is configured.
	DefaultSize = 32
	// MaxSize is the widest window the bitmap can track.
	MaxSize = 64
)

var (
	ErrDuplicate   = errors.New("replay: duplicate sequence number")
	ErrTooOld      = errors.New("replay: sequence number outside window")
	ErrInvalidSize = errors.New("replay: invalid window size")
)

// Window is a sliding bitmap over recently accepted sequence numbers.
// Bit i of seen is set when highest-i has been accepted.
type Window struct {
	mu          sync.Mutex
	size        uint64
	initialized bool
	highest     uint64
	seen        uint64
}

// NewWindow creates a window of the given width; size 0 selects DefaultSize.
func NewWindow(size int) (*Window, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < 1 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Window{size: uint64(size)}, nil
}

// Accept records seq if it is fresh. It returns ErrDuplicate or ErrTooOld otherwise,
// leaving the window unchanged.
func (w *Window) Accept(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		w.initialized = true
		w.highest = seq
		w.seen = 1
		return nil
	}

	switch {
	case seq > w.highest:
		shift := seq - w.highest
		if shift >= MaxSize {
			w.seen = 0
		} else {
			w.seen <<= shift
		}
		w.seen |= 1
		w.highest = seq
		return nil
	case seq == w.highest:
		return ErrDuplicate
	}

	diff := w.highest - seq
	if diff >= w.size {
		return ErrTooOld
	}
	mask := uint64(1) << diff
	if w.seen&mask != 0 {
		return ErrDuplicate
	}
	w.seen |= mask
	return nil
}

// Highest returns the anchor of the window and whether anything was accepted yet.
func (w *Window) Highest() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.highest, w.initialized
}

// Size returns the window width.
func (w *Window) Size() int { return int(w.size) }

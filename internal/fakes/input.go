// Package fakes provides the in-memory collaborators the harness
// drives extractors against: a fault-injecting input and an output
// recorder. Both are deterministic so that repeated runs over the same
// data produce identical recordings.
package fakes

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/exconform/internal/extractor"
)

// ErrSimulatedIOError is the transient-fault sentinel. Faults raised
// by Input wrap it; the harness retry policy matches it with
// errors.Is. It never surfaces past the consumption driver.
var ErrSimulatedIOError = errors.New("simulated IO error")

// SimulatedError is the concrete transient fault, carrying the
// operation and cursor position it was injected at.
type SimulatedError struct {
	Op       string
	Position int64
}

func (e *SimulatedError) Error() string {
	return fmt.Sprintf("simulated IO error: %s at position %d", e.Op, e.Position)
}

func (e *SimulatedError) Unwrap() error { return ErrSimulatedIOError }

// InputOptions selects which classes of I/O adversity the input
// injects. The three flags are independent.
type InputOptions struct {
	// SimulateIOErrors makes each new cursor position fail exactly
	// once with a SimulatedError before yielding its bytes.
	SimulateIOErrors bool

	// SimulateUnknownLength makes Length report LengthUnset.
	SimulateUnknownLength bool

	// SimulatePartialReads makes the first non-full Read at each new
	// position return at most half the requested bytes.
	SimulatePartialReads bool
}

// Input is a fault-injecting extractor.Input over a byte slice.
//
// The fault schedule is deterministic and keyed by cursor position:
// once a position has faulted (or been partially satisfied) it never
// does so again, even after SetPosition or ResetPeekPosition. Retries
// therefore always make progress.
type Input struct {
	data []byte
	opts InputOptions

	readPos int64
	peekPos int64

	failedReadPositions map[int64]bool
	failedPeekPositions map[int64]bool
	partiallySatisfied  map[int64]bool
}

// NewInput wraps data in a fault-injecting input positioned at byte 0.
func NewInput(data []byte, opts InputOptions) *Input {
	return &Input{
		data:                data,
		opts:                opts,
		failedReadPositions: make(map[int64]bool),
		failedPeekPositions: make(map[int64]bool),
		partiallySatisfied:  make(map[int64]bool),
	}
}

// Read implements extractor.Input. Reads are subject to both fault and
// partial-read simulation.
func (in *Input) Read(p []byte) (int, error) {
	if err := in.maybeFailRead(); err != nil {
		return 0, err
	}
	if in.readPos >= int64(len(in.data)) {
		return 0, io.EOF
	}
	n := len(p)
	if remaining := int(int64(len(in.data)) - in.readPos); n > remaining {
		n = remaining
	}
	if in.opts.SimulatePartialReads && n > 1 && !in.partiallySatisfied[in.readPos] {
		in.partiallySatisfied[in.readPos] = true
		n = (n + 1) / 2
	}
	copy(p, in.data[in.readPos:in.readPos+int64(n)])
	in.advanceRead(int64(n))
	return n, nil
}

// ReadFully implements extractor.Input. The copy is atomic: either the
// whole of p is filled and the cursor advances, or nothing is
// consumed. Partial-read simulation does not apply.
func (in *Input) ReadFully(p []byte) error {
	if err := in.maybeFailRead(); err != nil {
		return err
	}
	if err := in.checkBounds(in.readPos, len(p)); err != nil {
		return err
	}
	copy(p, in.data[in.readPos:in.readPos+int64(len(p))])
	in.advanceRead(int64(len(p)))
	return nil
}

// PeekFully implements extractor.Input. Advances only the peek cursor.
func (in *Input) PeekFully(p []byte) error {
	if in.opts.SimulateIOErrors && !in.failedPeekPositions[in.peekPos] {
		in.failedPeekPositions[in.peekPos] = true
		return &SimulatedError{Op: "peek", Position: in.peekPos}
	}
	if err := in.checkBounds(in.peekPos, len(p)); err != nil {
		return err
	}
	copy(p, in.data[in.peekPos:in.peekPos+int64(len(p))])
	in.peekPos += int64(len(p))
	return nil
}

// SkipFully implements extractor.Input.
func (in *Input) SkipFully(n int64) error {
	if err := in.maybeFailRead(); err != nil {
		return err
	}
	if err := in.checkBounds(in.readPos, int(n)); err != nil {
		return err
	}
	in.advanceRead(n)
	return nil
}

// Position implements extractor.Input.
func (in *Input) Position() int64 { return in.readPos }

// Length implements extractor.Input.
func (in *Input) Length() int64 {
	if in.opts.SimulateUnknownLength {
		return extractor.LengthUnset
	}
	return int64(len(in.data))
}

// SetPosition moves both cursors. Fault-schedule state is retained so
// previously revealed positions do not fault again.
func (in *Input) SetPosition(pos int64) {
	in.readPos = pos
	in.peekPos = pos
}

// ResetPeekPosition implements extractor.Input.
func (in *Input) ResetPeekPosition() { in.peekPos = in.readPos }

func (in *Input) maybeFailRead() error {
	if in.opts.SimulateIOErrors && !in.failedReadPositions[in.readPos] {
		in.failedReadPositions[in.readPos] = true
		return &SimulatedError{Op: "read", Position: in.readPos}
	}
	return nil
}

func (in *Input) checkBounds(pos int64, n int) error {
	if pos >= int64(len(in.data)) {
		if n == 0 {
			return nil
		}
		return io.EOF
	}
	if pos+int64(n) > int64(len(in.data)) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (in *Input) advanceRead(n int64) {
	in.readPos += n
	if in.peekPos < in.readPos {
		in.peekPos = in.readPos
	}
}

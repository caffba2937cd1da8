// Package harness drives extractor implementations through the
// sniff/init/read/seek protocol under injected I/O adversity and
// verifies their recorded output against golden dumps.
//
// The package has three cooperating parts: the consumption driver
// (this file), which runs the extraction state machine with the fault
// retry policy; the matrix runner, which repeats the protocol for all
// eight simulation configurations; and the golden verifier, which
// compares recordings against stored dumps and re-checks behavior at
// seek-probe targets.
package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/fakes"
)

// SniffUntilDetected invokes Sniff until it returns a real result,
// retrying transient faults unboundedly. The fault schedule is
// deterministic per call count, so retries always make progress and no
// backoff is needed.
func SniffUntilDetected(ex extractor.Extractor, in extractor.Input) (bool, error) {
	for {
		ok, err := ex.Sniff(in)
		if errors.Is(err, fakes.ErrSimulatedIOError) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("sniff failed: %w", err)
		}
		return ok, nil
	}
}

// ConsumeNew initializes the extractor with a fresh recorder and
// consumes the input from its current position. See Consume.
func ConsumeNew(ex extractor.Extractor, in extractor.Input, timeUs int64, retryFromStartIfLive bool) (*fakes.Output, error) {
	out := fakes.NewOutput()
	ex.Init(out)
	if err := Consume(ex, in, timeUs, out, retryFromStartIfLive); err != nil {
		return out, err
	}
	return out, nil
}

// Consume drives the extractor to the end of the input, recording into
// out. Seek is issued exactly once on entry; the read loop then runs
// until ResultEndOfInput.
//
// Before every Read the seek slot is armed with SeekPositionUnset so a
// stale or unwritten slot is detectable: on ResultSeek the written
// position must be inside [0, MaxSeekPosition] or the run fails with a
// protocol violation carrying the offending value.
//
// Transient faults are recovered according to retryFromStartIfLive.
// When disabled, the failed Read is simply reissued. When enabled, the
// stream is first classified: on-demand streams (bounded length, or a
// seek map reporting a finite duration) are also retried in place,
// because they can be resumed mid-stream deterministically. Live
// streams cannot, so the run restarts the extractor's
// resynchronization path: input back to byte 0, every track sink
// cleared, Seek(0, 0) reissued, and the read loop resumed.
func Consume(ex extractor.Extractor, in extractor.Input, timeUs int64, out *fakes.Output, retryFromStartIfLive bool) error {
	ex.Seek(in.Position(), timeUs)
	var holder extractor.PositionHolder
	for {
		holder.Position = extractor.SeekPositionUnset
		result, err := ex.Read(in, &holder)
		if err != nil {
			if !errors.Is(err, fakes.ErrSimulatedIOError) {
				return err
			}
			if !retryFromStartIfLive || isOnDemand(in, out) {
				continue
			}
			in.SetPosition(0)
			out.ClearTrackData()
			ex.Seek(0, 0)
			continue
		}
		switch result {
		case extractor.ResultContinue:
		case extractor.ResultSeek:
			pos := holder.Position
			if pos < 0 || pos > extractor.MaxSeekPosition {
				return newSeekPositionViolation(pos)
			}
			in.SetPosition(pos)
		case extractor.ResultEndOfInput:
			return nil
		default:
			return &Error{
				Code:    ErrCodeProtocolViolation,
				Message: fmt.Sprintf("extractor returned unknown read result %d", result),
			}
		}
	}
}

// isOnDemand classifies the stream for fault recovery. A bounded
// length or an already-reported seek map with a finite duration means
// resumption mid-stream is deterministic.
func isOnDemand(in extractor.Input, out *fakes.Output) bool {
	if in.Length() != extractor.LengthUnset {
		return true
	}
	return out.SeekMap != nil && out.SeekMap.DurationUs() != extractor.TimeUnset
}

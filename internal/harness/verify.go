package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/exconform/internal/dump"
	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/fakes"
)

// Verifier runs the golden-comparison protocol against a dump store.
// Store must be set; Logger may be left nil, in which case logging is
// discarded.
type Verifier struct {
	Store  *dump.Store
	Logger *slog.Logger
}

// NewVerifier returns a verifier over the given dump store with
// logging discarded.
func NewVerifier(store *dump.Store) *Verifier {
	return &Verifier{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// VerifyOutput runs the full golden protocol for one matrix cell:
// sniff (must detect), rewind the peek cursor, consume to the end with
// retry-from-start enabled, compare against the selected dump, then
// for seekable outputs re-extract from four seek-probe targets and
// compare each fragment against its variant dump.
//
// The returned recording is the state after the last comparison; on
// error it may be partial.
func (v *Verifier) VerifyOutput(ex extractor.Extractor, sample string, data []byte, cfg Config) (*fakes.Output, error) {
	return runProtocol(ex, sample, data, cfg, v.Store.Exists, v.compare)
}

// RunMatrix executes VerifyOutput once per simulation config with a
// fresh extractor and input per cell. Every cell is attempted; a
// failure in one never skips the rest.
func (v *Verifier) RunMatrix(factory extractor.Factory, sample string, data []byte) []CellResult {
	results := make([]CellResult, 0, 8)
	for _, cfg := range AllConfigs() {
		_, err := v.VerifyOutput(factory(), sample, data, cfg)
		v.logger().Info("matrix cell finished",
			"sample", sample,
			"config", cfg.Name(),
			"pass", err == nil,
		)
		results = append(results, CellResult{Config: cfg, Err: err})
	}
	return results
}

// VerifyFailure runs the failure-path protocol for one cell: the
// consumption chain must raise an error matching expected (per
// errors.Is) before reaching the end of input. Retry-from-start is
// enabled, matching the success path. No dump store is involved.
func VerifyFailure(ex extractor.Extractor, data []byte, expected error, cfg Config) error {
	in := fakes.NewInput(data, cfg.inputOptions())
	_, err := ConsumeNew(ex, in, 0, true)
	return checkExpectedFailure(err, expected)
}

// RunFailureMatrix executes VerifyFailure once per simulation config.
func (v *Verifier) RunFailureMatrix(factory extractor.Factory, data []byte, expected error) []CellResult {
	results := make([]CellResult, 0, 8)
	for _, cfg := range AllConfigs() {
		err := VerifyFailure(factory(), data, expected, cfg)
		results = append(results, CellResult{Config: cfg, Err: err})
	}
	return results
}

func checkExpectedFailure(err, expected error) error {
	if err == nil {
		return &Error{
			Code:    ErrCodeExpectedFailureNotRaised,
			Message: fmt.Sprintf("expected %v but extraction completed", expected),
		}
	}
	if errors.Is(err, expected) {
		return nil
	}
	return &Error{
		Code:    ErrCodeWrongFailureKind,
		Message: "extraction failed with the wrong error kind",
		Detail: map[string]string{
			"want": expected.Error(),
			"got":  err.Error(),
		},
	}
}

// RecordGolden regenerates the golden dumps for a sample: variants
// 0..3 from an unsimulated run, plus the unknown-length variant when
// simulating an unknown length produces different output. Fresh
// extractors are used for each pass.
func (v *Verifier) RecordGolden(factory extractor.Factory, sample string, data []byte) error {
	var baseline []byte
	record := func(name string, rec *dump.Recording) error {
		encoded, err := dump.Encode(rec)
		if err != nil {
			return fmt.Errorf("failed to encode dump %s: %w", name, err)
		}
		if name == dump.Variant(sample, 0) {
			baseline = encoded
		}
		return v.Store.Write(name, encoded)
	}
	if _, err := runProtocol(factory(), sample, data, Config{}, func(string) bool { return false }, record); err != nil {
		return err
	}

	// The unknown-length dump is only kept when it actually differs
	// from the full-run reference.
	unklenCfg := Config{SimulateUnknownLength: true}
	var unklen []byte
	captureFull := func(name string, rec *dump.Recording) error {
		if name != dump.Variant(sample, 0) {
			return nil
		}
		encoded, err := dump.Encode(rec)
		if err != nil {
			return err
		}
		unklen = encoded
		return nil
	}
	if _, err := runProtocol(factory(), sample, data, unklenCfg, func(string) bool { return false }, captureFull); err != nil {
		return err
	}
	if unklen != nil && !bytes.Equal(unklen, baseline) {
		return v.Store.Write(dump.UnknownLength(sample), unklen)
	}
	return nil
}

// runProtocol is the shared driving sequence behind both the
// error-returning and the testing.T golden paths. compare is invoked
// with the dump base name and the recording snapshot after the full
// run and after each seek probe; exists reports whether a dump variant
// is available, which decides unknown-length dump selection.
func runProtocol(ex extractor.Extractor, sample string, data []byte, cfg Config,
	exists func(name string) bool, compare func(name string, rec *dump.Recording) error) (*fakes.Output, error) {

	in := fakes.NewInput(data, cfg.inputOptions())

	ok, err := SniffUntilDetected(ex, in)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newSniffRejected(sample)
	}
	in.ResetPeekPosition()

	out, err := ConsumeNew(ex, in, 0, true)
	if err != nil {
		return out, err
	}

	name := dump.Variant(sample, 0)
	if cfg.SimulateUnknownLength && exists(dump.UnknownLength(sample)) {
		name = dump.UnknownLength(sample)
	}
	if err := compare(name, dump.Snapshot(out)); err != nil {
		return out, err
	}

	if out.SeekMap != nil && out.SeekMap.IsSeekable() {
		durationUs := out.SeekMap.DurationUs()
		for j := 0; j < 4; j++ {
			timeUs := durationUs * int64(j) / 3
			position := out.SeekMap.PositionFor(timeUs)
			in.SetPosition(position)
			out.ClearTrackData()
			// Probe runs are on-demand by construction and must not
			// restart from zero.
			if err := Consume(ex, in, timeUs, out, false); err != nil {
				return out, err
			}
			if err := compare(dump.Variant(sample, j), dump.Snapshot(out)); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// compare checks a recording against the stored dump, reporting the
// first divergence on mismatch.
func (v *Verifier) compare(name string, rec *dump.Recording) error {
	encoded, err := dump.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	if !v.Store.Exists(name) {
		return &Error{
			Code:    ErrCodeGoldenMismatch,
			Message: "golden dump does not exist (run with update to record it)",
			Variant: name,
		}
	}
	want, err := v.Store.Load(name)
	if err != nil {
		return err
	}
	if bytes.Equal(encoded, want) {
		return nil
	}
	return &Error{
		Code:    ErrCodeGoldenMismatch,
		Message: "recorded output differs from golden dump",
		Variant: name,
		Detail:  map[string]string{"diff": diffDumps(want, encoded)},
	}
}

// diffDumps renders the first divergence between two encoded dumps.
// Both sides are canonical JSON, so a structural diff names the exact
// field that differs.
func diffDumps(want, got []byte) string {
	wantRec, errW := dump.Decode(want)
	gotRec, errG := dump.Decode(got)
	if errW != nil || errG != nil {
		return fmt.Sprintf("want %q, got %q", want, got)
	}
	return cmp.Diff(wantRec, gotRec)
}

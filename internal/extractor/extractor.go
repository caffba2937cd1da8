// Package extractor defines the capability interfaces a streaming
// binary-format parser must expose to be driven by the conformance
// harness.
//
// An extractor is a pull parser: the harness hands it an Input with a
// byte cursor, the extractor consumes bytes and reports structured
// samples to an Output it was initialized with. Control returns to the
// harness after every logical step via the ReadResult of Read.
package extractor

import "math"

// ReadResult is the outcome of a single Read invocation.
type ReadResult int

const (
	// ResultContinue indicates the extractor made progress and should
	// be invoked again.
	ResultContinue ReadResult = iota

	// ResultSeek indicates the extractor needs the input repositioned
	// to PositionHolder.Position before the next Read.
	ResultSeek

	// ResultEndOfInput indicates the extractor consumed the whole
	// input.
	ResultEndOfInput
)

const (
	// LengthUnset is reported by Input.Length when the total input
	// length is unknown.
	LengthUnset int64 = -1

	// TimeUnset is reported by SeekMap.DurationUs when the stream
	// duration is unknown.
	TimeUnset int64 = -1

	// SeekPositionUnset is the sentinel the harness arms the seek slot
	// with before every Read. An extractor must overwrite it before
	// returning ResultSeek, and must never read the slot.
	SeekPositionUnset int64 = math.MinInt64

	// MaxSeekPosition is the largest byte position an extractor may
	// request via ResultSeek.
	MaxSeekPosition int64 = math.MaxInt32
)

// PositionHolder is the single mutable slot an extractor writes a
// requested byte position into when Read returns ResultSeek.
type PositionHolder struct {
	Position int64
}

// Input is the data source an extractor reads from. Transient faults
// are reported as errors matching the fault sentinel of the concrete
// implementation; the harness retries them, the extractor must simply
// propagate them.
type Input interface {
	// Read reads up to len(p) bytes, advancing the read cursor.
	// Returns (0, io.EOF) at end of input. Reads may be partial.
	Read(p []byte) (int, error)

	// ReadFully fills p completely or fails without consuming
	// anything: io.EOF if the cursor is already at the end,
	// io.ErrUnexpectedEOF if fewer than len(p) bytes remain.
	ReadFully(p []byte) error

	// PeekFully fills p from the peek cursor without advancing the
	// read cursor. Same EOF taxonomy as ReadFully.
	PeekFully(p []byte) error

	// SkipFully advances the read cursor by n bytes or fails like
	// ReadFully.
	SkipFully(n int64) error

	// Position returns the current read cursor.
	Position() int64

	// Length returns the total input length, or LengthUnset if
	// unknown.
	Length() int64

	// SetPosition moves both cursors to pos.
	SetPosition(pos int64)

	// ResetPeekPosition moves the peek cursor back to the read cursor.
	ResetPeekPosition()
}

// SeekMap maps presentation timestamps to byte positions. Immutable
// once handed to an Output.
type SeekMap interface {
	// IsSeekable reports whether the time-to-position mapping is
	// defined.
	IsSeekable() bool

	// DurationUs returns the stream duration in microseconds, or
	// TimeUnset.
	DurationUs() int64

	// PositionFor resolves a byte position to resume extraction from
	// for the given time. Must be deterministic and monotonic
	// non-decreasing in timeUs.
	PositionFor(timeUs int64) int64
}

// TrackOutput receives the samples of a single track.
type TrackOutput interface {
	// SetFormat declares the track format. May be called more than
	// once; the last call wins.
	SetFormat(f Format)

	// WriteSampleData appends raw sample bytes to the pending buffer.
	WriteSampleData(p []byte)

	// CommitSample emits a sample of size bytes ending offset bytes
	// before the end of the pending buffer.
	CommitSample(timeUs int64, flags SampleFlags, size, offset int)
}

// Output is the sink an extractor reports tracks, samples and its seek
// map to.
type Output interface {
	// Track returns the output for the given track id, creating it on
	// first use. Ids are small non-negative integers assigned by the
	// extractor at init time.
	Track(id int) TrackOutput

	// EndTracks signals that no further tracks will be created.
	EndTracks()

	// SetSeekMap hands over the stream's seek map.
	SetSeekMap(sm SeekMap)
}

// SampleFlags carries per-sample flag bits.
type SampleFlags uint32

const (
	// FlagKeyFrame marks a random-access sample.
	FlagKeyFrame SampleFlags = 1 << iota
	// FlagEncrypted marks an encrypted sample.
	FlagEncrypted
)

// Format describes a track. Only fields meaningful to the format need
// to be set; zero values are omitted from dumps.
type Format struct {
	ID           string
	MimeType     string
	SampleRate   int
	ChannelCount int
	Width        int
	Height       int
	DurationUs   int64
	InitData     []byte
}

// Extractor is the parser under test.
type Extractor interface {
	// Sniff peeks at the input and reports whether it recognizes the
	// format. Must not advance the read cursor.
	Sniff(in Input) (bool, error)

	// Init hands the extractor the output it reports to. Called once
	// per instance, before the first Read.
	Init(out Output)

	// Seek notifies the extractor that the input cursor moved to
	// position and that extraction should continue from timeUs.
	Seek(position, timeUs int64)

	// Read consumes input and returns what the harness should do
	// next. On ResultSeek the extractor must have written the target
	// position into seekPosition.
	Read(in Input, seekPosition *PositionHolder) (ReadResult, error)
}

// Factory creates fresh Extractor instances. The fault matrix requires
// a pristine parser per cell.
type Factory func() Extractor

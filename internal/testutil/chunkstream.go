package testutil

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/roach88/exconform/internal/extractor"
)

// The chunk-stream format is a minimal container used to exercise the
// harness: a fixed header followed by equally sized, equally timed
// payload chunks.
//
//	bytes 0..3   magic "CHNK"
//	byte  4      flags (bit 0: stream advertises seekability)
//	bytes 5..6   chunk count, big endian
//	bytes 7..8   chunk payload size, big endian
//	bytes 9..12  per-chunk duration in microseconds, big endian
//	bytes 13..   count * size payload bytes
const (
	chunkStreamMagic = "CHNK"
	chunkHeaderLen   = 13
)

// ErrCorruptChunk is raised by a corrupt-configured extractor when it
// reaches the poisoned chunk. Used to exercise the failure-path
// protocol.
var ErrCorruptChunk = errors.New("chunkstream: corrupt chunk")

// ErrTruncatedChunk is raised when the input ends mid-chunk.
var ErrTruncatedChunk = errors.New("chunkstream: truncated chunk")

// ChunkStreamSpec describes a chunk stream to build.
type ChunkStreamSpec struct {
	Seekable        bool
	ChunkCount      int
	ChunkSize       int
	ChunkDurationUs int64
	Seed            int64
}

// BuildChunkStream builds the byte form of a chunk stream with
// seed-deterministic payloads.
func BuildChunkStream(spec ChunkStreamSpec) []byte {
	header := make([]byte, chunkHeaderLen)
	copy(header, chunkStreamMagic)
	if spec.Seekable {
		header[4] = 1
	}
	binary.BigEndian.PutUint16(header[5:], uint16(spec.ChunkCount))
	binary.BigEndian.PutUint16(header[7:], uint16(spec.ChunkSize))
	binary.BigEndian.PutUint32(header[9:], uint32(spec.ChunkDurationUs))
	payload := BuildTestDataSeeded(spec.ChunkCount*spec.ChunkSize, spec.Seed)
	return JoinByteArrays(header, payload)
}

// ChunkStreamExtractor is a reference extractor over the chunk-stream
// format. It is deliberately position-driven so that restarting from
// byte zero after a fault re-derives all state, and it reads payloads
// with plain Read calls so partial-read simulation is exercised.
type ChunkStreamExtractor struct {
	out   extractor.Output
	track extractor.TrackOutput

	chunkCount      int
	chunkSize       int
	chunkDurationUs int64

	cur     int
	pending []byte

	corruptAt int

	// SeekCalls records every Seek invocation as (position, timeUs),
	// letting tests observe restart behavior.
	SeekCalls [][2]int64
}

// NewChunkStreamExtractor returns a well-behaved extractor instance.
func NewChunkStreamExtractor() *ChunkStreamExtractor {
	return &ChunkStreamExtractor{corruptAt: -1}
}

// NewCorruptChunkStreamExtractor returns an extractor that raises
// ErrCorruptChunk when it completes the given chunk index.
func NewCorruptChunkStreamExtractor(chunk int) *ChunkStreamExtractor {
	return &ChunkStreamExtractor{corruptAt: chunk}
}

// Sniff implements extractor.Extractor.
func (e *ChunkStreamExtractor) Sniff(in extractor.Input) (bool, error) {
	magic := make([]byte, len(chunkStreamMagic))
	if err := in.PeekFully(magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(magic) == chunkStreamMagic, nil
}

// Init implements extractor.Extractor.
func (e *ChunkStreamExtractor) Init(out extractor.Output) {
	e.out = out
}

// Seek implements extractor.Extractor. All chunk state derives from
// the byte position, so a seek just realigns the chunk cursor and
// drops any partially buffered payload.
func (e *ChunkStreamExtractor) Seek(position, timeUs int64) {
	e.SeekCalls = append(e.SeekCalls, [2]int64{position, timeUs})
	e.pending = e.pending[:0]
	if position < chunkHeaderLen || e.chunkSize == 0 {
		e.cur = 0
		return
	}
	e.cur = int((position - chunkHeaderLen) / int64(e.chunkSize))
}

// Read implements extractor.Extractor.
func (e *ChunkStreamExtractor) Read(in extractor.Input, seekPosition *extractor.PositionHolder) (extractor.ReadResult, error) {
	if in.Position() < chunkHeaderLen {
		return e.readHeader(in)
	}
	return e.readChunk(in)
}

func (e *ChunkStreamExtractor) readHeader(in extractor.Input) (extractor.ReadResult, error) {
	header := make([]byte, chunkHeaderLen)
	if err := in.ReadFully(header); err != nil {
		return 0, err
	}
	e.chunkCount = int(binary.BigEndian.Uint16(header[5:]))
	e.chunkSize = int(binary.BigEndian.Uint16(header[7:]))
	e.chunkDurationUs = int64(binary.BigEndian.Uint32(header[9:]))
	e.cur = 0
	e.pending = e.pending[:0]

	// Seekability needs a bounded input: with an unknown length the
	// stream presents as live, with an unset duration.
	bounded := in.Length() != extractor.LengthUnset
	durationUs := extractor.TimeUnset
	if bounded {
		durationUs = int64(e.chunkCount) * e.chunkDurationUs
	}

	e.track = e.out.Track(0)
	e.track.SetFormat(extractor.Format{
		ID:         "0",
		MimeType:   "application/x-chunkstream",
		DurationUs: durationUs,
	})
	e.out.EndTracks()
	e.out.SetSeekMap(&chunkSeekMap{
		seekable:        header[4]&1 != 0 && bounded,
		durationUs:      durationUs,
		chunkSize:       e.chunkSize,
		chunkDurationUs: e.chunkDurationUs,
		chunkCount:      e.chunkCount,
	})
	return extractor.ResultContinue, nil
}

func (e *ChunkStreamExtractor) readChunk(in extractor.Input) (extractor.ReadResult, error) {
	if e.cur >= e.chunkCount {
		return extractor.ResultEndOfInput, nil
	}
	buf := make([]byte, e.chunkSize-len(e.pending))
	n, err := in.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrTruncatedChunk
		}
		return 0, err
	}
	e.pending = append(e.pending, buf[:n]...)
	if len(e.pending) < e.chunkSize {
		return extractor.ResultContinue, nil
	}
	if e.cur == e.corruptAt {
		return 0, ErrCorruptChunk
	}
	e.track.WriteSampleData(e.pending)
	e.track.CommitSample(int64(e.cur)*e.chunkDurationUs, extractor.FlagKeyFrame, e.chunkSize, 0)
	e.pending = e.pending[:0]
	e.cur++
	return extractor.ResultContinue, nil
}

// chunkSeekMap maps times to chunk-aligned byte positions.
type chunkSeekMap struct {
	seekable        bool
	durationUs      int64
	chunkSize       int
	chunkDurationUs int64
	chunkCount      int
}

func (m *chunkSeekMap) IsSeekable() bool { return m.seekable }

func (m *chunkSeekMap) DurationUs() int64 { return m.durationUs }

func (m *chunkSeekMap) PositionFor(timeUs int64) int64 {
	if m.chunkDurationUs <= 0 || m.chunkCount == 0 {
		return chunkHeaderLen
	}
	i := timeUs / m.chunkDurationUs
	if i >= int64(m.chunkCount) {
		i = int64(m.chunkCount) - 1
	}
	if i < 0 {
		i = 0
	}
	return chunkHeaderLen + i*int64(m.chunkSize)
}

package fakes

import "github.com/roach88/exconform/internal/extractor"

// Sample is one recorded media sample.
type Sample struct {
	TimeUs int64
	Flags  extractor.SampleFlags
	Data   []byte
}

// TrackOutput records everything an extractor reports for one track.
// Its identity is stable for the lifetime of a test; Clear drops the
// recorded contents only.
type TrackOutput struct {
	id        int
	format    extractor.Format
	hasFormat bool
	buffer    []byte
	samples   []Sample
}

// SetFormat implements extractor.TrackOutput.
func (t *TrackOutput) SetFormat(f extractor.Format) {
	t.format = f
	t.hasFormat = true
}

// WriteSampleData implements extractor.TrackOutput.
func (t *TrackOutput) WriteSampleData(p []byte) {
	t.buffer = append(t.buffer, p...)
}

// CommitSample implements extractor.TrackOutput. The sample is the
// size bytes ending offset bytes before the end of the buffered data.
func (t *TrackOutput) CommitSample(timeUs int64, flags extractor.SampleFlags, size, offset int) {
	end := len(t.buffer) - offset
	data := make([]byte, size)
	copy(data, t.buffer[end-size:end])
	t.samples = append(t.samples, Sample{TimeUs: timeUs, Flags: flags, Data: data})
}

// Clear discards the buffered data and recorded samples. The track
// identity and its format survive: the full-run recording and the
// first seek-probe recording share a golden dump, so clearing must not
// erase state a probe run cannot re-derive.
func (t *TrackOutput) Clear() {
	t.buffer = nil
	t.samples = nil
}

// ID returns the extractor-assigned track id.
func (t *TrackOutput) ID() int { return t.id }

// Format returns the recorded format, if one was set.
func (t *TrackOutput) Format() (extractor.Format, bool) {
	return t.format, t.hasFormat
}

// Samples returns the recorded samples in commit order.
func (t *TrackOutput) Samples() []Sample { return t.samples }

// Output records the complete observable behavior of one extractor
// run: which tracks it created (insertion order preserved), the
// samples it emitted, and its seek map.
type Output struct {
	tracks      map[int]*TrackOutput
	order       []int
	TracksEnded bool
	SeekMap     extractor.SeekMap
}

// NewOutput returns an empty recorder.
func NewOutput() *Output {
	return &Output{tracks: make(map[int]*TrackOutput)}
}

// Track implements extractor.Output. The first call for an id creates
// the sink; later calls return the same instance.
func (o *Output) Track(id int) extractor.TrackOutput {
	t, ok := o.tracks[id]
	if !ok {
		t = &TrackOutput{id: id}
		o.tracks[id] = t
		o.order = append(o.order, id)
	}
	return t
}

// EndTracks implements extractor.Output.
func (o *Output) EndTracks() { o.TracksEnded = true }

// SetSeekMap implements extractor.Output.
func (o *Output) SetSeekMap(sm extractor.SeekMap) { o.SeekMap = sm }

// TrackCount returns the number of tracks created so far.
func (o *Output) TrackCount() int { return len(o.order) }

// TrackByIndex returns the i-th track in first-seen order.
func (o *Output) TrackByIndex(i int) *TrackOutput {
	return o.tracks[o.order[i]]
}

// TrackIDs returns the track ids in first-seen order.
func (o *Output) TrackIDs() []int {
	ids := make([]int, len(o.order))
	copy(ids, o.order)
	return ids
}

// ClearTrackData clears the contents of every track sink. Track
// identities and the seek map are untouched. Used when a run restarts
// from byte 0 or before each seek probe.
func (o *Output) ClearTrackData() {
	for _, id := range o.order {
		o.tracks[id].Clear()
	}
}

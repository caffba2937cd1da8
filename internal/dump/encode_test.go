package dump

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/fakes"
)

type staticSeekMap struct {
	seekable   bool
	durationUs int64
}

func (m staticSeekMap) IsSeekable() bool { return m.seekable }

func (m staticSeekMap) DurationUs() int64 { return m.durationUs }

func (m staticSeekMap) PositionFor(timeUs int64) int64 { return 0 }

func recordedOutput(t *testing.T) *fakes.Output {
	t.Helper()
	out := fakes.NewOutput()
	track := out.Track(0).(*fakes.TrackOutput)
	track.SetFormat(extractor.Format{ID: "0", MimeType: "application/x-test", DurationUs: 3000})
	track.WriteSampleData([]byte{1, 2, 3})
	track.CommitSample(0, extractor.FlagKeyFrame, 3, 0)
	out.EndTracks()
	out.SetSeekMap(staticSeekMap{seekable: true, durationUs: 3000})
	return out
}

func TestSnapshot(t *testing.T) {
	rec := Snapshot(recordedOutput(t))

	require.NotNil(t, rec.SeekMap)
	assert.True(t, rec.SeekMap.Seekable)
	assert.Equal(t, int64(3000), rec.SeekMap.DurationUs)
	assert.True(t, rec.TracksEnded)

	require.Len(t, rec.Tracks, 1)
	track := rec.Tracks[0]
	require.NotNil(t, track.Format)
	assert.Equal(t, "application/x-test", track.Format.MimeType)

	require.Len(t, track.Samples, 1)
	sum := sha256.Sum256([]byte{1, 2, 3})
	assert.Equal(t, hex.EncodeToString(sum[:]), track.Samples[0].SHA256)
	assert.Equal(t, 3, track.Samples[0].Size)
}

func TestEncode_Deterministic(t *testing.T) {
	rec := Snapshot(recordedOutput(t))

	first, err := Encode(rec)
	require.NoError(t, err)
	second, err := Encode(Snapshot(recordedOutput(t)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncode_SortsObjectKeys(t *testing.T) {
	encoded, err := Encode(Snapshot(recordedOutput(t)))
	require.NoError(t, err)

	s := string(encoded)
	assert.Less(t, strings.Index(s, `"seekMap"`), strings.Index(s, `"tracks"`))
	assert.Less(t, strings.Index(s, `"tracks"`), strings.Index(s, `"tracksEnded"`))
}

func TestEncode_NFCNormalizesStrings(t *testing.T) {
	// "é" decomposed (e + combining acute) and precomposed must yield
	// identical dump bytes.
	decomposed := fakes.NewOutput()
	track := decomposed.Track(0).(*fakes.TrackOutput)
	track.SetFormat(extractor.Format{ID: "café"})

	precomposed := fakes.NewOutput()
	track = precomposed.Track(0).(*fakes.TrackOutput)
	track.SetFormat(extractor.Format{ID: "café"})

	a, err := Encode(Snapshot(decomposed))
	require.NoError(t, err)
	b, err := Encode(Snapshot(precomposed))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_RoundTrip(t *testing.T) {
	rec := Snapshot(recordedOutput(t))
	encoded, err := Encode(rec)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestEncode_EmptyRecording(t *testing.T) {
	encoded, err := Encode(Snapshot(fakes.NewOutput()))
	require.NoError(t, err)
	assert.Equal(t, `{"tracks":[],"tracksEnded":false}`, string(encoded))
}

package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exconform/internal/dump"
	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/testutil"
)

var chunkFactory extractor.Factory = func() extractor.Extractor {
	return testutil.NewChunkStreamExtractor()
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	return NewVerifier(&dump.Store{Dir: t.TempDir()})
}

func seekableStream(seed int64) []byte {
	return testutil.BuildChunkStream(testutil.ChunkStreamSpec{
		Seekable: true, ChunkCount: 6, ChunkSize: 12, ChunkDurationUs: 1000, Seed: seed,
	})
}

func TestRecordGolden_WritesVariantsAndUnknownLength(t *testing.T) {
	v := newTestVerifier(t)
	require.NoError(t, v.RecordGolden(chunkFactory, "stream.cs", seekableStream(10)))

	for j := 0; j < 4; j++ {
		assert.True(t, v.Store.Exists(dump.Variant("stream.cs", j)), "variant %d", j)
	}

	// The stream presents as live under an unknown length (no duration,
	// not seekable), so the unknown-length dump must differ and be kept.
	assert.True(t, v.Store.Exists(dump.UnknownLength("stream.cs")))
}

func TestRecordGolden_NonSeekableStreamWritesSingleVariant(t *testing.T) {
	v := newTestVerifier(t)
	data := testutil.BuildChunkStream(testutil.ChunkStreamSpec{
		Seekable: false, ChunkCount: 3, ChunkSize: 8, ChunkDurationUs: 1000, Seed: 11,
	})
	require.NoError(t, v.RecordGolden(chunkFactory, "live.cs", data))

	assert.True(t, v.Store.Exists(dump.Variant("live.cs", 0)))
	assert.False(t, v.Store.Exists(dump.Variant("live.cs", 1)))
}

func TestRunMatrix_AllCellsPass(t *testing.T) {
	v := newTestVerifier(t)
	data := seekableStream(12)
	require.NoError(t, v.RecordGolden(chunkFactory, "stream.cs", data))

	results := v.RunMatrix(chunkFactory, "stream.cs", data)
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Config.Name())
	}
}

func TestRunMatrix_LiteralVerifierWithoutLogger(t *testing.T) {
	v := &Verifier{Store: &dump.Store{Dir: t.TempDir()}}
	data := seekableStream(19)
	require.NoError(t, v.RecordGolden(chunkFactory, "stream.cs", data))

	results := v.RunMatrix(chunkFactory, "stream.cs", data)
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Config.Name())
	}
}

func TestRunMatrix_AttemptsEveryCellOnFailure(t *testing.T) {
	v := newTestVerifier(t)
	// No goldens recorded: every cell must still run and report a
	// mismatch rather than the first failure aborting the matrix.
	results := v.RunMatrix(chunkFactory, "stream.cs", seekableStream(13))
	require.Len(t, results, 8)
	for _, r := range results {
		assert.True(t, IsGoldenMismatch(r.Err), r.Config.Name())
	}
}

func TestVerifyOutput_ReportsFirstDivergence(t *testing.T) {
	v := newTestVerifier(t)
	require.NoError(t, v.RecordGolden(chunkFactory, "stream.cs", seekableStream(14)))

	// Same shape, different payload bytes.
	_, err := v.VerifyOutput(chunkFactory(), "stream.cs", seekableStream(15), Config{})
	require.Error(t, err)
	assert.True(t, IsGoldenMismatch(err))

	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, dump.Variant("stream.cs", 0), he.Variant)
	assert.NotEmpty(t, he.Detail["diff"])
}

func TestVerifyOutput_SniffRejection(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.VerifyOutput(chunkFactory(), "noise.bin", []byte("definitely not chunked"), Config{})
	require.Error(t, err)
	assert.True(t, IsSniffRejected(err))

	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "noise.bin", he.Sample)
}

func TestCheckExpectedFailure(t *testing.T) {
	t.Run("not raised", func(t *testing.T) {
		err := checkExpectedFailure(nil, testutil.ErrCorruptChunk)
		var he *Error
		require.ErrorAs(t, err, &he)
		assert.Equal(t, ErrCodeExpectedFailureNotRaised, he.Code)
	})

	t.Run("matching kind", func(t *testing.T) {
		assert.NoError(t, checkExpectedFailure(testutil.ErrCorruptChunk, testutil.ErrCorruptChunk))
	})

	t.Run("matching wrapped kind", func(t *testing.T) {
		wrapped := errors.Join(errors.New("while reading chunk 2"), testutil.ErrCorruptChunk)
		assert.NoError(t, checkExpectedFailure(wrapped, testutil.ErrCorruptChunk))
	})

	t.Run("wrong kind", func(t *testing.T) {
		err := checkExpectedFailure(testutil.ErrTruncatedChunk, testutil.ErrCorruptChunk)
		var he *Error
		require.ErrorAs(t, err, &he)
		assert.Equal(t, ErrCodeWrongFailureKind, he.Code)
		assert.Equal(t, testutil.ErrCorruptChunk.Error(), he.Detail["want"])
		assert.Equal(t, testutil.ErrTruncatedChunk.Error(), he.Detail["got"])
	})
}

func TestVerifyFailure_CompletionIsAFailure(t *testing.T) {
	err := VerifyFailure(chunkFactory(), seekableStream(16), testutil.ErrCorruptChunk, Config{})
	var he *Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, ErrCodeExpectedFailureNotRaised, he.Code)
}

func TestRunFailureMatrix_CorruptStream(t *testing.T) {
	v := newTestVerifier(t)
	corrupt := extractor.Factory(func() extractor.Extractor {
		return testutil.NewCorruptChunkStreamExtractor(1)
	})

	results := v.RunFailureMatrix(corrupt, seekableStream(17), testutil.ErrCorruptChunk)
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Config.Name())
	}
}

func TestRunFailureMatrix_TruncatedStream(t *testing.T) {
	v := newTestVerifier(t)
	data := seekableStream(18)
	truncated := data[:len(data)-5]

	results := v.RunFailureMatrix(chunkFactory, truncated, testutil.ErrTruncatedChunk)
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Config.Name())
	}
}

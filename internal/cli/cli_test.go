package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/testutil"
)

func init() {
	extractor.Register("clitest-chunkstream", func() extractor.Extractor {
		return testutil.NewChunkStreamExtractor()
	})
	extractor.RegisterFailureKind("clitest-truncated", testutil.ErrTruncatedChunk)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeSuite lays out a runnable suite fixture: a manifest, a samples
// directory with one good and one truncated chunk stream, and an empty
// dumps directory.
func writeSuite(t *testing.T) (suitePath, samplesDir, dumpsDir string) {
	t.Helper()
	root := t.TempDir()
	samplesDir = filepath.Join(root, "samples")
	dumpsDir = filepath.Join(root, "dumps")
	require.NoError(t, os.MkdirAll(samplesDir, 0o755))
	require.NoError(t, os.MkdirAll(dumpsDir, 0o755))

	data := testutil.BuildChunkStream(testutil.ChunkStreamSpec{
		Seekable: true, ChunkCount: 4, ChunkSize: 8, ChunkDurationUs: 1000, Seed: 30,
	})
	require.NoError(t, os.WriteFile(filepath.Join(samplesDir, "bear.cs"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(samplesDir, "truncated.cs"), data[:len(data)-3], 0o644))

	manifest := `
name: clitest
extractor: clitest-chunkstream
samples:
  - file: bear.cs
  - file: truncated.cs
    expect_error: clitest-truncated
`
	suitePath = filepath.Join(root, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(manifest), 0o644))
	return suitePath, samplesDir, dumpsDir
}

func TestValidateCommand(t *testing.T) {
	suitePath, _, _ := writeSuite(t)

	out, _, err := execute(t, "validate", suitePath)
	require.NoError(t, err)
	assert.Contains(t, out, `suite "clitest" is valid (2 samples)`)
}

func TestValidateCommand_InvalidManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nsamples: []\n"), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error:")
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	suitePath, _, _ := writeSuite(t)
	_, _, err := execute(t, "--format", "xml", "validate", suitePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRunCommand_UpdateThenRun(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)

	_, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir, "--update")
	require.NoError(t, err)

	entries, err := os.ReadDir(dumpsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	out, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "suite clitest")
	assert.Contains(t, out, "bear.cs: 8/8 cells passed")
	assert.Contains(t, out, "truncated.cs: 8/8 cells passed")
}

func TestRunCommand_MissingDumpsFail(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)

	out, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "GOLDEN_MISMATCH")
}

func TestRunCommand_JSONOutput(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)
	_, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir, "--update")
	require.NoError(t, err)

	out, _, err := execute(t, "--format", "json", "run", suitePath, samplesDir, dumpsDir)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	samples, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, samples, 2)
}

func TestRunCommand_UnregisteredExtractor(t *testing.T) {
	root := t.TempDir()
	suitePath := filepath.Join(root, "suite.yaml")
	manifest := "name: s\nextractor: no-such-extractor\nsamples:\n  - file: a.cs\n"
	require.NoError(t, os.WriteFile(suitePath, []byte(manifest), 0o644))

	_, _, err := execute(t, "run", suitePath, root, root)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_RecordsReport(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)
	_, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir, "--update")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "results.db")
	_, _, err = execute(t, "run", suitePath, samplesDir, dumpsDir, "--report", dbPath)
	require.NoError(t, err)

	out, _, err := execute(t, "report", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "clitest/bear.cs")
	assert.Contains(t, out, "8/8 cells passed")
}

func TestReportCommand_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	out, _, err := execute(t, "report", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestReportCommand_Limit(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)
	_, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir, "--update")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "results.db")
	_, _, err = execute(t, "run", suitePath, samplesDir, dumpsDir, "--report", dbPath)
	require.NoError(t, err)

	out, _, err := execute(t, "--format", "json", "report", dbPath, "--limit", "1")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	runs, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, runs, 1)
}

func TestRunCommand_VerboseLogsToStderr(t *testing.T) {
	suitePath, samplesDir, dumpsDir := writeSuite(t)
	_, _, err := execute(t, "run", suitePath, samplesDir, dumpsDir, "--update")
	require.NoError(t, err)

	out, errOut, err := execute(t, "--format", "json", "-v", "run", suitePath, samplesDir, dumpsDir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "running bear.cs")

	// Stdout stays parseable JSON even in verbose mode.
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "m"}))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitFailure,
		GetExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitFailure, Message: "m"})))
}

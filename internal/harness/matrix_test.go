package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllConfigs_CoversEveryCombination(t *testing.T) {
	configs := AllConfigs()
	require.Len(t, configs, 8)

	seen := make(map[Config]bool)
	for _, cfg := range configs {
		seen[cfg] = true
	}
	assert.Len(t, seen, 8)
	assert.True(t, seen[Config{}])
	assert.True(t, seen[Config{SimulateIOErrors: true, SimulateUnknownLength: true, SimulatePartialReads: true}])
}

func TestConfig_NameIsStable(t *testing.T) {
	assert.Equal(t, "ioerr=false,unklen=false,partial=false", Config{}.Name())
	assert.Equal(t, "ioerr=true,unklen=false,partial=true",
		Config{SimulateIOErrors: true, SimulatePartialReads: true}.Name())

	names := make(map[string]bool)
	for _, cfg := range AllConfigs() {
		names[cfg.Name()] = true
	}
	assert.Len(t, names, 8)
}

func TestCellResult_Passed(t *testing.T) {
	assert.True(t, CellResult{}.Passed())
	assert.False(t, CellResult{Err: assert.AnError}.Passed())
}

package harness

import (
	"fmt"

	"github.com/roach88/exconform/internal/fakes"
)

// Config selects which classes of I/O adversity a run injects. The
// three flags are orthogonal; the conformance matrix exercises all
// eight combinations.
type Config struct {
	SimulateIOErrors      bool
	SimulateUnknownLength bool
	SimulatePartialReads  bool
}

// Name returns a stable identifier for the config, used for subtest
// names and report rows.
func (c Config) Name() string {
	return fmt.Sprintf("ioerr=%t,unklen=%t,partial=%t",
		c.SimulateIOErrors, c.SimulateUnknownLength, c.SimulatePartialReads)
}

func (c Config) inputOptions() fakes.InputOptions {
	return fakes.InputOptions{
		SimulateIOErrors:      c.SimulateIOErrors,
		SimulateUnknownLength: c.SimulateUnknownLength,
		SimulatePartialReads:  c.SimulatePartialReads,
	}
}

// AllConfigs enumerates the 2^3 simulation combinations. Generated
// rather than hand-written so the matrix cannot silently lose a cell.
func AllConfigs() []Config {
	configs := make([]Config, 0, 8)
	for bits := 0; bits < 8; bits++ {
		configs = append(configs, Config{
			SimulateIOErrors:      bits&1 != 0,
			SimulateUnknownLength: bits&2 != 0,
			SimulatePartialReads:  bits&4 != 0,
		})
	}
	return configs
}

// CellResult is the outcome of one matrix cell.
type CellResult struct {
	Config Config
	Err    error
}

// Passed reports whether the cell completed without a failure.
func (r CellResult) Passed() bool { return r.Err == nil }

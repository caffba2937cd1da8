package harness

import (
	"flag"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exconform/internal/dump"
	"github.com/roach88/exconform/internal/extractor"
)

// AssertOutput runs the golden-comparison protocol for every
// simulation config, each as an independent subtest so one failing
// cell never masks the remaining seven. Dumps live in dumpDir and are
// compared through goldie, so regeneration follows the usual
// convention:
//
//	go test ./... -update
//
// In update mode the dumps are regenerated through RecordGolden before
// the cells run. Regenerating from individual cells would be wrong for
// length-sensitive samples: without a seeded unknown-length dump those
// cells resolve to the variant-0 name and would overwrite it with the
// live-stream recording. After seeding, every cell resolves to its own
// dump and goldie's rewrites are byte-identical.
//
// A fresh extractor and input are constructed per cell.
func AssertOutput(t *testing.T, factory extractor.Factory, sample string, data []byte, dumpDir string) {
	t.Helper()
	store := &dump.Store{Dir: dumpDir}
	if updateRequested() {
		require.NoError(t, NewVerifier(store).RecordGolden(factory, sample, data))
	}
	for _, cfg := range AllConfigs() {
		t.Run(cfg.Name(), func(t *testing.T) {
			g := goldie.New(t,
				goldie.WithFixtureDir(dumpDir),
				goldie.WithNameSuffix(dump.Extension),
			)
			compare := func(name string, rec *dump.Recording) error {
				encoded, err := dump.Encode(rec)
				if err != nil {
					return err
				}
				g.Assert(t, name, encoded)
				return nil
			}
			_, err := runProtocol(factory(), sample, data, cfg, store.Exists, compare)
			require.NoError(t, err)
		})
	}
}

// updateRequested reports whether goldie's -update flag is set. The
// flag is registered by the goldie package; it is looked up by name
// because goldie does not export its state.
func updateRequested() bool {
	f := flag.Lookup("update")
	return f != nil && f.Value.String() == "true"
}

// AssertFails runs the failure-path protocol for every simulation
// config: each cell must raise an error matching expected before
// reaching the end of input.
func AssertFails(t *testing.T, factory extractor.Factory, data []byte, expected error) {
	t.Helper()
	for _, cfg := range AllConfigs() {
		t.Run(cfg.Name(), func(t *testing.T) {
			require.NoError(t, VerifyFailure(factory(), data, expected, cfg))
		})
	}
}

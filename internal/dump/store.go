package dump

import (
	"fmt"
	"os"
	"path/filepath"
)

// Golden dump files are addressed by a base name — sample plus a
// variant suffix — with Extension appended on disk. Variant 0 doubles
// as the full-run reference; the unknown-length variant is preferred
// when unknown-length simulation is active and the file exists.
const (
	Extension           = ".dump"
	unknownLengthSuffix = ".unklen"
)

// Variant returns the dump base name for seek-probe variant j.
// Variant 0 is also the full-run reference.
func Variant(sample string, j int) string {
	return fmt.Sprintf("%s.%d", sample, j)
}

// UnknownLength returns the dump base name used when the run simulated
// an unknown input length.
func UnknownLength(sample string) string {
	return sample + unknownLengthSuffix
}

// Store reads and writes dump files under a single directory. Names
// are base names; Extension is appended on disk, matching the fixture
// naming the goldie-based test path uses.
type Store struct {
	Dir string
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name+Extension)
}

// Exists reports whether the named dump is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Load returns the bytes of the named dump.
func (s *Store) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to load dump %s: %w", name, err)
	}
	return data, nil
}

// Write records the named dump, creating the directory if needed.
// Used by update mode to regenerate golden files.
func (s *Store) Write(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump dir: %w", err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write dump %s: %w", name, err)
	}
	return nil
}

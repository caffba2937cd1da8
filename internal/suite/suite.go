// Package suite loads conformance suite manifests: which extractor to
// drive, which sample files to run the matrix over, and whether a
// sample is expected to fail.
package suite

import (
	"bytes"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

// schema is the CUE contract every manifest must satisfy, checked
// after the strict YAML decode so schema-level mistakes (wrong types,
// stray fields) are reported with CUE's diagnostics.
const schema = `
name:      string & !=""
extractor: string & !=""
samples: [...{
	file:          string & !=""
	expect_error?: string & !=""
}] & [_, ...]
`

// Sample names one input file of a suite.
type Sample struct {
	// File is the sample path, relative to the samples directory.
	File string `yaml:"file"`

	// ExpectError, when set, switches the sample to the failure-path
	// protocol: every matrix cell must fail with this error kind.
	// Kinds are matched against the registered failure names of the
	// extractor under test.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Manifest is a conformance suite definition.
type Manifest struct {
	// Name identifies the suite in reports.
	Name string `yaml:"name"`

	// Extractor is the registered factory name to drive.
	Extractor string `yaml:"extractor"`

	// Samples lists the inputs to run the full matrix over.
	Samples []Sample `yaml:"samples"`
}

// Load reads, parses and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes manifest bytes. The YAML decode is strict (unknown
// fields are rejected, catching typos), then the manifest is validated
// against the embedded CUE schema.
func Parse(path string, data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse suite manifest: %w", err)
	}
	if err := validateSchema(path, data); err != nil {
		return nil, fmt.Errorf("invalid suite manifest: %w", err)
	}
	return &m, nil
}

// validateSchema unifies the manifest with the CUE schema and requires
// the result to be concrete.
func validateSchema(path string, data []byte) error {
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("yaml extract: %w", err)
	}
	manifestVal := ctx.BuildFile(file)
	if err := manifestVal.Err(); err != nil {
		return fmt.Errorf("manifest build: %w", err)
	}
	unified := schemaVal.Unify(manifestVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

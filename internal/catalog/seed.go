package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Workflows []WorkflowRecord `yaml:"workflows"`
}

// SeedSource serves the catalog bundled into the binary.
type SeedSource struct{}

func (SeedSource) Workflows(_ context.Context) ([]WorkflowRecord, error) {
	return ParseYAML(seedYAML)
}

// FileSource reads a catalog from a YAML file with the same layout as the
// bundled seed.
type FileSource struct {
	Path string
}

func (f FileSource) Workflows(_ context.Context) ([]WorkflowRecord, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a catalog document. Unknown keys are rejected so that a
// typo in a field name does not silently drop data.
func ParseYAML(data []byte) ([]WorkflowRecord, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding catalog yaml: %w", err)
	}
	return f.Workflows, nil
}

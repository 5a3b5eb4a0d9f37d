package fixture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Load reads a fixture from path. Files ending in .cue are evaluated as
// CUE; everything else is parsed as YAML.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var f *File
	switch filepath.Ext(path) {
	case ".cue":
		f, err = ParseCUE(data, path)
	default:
		f, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}
	return f.Build()
}

// ParseYAML decodes a YAML fixture. Unknown keys are rejected.
func ParseYAML(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// ParseCUE evaluates a CUE fixture. The file may use definitions and
// constraints freely; only the concrete tables and records fields are
// decoded.
func ParseCUE(data []byte, filename string) (*File, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating CUE value: %w", err)
	}

	var f File
	for _, part := range []struct {
		path string
		dst  any
	}{
		{"tables", &f.Tables},
		{"records", &f.Records},
	} {
		v := value.LookupPath(cue.ParsePath(part.path))
		if !v.Exists() {
			continue
		}
		if err := v.Decode(part.dst); err != nil {
			return nil, fmt.Errorf("decoding CUE %s: %w", part.path, err)
		}
	}
	return &f, nil
}

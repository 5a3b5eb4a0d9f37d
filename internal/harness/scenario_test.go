package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content next to a copy of the library fixture and
// returns the scenario path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/fixtures/library.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.yaml"), data, 0644))

	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
fixture: library.yaml
seed: 3
assertions:
  - type: row_count
    table: book
    count: 2
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "library.yaml"), scenario.Fixture)
	assert.Equal(t, BackendMemory, scenario.Backend, "backend defaults to memory")
	assert.Equal(t, 1, scenario.Runs, "runs defaults to 1")
	assert.Equal(t, uint64(3), scenario.Seed)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, 2, scenario.Assertions[0].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unclosed")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "assertion instead of assertions"
fixture: library.yaml
assertion:
  - type: row_count
    table: book
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field assertion not found")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
fixture: library.yaml
assertions: [{type: row_count, table: book}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
fixture: library.yaml
assertions: [{type: row_count, table: book}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing fixture",
			content: `
name: n
description: d
assertions: [{type: row_count, table: book}]
`,
			wantErr: "fixture is required",
		},
		{
			name: "fixture not found",
			content: `
name: n
description: d
fixture: nope.yaml
assertions: [{type: row_count, table: book}]
`,
			wantErr: "fixture file not found",
		},
		{
			name: "unknown backend",
			content: `
name: n
description: d
fixture: library.yaml
backend: mongo
assertions: [{type: row_count, table: book}]
`,
			wantErr: `unknown backend "mongo"`,
		},
		{
			name: "negative runs",
			content: `
name: n
description: d
fixture: library.yaml
runs: -1
assertions: [{type: row_count, table: book}]
`,
			wantErr: "runs must be >= 0",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
fixture: library.yaml
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
fixture: library.yaml
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "write_order without tables",
			content: `
name: n
description: d
fixture: library.yaml
assertions: [{type: write_order}]
`,
			wantErr: "tables list is required for write_order",
		},
		{
			name: "final_state without where",
			content: `
name: n
description: d
fixture: library.yaml
assertions: [{type: final_state, table: book}]
`,
			wantErr: "where is required for final_state",
		},
		{
			name: "negative row count",
			content: `
name: n
description: d
fixture: library.yaml
assertions: [{type: row_count, table: book, count: -2}]
`,
			wantErr: "count must be >= 0",
		},
		{
			name: "broken_edge without field",
			content: `
name: n
description: d
fixture: library.yaml
assertions: [{type: broken_edge, record: b/x}]
`,
			wantErr: "record and field are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_ExpectErrorWithoutAssertions(t *testing.T) {
	path := writeScenario(t, `
name: n
description: d
fixture: library.yaml
max_records: 1
expect_error: "record limit"
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Empty(t, scenario.Assertions)
	assert.Equal(t, 1, scenario.MaxRecords)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "write_order", AssertWriteOrder)
	assert.Equal(t, "row_count", AssertRowCount)
	assert.Equal(t, "final_state", AssertFinalState)
	assert.Equal(t, "broken_edge", AssertBrokenEdge)
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backends a scenario can run on.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Scenario defines a fixture scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the YAML or CUE fixture to persist.
	Fixture string `yaml:"fixture"`

	// Backend selects the storage the batch runs against. Defaults to memory.
	Backend string `yaml:"backend,omitempty"`

	// Seed feeds the value generator for fields the fixture leaves unset.
	Seed uint64 `yaml:"seed,omitempty"`

	// Runs is how many times the fixture is persisted. Defaults to 1.
	Runs int `yaml:"runs,omitempty"`

	// MaxRecords caps the batch size. Zero keeps the engine default.
	MaxRecords int `yaml:"max_records,omitempty"`

	// ExpectError, when set, requires a run to fail with an error containing
	// this text. Assertions are then evaluated against the state left behind.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the write trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the write trace or final state.
type Assertion struct {
	// Type is one of write_order, row_count, final_state, broken_edge.
	Type string `yaml:"type"`

	// Tables is the expected table order (write_order).
	Tables []string `yaml:"tables,omitempty"`

	// Table names the table to inspect (row_count, final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects one row; all fields must match (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect lists field values of the selected row; subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Record and Field name the edge left empty (broken_edge). Record is
	// written "table/name".
	Record string `yaml:"record,omitempty"`
	Field  string `yaml:"field,omitempty"`
}

// Assertion type constants.
const (
	AssertWriteOrder = "write_order"
	AssertRowCount   = "row_count"
	AssertFinalState = "final_state"
	AssertBrokenEdge = "broken_edge"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative fixture path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// It fills in the backend and run count defaults.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture)
	}

	switch s.Backend {
	case "":
		s.Backend = BackendMemory
	case BackendMemory, BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if s.Runs < 0 {
		return fmt.Errorf("runs must be >= 0, got %d", s.Runs)
	}
	if s.Runs == 0 {
		s.Runs = 1
	}
	if s.MaxRecords < 0 {
		return fmt.Errorf("max_records must be >= 0, got %d", s.MaxRecords)
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWriteOrder:
		if len(a.Tables) == 0 {
			return fmt.Errorf("assertions[%d]: tables list is required for write_order", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be >= 0 for row_count, got %d", index, a.Count)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
	case AssertBrokenEdge:
		if a.Record == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: record and field are required for broken_edge", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

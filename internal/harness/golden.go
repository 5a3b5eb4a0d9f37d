package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/seedgraph/internal/engine"
)

// TraceSnapshot captures the write trace of a scenario execution.
// encoding/json emits struct fields in declaration order, so the snapshot
// bytes are stable for a given trace.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Backend      string              `json:"backend"`
	Trace        []TraceEvent        `json:"trace"`
	Broken       []engine.BrokenEdge `json:"broken,omitempty"`
}

// Snapshot renders result's trace as golden file bytes.
func Snapshot(name, backend string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Backend:      backend,
		Trace:        result.Trace,
		Broken:       result.Broken,
	}
	return snapshot.marshal()
}

func (s *TraceSnapshot) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check assertions as well. Test failure
// (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.Backend, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name, backend string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, backend, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

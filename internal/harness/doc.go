// Package harness runs fixture scenarios against a persistence backend.
//
// A scenario names a fixture, a backend and a number of runs. Each run
// loads the fixture afresh and persists every record in one batch, so a
// second run exercises key numbering against rows the first run left
// behind. After the last run the harness reads every fixture table back
// and evaluates the scenario's assertions.
//
// # Scenario Format
//
//	name: library_twice
//	description: "Second run continues the shelf key sequence"
//	fixture: ../../fixture/testdata/library.yaml
//	backend: sqlite        # memory (default), sqlite or bolt
//	seed: 7                # generator seed for unset fields
//	runs: 2
//	assertions:
//	  - type: write_order
//	    tables: [author, shelf, book]
//	  - type: row_count
//	    table: book
//	    count: 4
//	  - type: final_state
//	    table: shelf
//	    where: {code: B}
//	    expect: {floor: 2}
//
// The fixture path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - write_order: the first write of each listed table appears in order
//   - row_count: the table holds exactly count rows
//   - final_state: exactly one row matches where, and it has the expect values
//   - broken_edge: the named record's field was left empty to break a cycle
//
// # Determinism
//
// Manual UUID keys come from testutil.SequentialGUIDs and unset fields from
// a fixture.Generator seeded by the scenario, so the write trace is stable
// and can be compared against a golden file with RunWithGolden.
package harness

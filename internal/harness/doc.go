// Package harness runs question scenarios through the full pipeline and
// checks the answers.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: thermocline_bay_of_bengal
//	description: "What this scenario validates"
//	question: Calculate thermocline in the Bay of Bengal
//	now: 2024-03-31T12:00:00Z
//	data:
//	  columns: [float_id, pressure, temperature]
//	  rows:
//	    - ["2902746", 0, 28.0]
//	assertions:
//	  - type: tools
//	    tools: [fetch_data, calculate_thermocline]
//	  - type: payload
//	    tool: calculate_thermocline
//	    expect: { thermocline_depth: 40 }
//	    tolerance: 0.01
//
// data is the table every statement returns. source_error makes every
// statement fail instead. draft replaces the template drafter with a
// fixed response, which is how unsafe model output is exercised.
//
// # Assertion Types
//
//   - type, region: the question analysis
//   - tools: the planned tool order
//   - sql_contains, sql_excludes: the compiled statement, case-insensitive
//   - compile_error: compilation failed, optionally with a given code
//   - tool_status: the status of one tool
//   - payload: a subset match on a tool's JSON payload
//   - outcome: answered, partial or failed
//   - summary_contains: a substring of the synthesized answer
//
// # Deterministic Testing
//
// Each run uses a fake clock, a fixed request ID, an in-memory query log
// and a static data source, so identical scenarios produce identical
// snapshots for golden comparison.
package harness

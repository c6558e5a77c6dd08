// Package uberjob builds and runs symbolic call graphs.
//
// A caller constructs a Plan whose nodes are deferred function calls and
// literal values. An optional Registry associates plan nodes with
// ValueStores: persistent, externally timestamped locations. Running a
// Plan, optionally against a Registry, executes only what is necessary to
// materialize a requested output, reusing fresh stored values and
// rebuilding stale ones, in parallel, with well-defined error
// aggregation.
//
// The core pipeline is:
//
//	Plan (+ Registry) -> physical-plan transform -> staleness analysis -> scheduler -> output
//
// Concrete ValueStore implementations live in the stores subpackage.
// OpenTelemetry-backed progress observers live in the uberjobotel
// subpackage. A demonstration CLI lives under cmd/uberjobctl.
package uberjob

// Package engine executes tool plans.
//
// An Orchestrator runs the invocations of a toolplan.Plan on a bounded
// worker pool. Invocations whose dependencies have finished run
// concurrently; everything else waits for its predecessors. Each
// invocation moves Pending -> Running -> Succeeded or Failed.
//
// Failures never abort a plan. A failed invocation is recorded in the
// ExecutionReport and its dependents still run, seeing the failed
// upstream result, so one bad analytic call does not block unrelated
// ones. Deciding whether partial data is enough is left to whoever
// reads the report.
//
// Ordering guarantees:
//   - Report.Results is always in plan order, whatever the completion order.
//   - ToolResult.Seq records completion order from a logical clock.
//   - An invocation never starts before every invocation it depends on
//     has finished.
package engine

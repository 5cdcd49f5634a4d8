// Package store provides the SQLite-backed query log.
//
// The log is append-only and records three things:
//   - Requests and the tool executions of each request's plan
//   - Compiled statements, including cache hits
//   - Rejected compilations (the audit trail of refused questions)
//
// # Ordering
//
// Reads never order by timestamp. Tool executions are ordered by their
// completion sequence within the request, other tables by row id, so
// listings are stable regardless of wall time.
//
// # Idempotency
//
// Recording the same execution report twice is a no-op: requests are
// keyed by request id and executions by (request id, invocation id).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store satisfies compiler.AuditSink, so it can be handed to the compiler
// directly.
package store

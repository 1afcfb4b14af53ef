// Package tasks persists production tasks and their audit events in SQLite
// and exposes the conditional-write primitives the coordinator is built on.
//
// The Store manages the database connection, schema initialization, filtered
// queue listings, and the atomic claim/release/transition updates that make
// concurrent callers resolve to exactly one winner. Every mutation appends
// its audit event inside the same transaction, so a task's stored history is
// always consistent with its state.
//
// Treat this package as the single source of truth for task persistence
// semantics; higher-level policy (lease TTLs, transition rules, admin
// overrides) lives in the lease, stage, and admin packages.
package tasks

// Package audit defines the append-only event log that forms the
// authoritative history of every task.
//
// Events carry a fixed header (id, task, type, actor, correlation id,
// timestamp) plus an opaque JSON metadata blob, so collaborator-specific
// content rides along without the log understanding it. Stored events are
// totally ordered per task by creation time with insertion order as the
// tiebreaker, and Merge folds externally-sourced event streams into the same
// timeline.
package audit

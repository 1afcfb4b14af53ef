// Package api defines the transport-facing DTOs shared by the HTTP server
// and the CLI, plus read-only services that assemble them from the store.
// Derived fields (deadline status, priority, next action) are computed at
// read time so every surface shows the same verdicts.
package api

// Package logging assembles structured slog loggers and attribute helpers
// used across Clipline components.
//
// It owns the console/JSON handler selection, level parsing, and multi-writer
// output plumbing, plus a no-op logger for tests. Prefer these constructors
// over hand-rolled slog setup so every component emits log lines with the
// same shape.
package logging

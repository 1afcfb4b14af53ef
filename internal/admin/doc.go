// Package admin implements the privileged override surface: forcing a task
// to an arbitrary stage, clearing claims, and resetting assignments. Every
// operation demands a justification and is recorded in the audit trail
// regardless of outcome.
package admin

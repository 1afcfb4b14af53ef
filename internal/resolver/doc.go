// Package resolver is the pure decision table answering "what should happen
// to this task next, and who may do it". It has no side effects and reads no
// storage, so work-list rendering and authorization gating share one source
// of truth.
package resolver

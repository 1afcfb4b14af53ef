// Package stage implements the production stage state machine: which
// transitions are legal, which fields each target stage requires, and how an
// accepted transition is applied to a task.
//
// The validation rules here and the action table in the resolver package
// describe the same pipeline; a change to one requires a matching change to
// the other.
package stage

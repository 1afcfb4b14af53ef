// Package sla derives deadlines, urgency classification, and priority scores
// from a task's stage and timestamps. Pure computation: no hidden state, no
// storage, recomputed on every read.
package sla

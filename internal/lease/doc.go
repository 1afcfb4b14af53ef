// Package lease manages time-bounded exclusive claims on tasks.
//
// A claim is the only ownership mechanism in the pipeline: a worker that
// disappears mid-task frees it automatically once the lease TTL lapses, with
// no explicit cancellation signal. Two recovery sweeps exist on purpose:
// ReclaimExpired makes expired claims available again as soon as they lapse,
// while ReleaseStale force-clears claims abandoned well past expiry. Both
// are idempotent and only ever touch expired claims.
package lease

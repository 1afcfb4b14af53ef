// Package notifications delivers best-effort push notices through ntfy.
//
// Delivery never gates a pipeline operation. When no topic is configured
// the service degrades to a noop so callers never need nil checks.
package notifications

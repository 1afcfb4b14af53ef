// Package daemon runs the long-lived coordinator process: a single-instance
// file lock, the background sweep loops, and the HTTP API the CLI and any
// collaborator tooling talk to.
package daemon

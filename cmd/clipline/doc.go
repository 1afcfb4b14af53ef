// Command clipline is the CLI for the Clipline production coordinator. It
// operates directly on the shared task database; the daemon subcommand runs
// the background sweeps and the HTTP API.
package main

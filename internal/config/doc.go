// Package config loads, validates, and normalizes Clipline configuration.
//
// Configuration lives in a TOML file (default ~/.config/clipline/config.toml)
// with defaults supplied for every field, so the coordinator runs with no
// config file at all. Paths are tilde-expanded and made absolute during load.
package config

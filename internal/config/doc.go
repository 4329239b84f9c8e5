// Package config loads, normalizes, and validates the TOML configuration
// that drives the recap daemon and CLI.
package config

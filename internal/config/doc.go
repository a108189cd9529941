// Package config loads and validates the attune TOML configuration.
package config

// Package logging wires slog with the console and JSON handlers used by
// the attune CLI and its long-running components.
package logging

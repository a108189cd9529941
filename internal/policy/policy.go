// Package policy persists per-root metadata source policies and resolves
// the policy that governs any file path.
package policy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Source identifies where metadata for a file is read from.
type Source string

const (
	SourceTags       Source = "tags"
	SourceAttributes Source = "attributes"
	SourceNone       Source = "none"
)

// ParseSource converts user-facing text into a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tags", "tag":
		return SourceTags, nil
	case "attributes", "attrs", "attr":
		return SourceAttributes, nil
	case "none", "":
		return SourceNone, nil
	default:
		return "", fmt.Errorf("policy: unknown source %q", s)
	}
}

// ConflictMode selects how differing field values between the two sources
// are resolved.
type ConflictMode string

const (
	ModeOverwrite ConflictMode = "overwrite"
	ModeFillEmpty ConflictMode = "fill-empty"
	ModeAsk       ConflictMode = "ask"
)

// ParseConflictMode converts user-facing text into a ConflictMode.
func ParseConflictMode(s string) (ConflictMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite":
		return ModeOverwrite, nil
	case "fill-empty", "fillempty", "fill":
		return ModeFillEmpty, nil
	case "ask", "":
		return ModeAsk, nil
	default:
		return "", fmt.Errorf("policy: unknown conflict mode %q", s)
	}
}

// SourcePolicy binds a watched root to its metadata source ranking and
// conflict resolution mode.
type SourcePolicy struct {
	Path      string       `toml:"path"`
	Primary   Source       `toml:"primary"`
	Secondary Source       `toml:"secondary"`
	Mode      ConflictMode `toml:"mode"`
}

// Default returns the policy applied when no stored prefix matches:
// tags are authoritative, attributes fill in, conflicts ask the user.
func Default(path string) SourcePolicy {
	return SourcePolicy{
		Path:      path,
		Primary:   SourceTags,
		Secondary: SourceAttributes,
		Mode:      ModeAsk,
	}
}

// Validate rejects policies with unknown enum values or an empty path.
func (p SourcePolicy) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("policy: path must not be empty")
	}
	switch p.Primary {
	case SourceTags, SourceAttributes, SourceNone:
	default:
		return fmt.Errorf("policy: unknown primary source %q", p.Primary)
	}
	switch p.Secondary {
	case SourceTags, SourceAttributes, SourceNone:
	default:
		return fmt.Errorf("policy: unknown secondary source %q", p.Secondary)
	}
	switch p.Mode {
	case ModeOverwrite, ModeFillEmpty, ModeAsk:
	default:
		return fmt.Errorf("policy: unknown conflict mode %q", p.Mode)
	}
	return nil
}

// prefixMatches reports whether path lives under root. A bare prefix
// match is not enough: "/music/rocket" must not match root "/music/rock".
func prefixMatches(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

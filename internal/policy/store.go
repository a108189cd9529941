package policy

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"attune/internal/fileutil"
)

// Store holds the set of per-root policies and persists them as TOML.
// All mutation happens through the owning library actor, so the store
// itself carries no locking.
type Store struct {
	path     string
	policies []SourcePolicy
}

type storeFile struct {
	Sources []SourcePolicy `toml:"sources"`
}

// Load reads the policy file at path. A missing file yields an empty
// store; a corrupt file is treated the same way so a damaged settings
// directory never blocks startup.
func Load(path string) (*Store, error) {
	st := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file storeFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return st, nil
	}
	for _, p := range file.Sources {
		if p.Validate() != nil {
			continue
		}
		p.Path = filepath.Clean(p.Path)
		st.policies = append(st.policies, p)
	}
	st.sortByPath()
	return st, nil
}

// LoadWithLegacyImport loads the policy file, falling back to a one-time
// import of the legacy one-path-per-line list when the TOML file does
// not exist yet. Imported roots get primary=tags, secondary=none,
// mode=overwrite and are immediately rewritten in the new format.
func LoadWithLegacyImport(path, legacyPath string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	st := &Store{path: path}
	file, err := os.Open(legacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return nil, fmt.Errorf("open legacy policy file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		st.policies = append(st.policies, SourcePolicy{
			Path:      filepath.Clean(line),
			Primary:   SourceTags,
			Secondary: SourceNone,
			Mode:      ModeOverwrite,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read legacy policy file: %w", err)
	}
	st.sortByPath()
	if len(st.policies) > 0 {
		if err := st.Save(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Save writes the store atomically to its backing file.
func (s *Store) Save() error {
	data, err := toml.Marshal(storeFile{Sources: s.policies})
	if err != nil {
		return fmt.Errorf("marshal policy file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure policy directory: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}

// List returns a copy of all policies ordered by path.
func (s *Store) List() []SourcePolicy {
	out := make([]SourcePolicy, len(s.policies))
	copy(out, s.policies)
	return out
}

// Roots returns the watched root paths in order.
func (s *Store) Roots() []string {
	roots := make([]string, 0, len(s.policies))
	for _, p := range s.policies {
		roots = append(roots, p.Path)
	}
	return roots
}

// Upsert inserts or replaces the policy for p.Path.
func (s *Store) Upsert(p SourcePolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Path = filepath.Clean(p.Path)
	for i := range s.policies {
		if s.policies[i].Path == p.Path {
			s.policies[i] = p
			return nil
		}
	}
	s.policies = append(s.policies, p)
	s.sortByPath()
	return nil
}

// Remove deletes the policy whose path equals root. It reports whether
// an entry was removed.
func (s *Store) Remove(root string) bool {
	root = filepath.Clean(root)
	for i := range s.policies {
		if s.policies[i].Path == root {
			s.policies = append(s.policies[:i], s.policies[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup resolves the policy governing path: the stored policy with the
// longest matching root prefix wins, falling back to Default when no
// root contains the path.
func (s *Store) Lookup(path string) SourcePolicy {
	path = filepath.Clean(path)
	best := SourcePolicy{}
	bestLen := -1
	for _, p := range s.policies {
		if prefixMatches(p.Path, path) && len(p.Path) > bestLen {
			best = p
			bestLen = len(p.Path)
		}
	}
	if bestLen < 0 {
		return Default(path)
	}
	return best
}

// Contains reports whether path lives under any watched root.
func (s *Store) Contains(path string) bool {
	for _, p := range s.policies {
		if prefixMatches(p.Path, path) {
			return true
		}
	}
	return false
}

func (s *Store) sortByPath() {
	sort.Slice(s.policies, func(i, j int) bool {
		return s.policies[i].Path < s.policies[j].Path
	})
}

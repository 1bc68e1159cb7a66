package storage

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/samdwyer/tilerealm/internal/apperr"
)

const (
	// ShortcutsFile is the alias index kept at the store root.
	ShortcutsFile = "shortcuts.json"
	// DefaultShortcut names the file used when no file is given.
	DefaultShortcut = "default"
)

// Shortcuts maps a short alias to a full file name with extension.
type Shortcuts map[string]string

// aliasesOf returns every alias pointing at file, sorted.
func (s Shortcuts) aliasesOf(file string) []string {
	var out []string
	for _, short := range s.sortedAliases() {
		if s[short] == file {
			out = append(out, short)
		}
	}
	return out
}

// sortedAliases returns the aliases in a stable order.
func (s Shortcuts) sortedAliases() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// defaultAlias derives an alias from a file name by dropping its extension.
func defaultAlias(file string) string {
	base, _, _ := strings.Cut(file, ".")
	return base
}

// Shortcuts returns a copy of the alias index.
func (s *Store) Shortcuts() Shortcuts {
	return maps.Clone(s.shortcuts)
}

// AddShortcut registers short as an alias for file. An empty short uses the
// file name without its extension.
func (s *Store) AddShortcut(file, short string) error {
	if file == "" {
		return fmt.Errorf("storage: add shortcut: empty file name: %w", apperr.ErrInvalidArgument)
	}
	if short == "" {
		short = defaultAlias(file)
	}
	if _, taken := s.shortcuts[short]; taken {
		return fmt.Errorf("storage: shortcut %q: %w", short, apperr.ErrAlreadyExists)
	}
	s.shortcuts[short] = file
	s.logger.Debug("shortcut added", "shortcut", short, "file", file)
	return nil
}

// RenameShortcut moves the aliases of oldFile onto newFile. The default
// alias is retargeted; any other alias of oldFile is replaced by short. When
// oldFile has no alias only short is added.
func (s *Store) RenameShortcut(oldFile, newFile, short string) error {
	if oldFile == "" || newFile == "" {
		return fmt.Errorf("storage: rename shortcut: %w", apperr.ErrInvalidArgument)
	}
	if short == "" {
		short = defaultAlias(newFile)
	}
	if current, taken := s.shortcuts[short]; taken && current != oldFile && current != newFile {
		return fmt.Errorf("storage: shortcut %q: %w", short, apperr.ErrAlreadyExists)
	}
	for _, old := range s.shortcuts.aliasesOf(oldFile) {
		if old == DefaultShortcut {
			s.shortcuts[old] = newFile
			continue
		}
		delete(s.shortcuts, old)
	}
	s.shortcuts[short] = newFile
	s.logger.Debug("shortcut renamed", "from", oldFile, "to", newFile, "shortcut", short)
	return nil
}

// RemoveShortcut drops every alias pointing at file.
func (s *Store) RemoveShortcut(file string) {
	for _, short := range s.shortcuts.aliasesOf(file) {
		delete(s.shortcuts, short)
		s.logger.Debug("shortcut removed", "shortcut", short, "file", file)
	}
}

// AddressOf resolves a shortcut, a file name with extension, or the empty
// string (the default file) to a file name that exists on disk.
func (s *Store) AddressOf(name string) (string, error) {
	file := name
	switch {
	case name == "":
		def, ok := s.shortcuts[DefaultShortcut]
		if !ok {
			return "", fmt.Errorf("storage: no default file: %w", apperr.ErrNotFound)
		}
		file = def
	case !HasKnownExt(name):
		target, ok := s.shortcuts[name]
		if !ok {
			return "", fmt.Errorf("storage: unknown file name %q: %w", name, apperr.ErrNotFound)
		}
		file = target
	}
	if !s.fs.Exists(file) {
		return "", fmt.Errorf("storage: unknown file %q: %w", file, apperr.ErrNotFound)
	}
	return file, nil
}

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samdwyer/tilerealm/internal/apperr"
)

// Store is a folder of JSON, YAML and text files addressed by file name or
// by shortcut. It reads from disk on every access and is not safe for
// concurrent use.
type Store struct {
	fs        *FS
	shortcuts Shortcuts
	logger    *slog.Logger
}

// Open loads the shortcut index from fs. A missing index starts empty.
func Open(fs *FS, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{fs: fs, shortcuts: Shortcuts{}, logger: logger}

	data, err := fs.Read(ShortcutsFile)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logger.Warn("shortcuts file not found, starting empty", "root", fs.Root())
	case err != nil:
		return nil, err
	default:
		v, err := Decode(FormatJSON, data)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: %w", ShortcutsFile, err)
		}
		idx, err := Convert[Shortcuts](v)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: %w", ShortcutsFile, err)
		}
		if idx != nil {
			s.shortcuts = idx
		}
	}
	logger.Info("storage handler initialized", "root", fs.Root(), "shortcuts", len(s.shortcuts))
	return s, nil
}

// Close writes the shortcut index back to disk.
func (s *Store) Close() error {
	data, err := Encode(FormatJSON, s.shortcuts)
	if err != nil {
		return err
	}
	if err := s.fs.Write(ShortcutsFile, data); err != nil {
		return err
	}
	s.logger.Info("storage handler has quit")
	return nil
}

// ReadFile returns the decoded contents of a file.
func (s *Store) ReadFile(name string) (any, error) {
	file, err := s.AddressOf(name)
	if err != nil {
		return nil, err
	}
	return s.readResolved(file)
}

func (s *Store) readResolved(file string) (any, error) {
	_, format, err := SplitName(file)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(file)
	if err != nil {
		return nil, err
	}
	v, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", file, err)
	}
	return v, nil
}

// ReadJSON returns a parameter file as a map.
func (s *Store) ReadJSON(name string) (map[string]any, error) {
	file, err := s.AddressOf(name)
	if err != nil {
		return nil, err
	}
	return s.readObject(file)
}

// ReadText returns a text file's contents.
func (s *Store) ReadText(name string) (string, error) {
	v, err := s.ReadFile(name)
	if err != nil {
		return "", err
	}
	text, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("storage: %s: %w", name, apperr.ErrNotText)
	}
	return text, nil
}

// ReadAs reads a file and converts its contents into T.
func ReadAs[T any](s *Store, name string) (T, error) {
	var zero T
	v, err := s.ReadFile(name)
	if err != nil {
		return zero, err
	}
	return Convert[T](v)
}

func (s *Store) readObject(file string) (map[string]any, error) {
	v, err := s.readResolved(file)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("storage: %s: %w", file, apperr.ErrNotObject)
	}
	return obj, nil
}

func (s *Store) writeResolved(file string, v any) error {
	_, format, err := SplitName(file)
	if err != nil {
		return err
	}
	data, err := Encode(format, v)
	if err != nil {
		return err
	}
	return s.fs.Write(file, data)
}

// CreateFile writes a new file, replacing any existing file of the same
// name, and registers short (or the base name) as its shortcut. Aliases
// already pointing at name are kept. A nil content creates an empty object
// or an empty text file. Nothing is written when short is taken.
func (s *Store) CreateFile(name string, content any, short string) error {
	_, format, err := SplitName(name)
	if err != nil {
		return err
	}
	if short == "" {
		short = defaultAlias(name)
	}
	if current, taken := s.shortcuts[short]; taken && current != name {
		return fmt.Errorf("storage: create %s: shortcut %q: %w", name, short, apperr.ErrAlreadyExists)
	}
	if content == nil {
		content = format.Empty()
	}
	replaced := s.fs.Exists(name)
	if err := s.writeResolved(name, content); err != nil {
		return err
	}
	s.shortcuts[short] = name
	s.logger.Debug("file created", "file", name, "shortcut", short, "replaced", replaced)
	return nil
}

// DeleteFile removes a file and its shortcut.
func (s *Store) DeleteFile(name string) error {
	file, err := s.AddressOf(name)
	if err != nil {
		return err
	}
	if err := s.fs.Delete(file); err != nil {
		return err
	}
	s.RemoveShortcut(file)
	s.logger.Debug("file deleted", "file", file)
	return nil
}

// RenameFile moves a file to newName, keeping the old extension, and moves
// its shortcuts (see RenameShortcut). An existing file at the target is
// replaced and keeps its own shortcuts.
func (s *Store) RenameFile(oldName, newName, short string) error {
	oldFile, err := s.AddressOf(oldName)
	if err != nil {
		return err
	}
	_, format, err := SplitName(oldFile)
	if err != nil {
		return err
	}
	base, _, _ := strings.Cut(newName, ".")
	if base == "" {
		return fmt.Errorf("storage: rename %s: empty new name: %w", oldFile, apperr.ErrInvalidArgument)
	}
	newFile := base + format.Ext()
	if newFile == oldFile {
		return nil
	}
	if short == "" {
		short = base
	}
	if current, taken := s.shortcuts[short]; taken && current != oldFile && current != newFile {
		return fmt.Errorf("storage: rename %s: shortcut %q: %w", oldFile, short, apperr.ErrAlreadyExists)
	}
	// Move replaces newFile; aliases of newFile stay valid.
	if s.fs.Exists(newFile) {
		s.logger.Debug("rename replaces existing file", "file", newFile)
	}
	if err := s.fs.Move(oldFile, newFile); err != nil {
		return err
	}
	if err := s.RenameShortcut(oldFile, newFile, short); err != nil {
		return err
	}
	s.logger.Debug("file renamed", "from", oldFile, "to", newFile)
	return nil
}

// GetParam returns a parameter. With an empty file name the default file
// is searched first, then every shortcut target in alias order.
func (s *Store) GetParam(name, file string) (any, error) {
	if file == "" {
		if found, ok := s.findParam(name); ok {
			file = found
		}
	}
	resolved, err := s.AddressOf(file)
	if err != nil {
		return nil, err
	}
	obj, err := s.readObject(resolved)
	if err != nil {
		return nil, err
	}
	v, ok := obj[name]
	if !ok {
		return nil, fmt.Errorf("storage: parameter %q in %s: %w", name, resolved, apperr.ErrNotFound)
	}
	return v, nil
}

// findParam searches the default file and then every aliased object file
// for a parameter.
func (s *Store) findParam(name string) (string, bool) {
	candidates := make([]string, 0, len(s.shortcuts)+1)
	if def, ok := s.shortcuts[DefaultShortcut]; ok {
		candidates = append(candidates, def)
	}
	for _, short := range s.shortcuts.sortedAliases() {
		candidates = append(candidates, s.shortcuts[short])
	}
	for _, file := range candidates {
		if file == ShortcutsFile || !s.fs.Exists(file) {
			continue
		}
		obj, err := s.readObject(file)
		if err != nil {
			continue
		}
		if _, ok := obj[name]; ok {
			return file, true
		}
	}
	return "", false
}

// GetParams returns several parameters from one file, in order.
func (s *Store) GetParams(names []string, file string) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		v, err := s.GetParam(name, file)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Param reads a parameter and converts it into T.
func Param[T any](s *Store, name, file string) (T, error) {
	var zero T
	v, err := s.GetParam(name, file)
	if err != nil {
		return zero, err
	}
	return Convert[T](v)
}

// SetParam sets one parameter in an object file.
func (s *Store) SetParam(name string, value any, file string) error {
	return s.SetParams(map[string]any{name: value}, file)
}

// SetParams sets every given parameter in an object file with one write.
func (s *Store) SetParams(params map[string]any, file string) error {
	resolved, err := s.AddressOf(file)
	if err != nil {
		return err
	}
	obj, err := s.readObject(resolved)
	if err != nil {
		return err
	}
	for k, v := range params {
		obj[k] = v
	}
	return s.writeResolved(resolved, obj)
}

// DeleteParams removes parameters from an object file. Nothing is written
// if any of them is missing.
func (s *Store) DeleteParams(file string, names ...string) error {
	resolved, err := s.AddressOf(file)
	if err != nil {
		return err
	}
	obj, err := s.readObject(resolved)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := obj[name]; !ok {
			return fmt.Errorf("storage: parameter %q in %s: %w", name, resolved, apperr.ErrNotFound)
		}
		delete(obj, name)
	}
	return s.writeResolved(resolved, obj)
}

// ResetFile overwrites an object file with content (an empty object when
// nil).
func (s *Store) ResetFile(file string, content map[string]any) error {
	resolved, err := s.AddressOf(file)
	if err != nil {
		return err
	}
	_, format, err := SplitName(resolved)
	if err != nil {
		return err
	}
	if !format.IsObject() {
		return fmt.Errorf("storage: reset %s: %w", resolved, apperr.ErrNotObject)
	}
	if content == nil {
		content = map[string]any{}
	}
	return s.writeResolved(resolved, content)
}

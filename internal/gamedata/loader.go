package gamedata

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/samdwyer/tilerealm/internal/storage"
)

// Load reads and unmarshals a JSON file from an embedded bundle.
func Load[T any](bundle, filename string) (T, error) {
	var result T

	content, err := dataFS.ReadFile(path.Join("defaults", bundle, filename))
	if err != nil {
		return result, fmt.Errorf("failed to read embedded file %s/%s: %w", bundle, filename, err)
	}

	if err := json.Unmarshal(content, &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON from %s/%s: %w", bundle, filename, err)
	}

	return result, nil
}

// Seed copies every file of the bundle that does not exist yet under dst.
// Existing files are never overwritten. It returns the copied paths.
func Seed(bundle string, dst *storage.FS) ([]string, error) {
	root := path.Join("defaults", bundle)
	if _, err := fs.Stat(dataFS, root); err != nil {
		return nil, fmt.Errorf("gamedata: unknown bundle %q: %w", bundle, err)
	}

	var copied []string
	err := fs.WalkDir(dataFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := p[len(root)+1:]
		if dst.Exists(rel) {
			return nil
		}
		content, err := dataFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := dst.Write(rel, content); err != nil {
			return err
		}
		copied = append(copied, rel)
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("gamedata: seed %s: %w", bundle, err)
	}
	return copied, nil
}

package game

import (
	"errors"

	"github.com/samdwyer/tilerealm/internal/apperr"
	"github.com/samdwyer/tilerealm/internal/resources"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/world"
)

// SaveKey is the file of the saves handler holding the last position.
const SaveKey = "autosave"

// Save is where the player stopped.
type Save struct {
	Map   string `json:"map"`
	Scene string `json:"scene"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// Position returns the saved position.
func (s Save) Position() world.Point { return world.Point{X: s.X, Y: s.Y} }

// LoadSave reads the last save. It reports false when there is none.
func LoadSave(h *resources.Handler) (Save, bool, error) {
	s, err := resources.ReadAs[Save](h, SaveKey)
	if errors.Is(err, apperr.ErrNotFound) {
		return Save{}, false, nil
	}
	if err != nil {
		return Save{}, false, err
	}
	return s, s.Map != "", nil
}

// StoreSave caches s in the saves handler, creating the file if needed.
// It is written on the next flush.
func StoreSave(h *resources.Handler, s Save) error {
	if _, ok := h.Entry(SaveKey); !ok {
		if err := h.Create(SaveKey, storage.FormatJSON); err != nil {
			return err
		}
	}
	return h.SetMany(map[string]any{
		"map":   s.Map,
		"scene": s.Scene,
		"x":     s.X,
		"y":     s.Y,
	}, SaveKey)
}

package resources

import (
	"fmt"

	"github.com/samdwyer/tilerealm/internal/apperr"
)

// object returns the cached map of an object file.
func (h *Handler) object(key string) (map[string]any, *cached, error) {
	e, err := h.entry(key)
	if err != nil {
		return nil, nil, err
	}
	if !e.Type.IsObject() {
		return nil, nil, fmt.Errorf("resources: %s: %w", key, apperr.ErrNotObject)
	}
	c, err := h.ensure(key)
	if err != nil {
		return nil, nil, err
	}
	obj, ok := c.data.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("resources: %s: top level is %T: %w", key, c.data, apperr.ErrNotObject)
	}
	return obj, c, nil
}

// Get returns a parameter of an object file. An empty key is the default
// file.
func (h *Handler) Get(param, key string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = h.keyOrDefault(key)
	obj, _, err := h.object(key)
	if err != nil {
		return nil, err
	}
	v, ok := obj[param]
	if !ok {
		return nil, fmt.Errorf("resources: parameter %q in %s: %w", param, key, apperr.ErrNotFound)
	}
	return v, nil
}

// GetMany returns several parameters of one file, in order.
func (h *Handler) GetMany(params []string, key string) ([]any, error) {
	out := make([]any, 0, len(params))
	for _, p := range params {
		v, err := h.Get(p, key)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Set sets a parameter in the cached copy of an object file.
func (h *Handler) Set(param string, value any, key string) error {
	return h.SetMany(map[string]any{param: value}, key)
}

// SetMany sets every given parameter in the cached copy of an object file.
func (h *Handler) SetMany(params map[string]any, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj, c, err := h.object(h.keyOrDefault(key))
	if err != nil {
		return err
	}
	for k, v := range params {
		obj[k] = v
	}
	c.dirty = true
	return nil
}

// Cut deletes parameters from the cached copy of an object file. Nothing
// changes if any of them is missing.
func (h *Handler) Cut(key string, params ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = h.keyOrDefault(key)
	obj, c, err := h.object(key)
	if err != nil {
		return err
	}
	for _, p := range params {
		if _, ok := obj[p]; !ok {
			return fmt.Errorf("resources: parameter %q in %s: %w", p, key, apperr.ErrNotFound)
		}
	}
	for _, p := range params {
		delete(obj, p)
	}
	c.dirty = true
	return nil
}

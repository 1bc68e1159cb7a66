package resources

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after a disk change invalidated a cached key.
type ChangeCallback func(key string)

// Watch invalidates cached files when they change on disk, until ctx is
// cancelled. Dirty entries are kept; the in-memory copy wins on the next
// flush.
func (h *Handler) Watch(ctx context.Context, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := h.files.Root()
	if err := w.Add(dir); err != nil {
		return err
	}
	h.logger.Info("watcher: started", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".tilerealm-tmp-") {
				continue
			}
			rel, err := filepath.Rel(dir, ev.Name)
			if err != nil {
				continue
			}
			key, ok := h.keyForPath(filepath.ToSlash(rel))
			if !ok {
				continue
			}
			if h.inSync(key) {
				h.logger.Debug("watcher: own write, skipped", "file", key, "op", ev.Op.String())
				continue
			}
			if !h.Invalidate(key) {
				h.logger.Warn("watcher: file changed on disk while cached copy has unwritten changes",
					"file", key, "op", ev.Op.String())
				continue
			}
			h.logger.Debug("watcher: invalidated", "file", key, "op", ev.Op.String())
			if cb != nil {
				cb(key)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Error("watcher: error", "error", watchErr)
		}
	}
}

// keyForPath returns the key whose entry points at rel.
func (h *Handler) keyForPath(rel string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, e := range h.index {
		if filepath.ToSlash(e.Path) == rel {
			return key, true
		}
	}
	return "", false
}

// inSync reports whether the file of key on disk still holds what this
// handler last read or wrote.
func (h *Handler) inSync(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sum, ok := h.synced[key]
	if !ok {
		return false
	}
	raw, err := h.files.Read(h.index[key].Path)
	if err != nil {
		return false
	}
	return sha256.Sum256(raw) == sum
}

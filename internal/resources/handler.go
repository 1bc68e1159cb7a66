// Package resources caches typed resource files (json, yaml, txt) listed in
// a per-handler index, with caller-driven load, flush and unload.
package resources

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/tilerealm/internal/apperr"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/telemetry"
)

// Entry describes one indexed file. Path is relative to the handler folder.
type Entry struct {
	Path string         `json:"path"`
	Name string         `json:"name"`
	Type storage.Format `json:"type"`
}

type cached struct {
	data  any
	dirty bool
}

// Handler owns the index file <name>.json under the resources root and the
// files in the <name>/ folder. It is safe for concurrent use.
type Handler struct {
	name       string
	defaultKey string
	root       *storage.FS
	files      *storage.FS
	logger     *slog.Logger

	mu     sync.Mutex
	index  map[string]Entry
	loaded map[string]*cached
	// synced holds the hash of each file as last read or written here.
	synced map[string][sha256.Size]byte
}

// Open reads the index of the named handler. A missing index starts empty.
func Open(root *storage.FS, name, defaultKey string, logger *slog.Logger) (*Handler, error) {
	if name == "" {
		return nil, fmt.Errorf("resources: empty handler name: %w", apperr.ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	files, err := root.Sub(name)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		name:       name,
		defaultKey: defaultKey,
		root:       root,
		files:      files,
		logger:     logger.With("handler", name),
		index:      make(map[string]Entry),
		loaded:     make(map[string]*cached),
		synced:     make(map[string][sha256.Size]byte),
	}

	data, err := root.Read(h.indexFile())
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.logger.Warn("resource index not found, starting empty")
	case err != nil:
		return nil, err
	default:
		v, err := storage.Decode(storage.FormatJSON, data)
		if err != nil {
			return nil, fmt.Errorf("resources: %s: %w", h.indexFile(), err)
		}
		idx, err := storage.Convert[map[string]Entry](v)
		if err != nil {
			return nil, fmt.Errorf("resources: %s: %w", h.indexFile(), err)
		}
		for k, e := range idx {
			h.index[k] = e
		}
	}
	h.logger.Info("resource handler initialized", "files", len(h.index))
	return h, nil
}

func (h *Handler) indexFile() string { return h.name + ".json" }

// Name returns the handler name.
func (h *Handler) Name() string { return h.name }

// Keys returns the indexed keys in sorted order.
func (h *Handler) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.index))
	for k := range h.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry returns the index entry for key.
func (h *Handler) Entry(key string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.index[h.keyOrDefault(key)]
	return e, ok
}

// Loaded reports whether key is in the cache.
func (h *Handler) Loaded(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.loaded[h.keyOrDefault(key)]
	return ok
}

// Dirty reports whether the cached copy of key has unwritten changes.
func (h *Handler) Dirty(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.loaded[h.keyOrDefault(key)]
	return ok && c.dirty
}

func (h *Handler) keyOrDefault(key string) string {
	if key == "" {
		return h.defaultKey
	}
	return key
}

func (h *Handler) entry(key string) (Entry, error) {
	e, ok := h.index[key]
	if !ok {
		return Entry{}, fmt.Errorf("resources: %s: file %q: %w", h.name, key, apperr.ErrNotFound)
	}
	return e, nil
}

// Load reads key from disk into the cache, replacing any cached copy.
func (h *Handler) Load(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.load(h.keyOrDefault(key))
	return err
}

func (h *Handler) load(key string) (*cached, error) {
	e, err := h.entry(key)
	if err != nil {
		return nil, err
	}
	raw, err := h.files.Read(e.Path)
	if err != nil {
		return nil, err
	}
	data, err := storage.Decode(e.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("resources: %s: %s: %w", h.name, key, err)
	}
	c := &cached{data: data}
	h.loaded[key] = c
	h.synced[key] = sha256.Sum256(raw)
	h.logger.Debug("file loaded", "file", key)
	return c, nil
}

// ensure returns the cached copy of key, loading it on first access.
func (h *Handler) ensure(key string) (*cached, error) {
	if c, ok := h.loaded[key]; ok {
		return c, nil
	}
	return h.load(key)
}

// Read returns the cached contents of key, loading it on first access.
// The cached value itself is returned; change it through Write or Set so
// the change is flushed.
func (h *Handler) Read(key string) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, err := h.ensure(h.keyOrDefault(key))
	if err != nil {
		return nil, err
	}
	return c.data, nil
}

// ReadAs reads key and converts its contents into T.
func ReadAs[T any](h *Handler, key string) (T, error) {
	var zero T
	v, err := h.Read(key)
	if err != nil {
		return zero, err
	}
	return storage.Convert[T](v)
}

// Write replaces the cached contents of key. The file is written on flush.
func (h *Handler) Write(key string, data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = h.keyOrDefault(key)
	e, err := h.entry(key)
	if err != nil {
		return err
	}
	if err := checkData(e.Type, data); err != nil {
		return fmt.Errorf("resources: write %s: %w", key, err)
	}
	c, ok := h.loaded[key]
	if !ok {
		c = &cached{}
		h.loaded[key] = c
	}
	c.data = data
	c.dirty = true
	return nil
}

func checkData(format storage.Format, data any) error {
	if format == storage.FormatText {
		if _, ok := data.(string); !ok {
			return fmt.Errorf("text data must be a string, got %T: %w", data, apperr.ErrInvalidArgument)
		}
	}
	return nil
}

// AppendLine adds a line to a text file.
func (h *Handler) AppendLine(key, line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = h.keyOrDefault(key)
	e, err := h.entry(key)
	if err != nil {
		return err
	}
	if e.Type != storage.FormatText {
		return fmt.Errorf("resources: append to %s: %w", key, apperr.ErrNotText)
	}
	c, err := h.ensure(key)
	if err != nil {
		return err
	}
	text, _ := c.data.(string)
	if text == "" {
		text = line
	} else {
		text += "\n" + line
	}
	c.data = text
	c.dirty = true
	return nil
}

// Create indexes a new empty file and caches it. It is written on flush.
func (h *Handler) Create(key string, format storage.Format) error {
	if key == "" {
		return fmt.Errorf("resources: create: empty key: %w", apperr.ErrInvalidArgument)
	}
	format, err := storage.ParseFormat(string(format))
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.index[key]; ok {
		return fmt.Errorf("resources: create %s: %w", key, apperr.ErrAlreadyExists)
	}
	h.index[key] = Entry{Path: key + format.Ext(), Name: key, Type: format}
	h.loaded[key] = &cached{data: format.Empty(), dirty: true}
	h.logger.Debug("file created", "file", key)
	return nil
}

// Delete removes key from the cache, the index and the disk.
func (h *Handler) Delete(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.entry(key)
	if err != nil {
		return err
	}
	if err := h.files.Delete(e.Path); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	delete(h.loaded, key)
	delete(h.index, key)
	delete(h.synced, key)
	h.logger.Debug("file deleted", "file", key)
	return nil
}

// Rename moves key to newKey in the cache, the index and on disk. The
// file keeps its format and is renamed to newKey plus its extension.
func (h *Handler) Rename(key, newKey string) error {
	if newKey == "" {
		return fmt.Errorf("resources: rename %s: empty key: %w", key, apperr.ErrInvalidArgument)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.entry(key)
	if err != nil {
		return err
	}
	if key == newKey {
		return nil
	}
	if _, taken := h.index[newKey]; taken {
		return fmt.Errorf("resources: rename %s to %s: %w", key, newKey, apperr.ErrAlreadyExists)
	}
	moved := Entry{Path: newKey + e.Type.Ext(), Name: newKey, Type: e.Type}
	if h.files.Exists(e.Path) {
		if err := h.files.Move(e.Path, moved.Path); err != nil {
			return err
		}
	}
	if c, ok := h.loaded[key]; ok {
		h.loaded[newKey] = c
		delete(h.loaded, key)
	}
	if sum, ok := h.synced[key]; ok {
		h.synced[newKey] = sum
		delete(h.synced, key)
	}
	h.index[newKey] = moved
	delete(h.index, key)
	h.logger.Debug("file renamed", "from", key, "to", newKey)
	return nil
}

// Flush writes the cached copy of key to disk. A key that is not cached
// is left untouched.
func (h *Handler) Flush(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flush(h.keyOrDefault(key))
}

func (h *Handler) flush(key string) error {
	c, ok := h.loaded[key]
	if !ok {
		return nil
	}
	e, err := h.entry(key)
	if err != nil {
		return err
	}
	raw, err := storage.Encode(e.Type, c.data)
	if err != nil {
		return fmt.Errorf("resources: flush %s: %w", key, err)
	}
	if err := h.files.Write(e.Path, raw); err != nil {
		return err
	}
	h.synced[key] = sha256.Sum256(raw)
	c.dirty = false
	h.logger.Debug("file flushed", "file", key)
	return nil
}

// FlushAll writes every dirty cached file. It keeps going after a failure
// and returns the joined errors.
func (h *Handler) FlushAll(ctx context.Context) error {
	_, span := telemetry.Tracer("resources").Start(ctx, "resources.flush")
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	written := 0
	for key, c := range h.loaded {
		if !c.dirty {
			continue
		}
		if err := h.flush(key); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	span.SetAttributes(
		attribute.String("handler", h.name),
		attribute.Int("files_written", written),
		attribute.Int("errors", len(errs)),
	)
	err := errors.Join(errs...)
	telemetry.Fail(span, err)
	return err
}

// Unload writes key if it has unwritten changes and drops it from the
// cache.
func (h *Handler) Unload(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = h.keyOrDefault(key)
	c, ok := h.loaded[key]
	if !ok {
		return nil
	}
	if c.dirty {
		if err := h.flush(key); err != nil {
			return err
		}
	}
	delete(h.loaded, key)
	h.logger.Debug("file unloaded", "file", key)
	return nil
}

// Invalidate drops a clean cached copy of key so the next read goes to
// disk. It reports false, and keeps the entry, when the copy is dirty.
func (h *Handler) Invalidate(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalidate(h.keyOrDefault(key))
}

func (h *Handler) invalidate(key string) bool {
	c, ok := h.loaded[key]
	if !ok {
		return true
	}
	if c.dirty {
		return false
	}
	delete(h.loaded, key)
	return true
}

// Close flushes every dirty file and writes the index.
func (h *Handler) Close(ctx context.Context) error {
	flushErr := h.FlushAll(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := storage.Encode(storage.FormatJSON, h.index)
	if err == nil {
		err = h.root.Write(h.indexFile(), raw)
	}
	if err := errors.Join(flushErr, err); err != nil {
		h.logger.Warn("can't quit resource handler", "error", err)
		return err
	}
	h.logger.Info("resource handler has quit")
	return nil
}

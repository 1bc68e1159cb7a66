package resources

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/samdwyer/tilerealm/internal/apperr"
	"github.com/samdwyer/tilerealm/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tempHandler builds a "storage" handler whose default file is options.
func tempHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "storage.json"), `{
		"options": {"path": "options.json", "name": "options", "type": "json"},
		"journal": {"path": "journal.txt", "name": "journal", "type": "txt"}
	}`)
	mustWrite(t, filepath.Join(dir, "storage", "options.json"), `{"window_name": "Tilerealm", "fps": 60}`)
	mustWrite(t, filepath.Join(dir, "storage", "journal.txt"), "day one")

	root, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	h, err := Open(root, "storage", "options", discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h, dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenReadsIndex(t *testing.T) {
	h, _ := tempHandler(t)
	if diff := cmp.Diff([]string{"journal", "options"}, h.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	e, ok := h.Entry("")
	if !ok || e.Type != storage.FormatJSON {
		t.Errorf("Entry(default) = %+v, %v", e, ok)
	}
}

func TestReadLoadsLazily(t *testing.T) {
	h, _ := tempHandler(t)
	if h.Loaded("options") {
		t.Fatal("options loaded before first access")
	}
	got, err := h.Get("window_name", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Tilerealm" {
		t.Errorf("window_name = %v, want Tilerealm", got)
	}
	if !h.Loaded("options") {
		t.Error("options not cached after Get")
	}
}

func TestSetFlushReadBack(t *testing.T) {
	h, dir := tempHandler(t)

	if err := h.Set("fps", 30, ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !h.Dirty("options") {
		t.Error("Set must mark the file dirty")
	}
	if err := h.Flush(""); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if h.Dirty("options") {
		t.Error("Flush must clear dirty")
	}

	root, _ := storage.NewFS(dir)
	reopened, err := Open(root, "storage", "options", discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.Get("fps", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 30.0 {
		t.Errorf("fps = %v, want 30", got)
	}
}

func TestGetManyAndCut(t *testing.T) {
	h, _ := tempHandler(t)

	got, err := h.GetMany([]string{"fps", "window_name"}, "options")
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if diff := cmp.Diff([]any{60.0, "Tilerealm"}, got); diff != "" {
		t.Errorf("GetMany mismatch (-want +got):\n%s", diff)
	}

	if err := h.Cut("options", "fps", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Cut(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := h.Get("fps", ""); err != nil {
		t.Errorf("failed Cut must not remove anything, got %v", err)
	}
	if err := h.Cut("options", "fps"); err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if _, err := h.Get("fps", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after Cut error = %v, want ErrNotFound", err)
	}
}

func TestParamsOnTextFile(t *testing.T) {
	h, _ := tempHandler(t)
	if _, err := h.Get("x", "journal"); !errors.Is(err, apperr.ErrNotObject) {
		t.Errorf("Get on txt error = %v, want ErrNotObject", err)
	}
}

func TestAppendLine(t *testing.T) {
	h, _ := tempHandler(t)

	if err := h.AppendLine("journal", "day two"); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	got, err := h.Read("journal")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "day one\nday two" {
		t.Errorf("journal = %q", got)
	}
	if err := h.AppendLine("options", "x"); !errors.Is(err, apperr.ErrNotText) {
		t.Errorf("AppendLine on json error = %v, want ErrNotText", err)
	}
}

func TestWriteChecksTextData(t *testing.T) {
	h, _ := tempHandler(t)
	if err := h.Write("journal", 12); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("Write(txt, 12) error = %v, want ErrInvalidArgument", err)
	}
	if err := h.Write("journal", "replaced"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := h.Read("journal")
	if got != "replaced" {
		t.Errorf("journal = %q, want replaced", got)
	}
}

func TestCreateWrittenOnFlush(t *testing.T) {
	h, dir := tempHandler(t)

	if err := h.Create("save", storage.FormatJSON); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := h.Create("save", storage.FormatJSON); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second Create error = %v, want ErrAlreadyExists", err)
	}
	path := filepath.Join(dir, "storage", "save.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("created file must not be written before flush")
	}

	if err := h.Set("slot", 1, "save"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.FlushAll(context.Background()); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("save.json not written: %v", err)
	}
	e, _ := h.Entry("save")
	want := Entry{Path: "save.json", Name: "save", Type: storage.FormatJSON}
	if e != want {
		t.Errorf("Entry(save) = %+v, want %+v", e, want)
	}
}

func TestCreateUnsupported(t *testing.T) {
	h, _ := tempHandler(t)
	if err := h.Create("pic", storage.Format("png")); !errors.Is(err, apperr.ErrUnsupportedType) {
		t.Errorf("Create(png) error = %v, want ErrUnsupportedType", err)
	}
}

func TestDelete(t *testing.T) {
	h, dir := tempHandler(t)
	_, _ = h.Read("journal")

	if err := h.Delete("journal"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if h.Loaded("journal") {
		t.Error("deleted file still cached")
	}
	if _, ok := h.Entry("journal"); ok {
		t.Error("deleted file still indexed")
	}
	if _, err := os.Stat(filepath.Join(dir, "storage", "journal.txt")); !os.IsNotExist(err) {
		t.Error("deleted file still on disk")
	}
	if err := h.Delete("journal"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUnflushed(t *testing.T) {
	h, _ := tempHandler(t)
	_ = h.Create("draft", storage.FormatText)
	if err := h.Delete("draft"); err != nil {
		t.Errorf("Delete of never-written file: %v", err)
	}
}

func TestRename(t *testing.T) {
	h, dir := tempHandler(t)
	_ = h.AppendLine("journal", "day two")

	if err := h.Rename("journal", "diary"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := h.Entry("journal"); ok {
		t.Error("old key still indexed")
	}
	e, ok := h.Entry("diary")
	if !ok || e.Path != "diary.txt" {
		t.Errorf("Entry(diary) = %+v, %v", e, ok)
	}
	if _, err := os.Stat(filepath.Join(dir, "storage", "diary.txt")); err != nil {
		t.Errorf("file not moved on disk: %v", err)
	}
	got, err := h.Read("diary")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "day one\nday two" {
		t.Errorf("diary = %q, cached changes must survive the rename", got)
	}
	if err := h.Rename("diary", "options"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("Rename onto taken key error = %v, want ErrAlreadyExists", err)
	}
}

func TestUnloadWritesDirty(t *testing.T) {
	h, dir := tempHandler(t)
	_ = h.Set("fps", 120, "")

	if err := h.Unload(""); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if h.Loaded("options") {
		t.Error("Unload must evict")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "storage", "options.json"))
	v, _ := storage.Decode(storage.FormatJSON, data)
	if v.(map[string]any)["fps"] != 120.0 {
		t.Errorf("unloaded data not written: %s", data)
	}
}

func TestInvalidate(t *testing.T) {
	h, dir := tempHandler(t)
	_, _ = h.Read("options")

	mustWrite(t, filepath.Join(dir, "storage", "options.json"), `{"window_name": "Changed"}`)
	if !h.Invalidate("options") {
		t.Fatal("Invalidate of clean entry returned false")
	}
	got, _ := h.Get("window_name", "")
	if got != "Changed" {
		t.Errorf("window_name = %v, want Changed", got)
	}

	_ = h.Set("fps", 1, "")
	if h.Invalidate("options") {
		t.Error("Invalidate of dirty entry returned true")
	}
	if !h.Loaded("options") {
		t.Error("dirty entry evicted")
	}
}

func TestCloseWritesIndex(t *testing.T) {
	h, dir := tempHandler(t)
	_ = h.Create("save", storage.FormatYAML)
	_ = h.Set("map", "testa", "save")

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	root, _ := storage.NewFS(dir)
	reopened, err := Open(root, "storage", "options", discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.Get("map", "save")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "testa" {
		t.Errorf("map = %v, want testa", got)
	}
}

func TestReadAs(t *testing.T) {
	h, _ := tempHandler(t)
	type options struct {
		WindowName string `json:"window_name"`
		FPS        int    `json:"fps"`
	}
	got, err := ReadAs[options](h, "")
	if err != nil {
		t.Fatalf("ReadAs: %v", err)
	}
	if got != (options{WindowName: "Tilerealm", FPS: 60}) {
		t.Errorf("ReadAs = %+v", got)
	}
}

func TestWatchInvalidatesOnDiskChange(t *testing.T) {
	h, dir := tempHandler(t)
	_, _ = h.Read("options")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx, func(key string) { changed <- key }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	mustWrite(t, filepath.Join(dir, "storage", "options.json"), `{"window_name": "Edited"}`)

	select {
	case key := <-changed:
		if key != "options" {
			t.Errorf("changed key = %q, want options", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
	if h.Loaded("options") {
		t.Error("options still cached after disk change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatchSkipsOwnFlush(t *testing.T) {
	h, dir := tempHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx, func(key string) { changed <- key }) }()
	time.Sleep(100 * time.Millisecond)

	if err := h.Set("fps", 30, "options"); err != nil {
		t.Fatal(err)
	}
	if err := h.Flush("options"); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-changed:
		t.Fatalf("own flush reported as a change of %q", key)
	case <-time.After(300 * time.Millisecond):
	}
	if !h.Loaded("options") {
		t.Error("own flush invalidated the cached copy")
	}

	// Someone else's edit still gets through.
	mustWrite(t, filepath.Join(dir, "storage", "options.json"), `{"fps": 5}`)
	select {
	case key := <-changed:
		if key != "options" {
			t.Errorf("changed key = %q, want options", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the external change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

package game

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/samdwyer/tilerealm/internal/gamedata"
	"github.com/samdwyer/tilerealm/internal/resources"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/ui"
	"github.com/samdwyer/tilerealm/internal/world"
)

var startConfig = Config{
	StartMap:   "testa",
	StartScene: "scene1",
	Start:      world.Point{X: 12, Y: 6},
	MaxFPS:     60,
}

type fixture struct {
	logger *slog.Logger
	store  *storage.Store
	resFS  *storage.FS
	scenes *resources.Handler
	saves  *resources.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storeFS, err := storage.NewFS(filepath.Join(dir, "storage"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gamedata.Seed(gamedata.BundleStorage, storeFS); err != nil {
		t.Fatal(err)
	}
	resFS, err := storage.NewFS(filepath.Join(dir, "resources"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gamedata.Seed(gamedata.BundleResources, resFS); err != nil {
		t.Fatal(err)
	}

	store, err := storage.Open(storeFS, logger)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{logger: logger, store: store, resFS: resFS}
	f.reopenHandlers(t)
	return f
}

func (f *fixture) reopenHandlers(t *testing.T) {
	t.Helper()
	var err error
	if f.scenes, err = resources.Open(f.resFS, "scenes", "scene1", f.logger); err != nil {
		t.Fatal(err)
	}
	if f.saves, err = resources.Open(f.resFS, "saves", SaveKey, f.logger); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) newGame(t *testing.T, cfg Config) (*Game, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	screen, err := ui.NewScreenFrom(sim)
	if err != nil {
		t.Fatalf("NewScreenFrom: %v", err)
	}
	sim.SetSize(80, 24)

	g, err := New(context.Background(), Deps{
		Screen: screen,
		Store:  f.store,
		Scenes: f.scenes,
		Saves:  f.saves,
		Logger: f.logger,
	}, cfg)
	if err != nil {
		screen.Close()
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = g.Quit(context.Background()) })
	return g, sim
}

func TestNewUsesStartWithoutSave(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, startConfig)

	if got := g.Player().Position; got != startConfig.Start {
		t.Errorf("position = %v, want %v", got, startConfig.Start)
	}
	if g.Scenes().CurrentMap() != "testa" || g.Scenes().CurrentScene() != "scene1" {
		t.Errorf("current = %s/%s", g.Scenes().CurrentScene(), g.Scenes().CurrentMap())
	}
	want := Options{WindowName: "tilerealm", ScreenSize: [2]int{80, 24}, FPS: 30}
	if diff := cmp.Diff(want, g.Options()); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if g.FPS() != 30 {
		t.Errorf("FPS() = %d, want 30", g.FPS())
	}
}

func TestNewReadsOptionsFromStore(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetParams(map[string]any{"window_name": "demo", "fps": 200}, ""); err != nil {
		t.Fatal(err)
	}
	g, _ := f.newGame(t, startConfig)

	if g.Options().WindowName != "demo" {
		t.Errorf("WindowName = %q, want demo", g.Options().WindowName)
	}
	if g.FPS() != 60 {
		t.Errorf("FPS() = %d, want capped at 60", g.FPS())
	}
}

func TestNewRejectsUnknownStart(t *testing.T) {
	f := newFixture(t)
	sim := tcell.NewSimulationScreen("UTF-8")
	screen, err := ui.NewScreenFrom(sim)
	if err != nil {
		t.Fatal(err)
	}
	defer screen.Close()

	cfg := startConfig
	cfg.StartMap = "nowhere"
	if _, err := New(context.Background(), Deps{Screen: screen, Store: f.store, Scenes: f.scenes, Saves: f.saves}, cfg); err == nil {
		t.Error("expected error for an unknown start map")
	}
}

func TestPortalSwitchesMap(t *testing.T) {
	f := newFixture(t)
	cfg := startConfig
	cfg.Start = world.Point{X: 28, Y: 4}
	g, _ := f.newGame(t, cfg)

	g.handleKey(tcell.KeyRight, 0)
	g.Step(context.Background(), 100*time.Millisecond)

	if g.Scenes().CurrentMap() != "testb" {
		t.Fatalf("map = %s, want testb", g.Scenes().CurrentMap())
	}
	if got := g.Player().Position; got != (world.Point{X: 1, Y: 3}) {
		t.Errorf("position = %v, want exit from_a (1,3)", got)
	}
	if g.Player().Pending() != 0 {
		t.Error("teleport should drop queued moves")
	}
}

func TestPortalAcrossScenesCleansUp(t *testing.T) {
	f := newFixture(t)
	cfg := startConfig
	cfg.StartMap = "testb"
	cfg.Start = world.Point{X: 15, Y: 5}
	g, _ := f.newGame(t, cfg)

	g.handleKey(tcell.KeyRune, 'd')
	g.Step(context.Background(), 100*time.Millisecond)

	if g.Scenes().CurrentScene() != "scene2" || g.Scenes().CurrentMap() != "cave" {
		t.Fatalf("current = %s/%s, want scene2/cave", g.Scenes().CurrentScene(), g.Scenes().CurrentMap())
	}
	if got, want := g.Player().Position, g.Scenes().Current().Spawn(world.DefaultSpawn); got != want {
		t.Errorf("position = %v, want default spawn %v", got, want)
	}
	if diff := cmp.Diff([]string{"scene2"}, g.Scenes().Loaded()); diff != "" {
		t.Errorf("loaded scenes mismatch (-want +got):\n%s", diff)
	}
	if f.scenes.Loaded("scene1") {
		t.Error("scene1 still cached after leaving it")
	}
}

func TestBlockedMoveStays(t *testing.T) {
	f := newFixture(t)
	cfg := startConfig
	cfg.Start = world.Point{X: 1, Y: 1}
	g, _ := f.newGame(t, cfg)

	g.handleKey(tcell.KeyUp, 0)
	g.Step(context.Background(), 100*time.Millisecond)
	if got := g.Player().Position; got != cfg.Start {
		t.Errorf("position = %v, want unchanged %v", got, cfg.Start)
	}
}

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name        string
		key         tcell.Key
		r           rune
		wantPending int
		wantRunning bool
	}{
		{"arrow", tcell.KeyLeft, 0, 1, true},
		{"wasd", tcell.KeyRune, 'w', 1, true},
		{"other rune", tcell.KeyRune, 'x', 0, true},
		{"q quits", tcell.KeyRune, 'q', 0, false},
		{"escape quits", tcell.KeyEscape, 0, 0, false},
		{"ctrl-c quits", tcell.KeyCtrlC, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			g, _ := f.newGame(t, startConfig)
			g.handleKey(tt.key, tt.r)
			if g.Player().Pending() != tt.wantPending {
				t.Errorf("Pending() = %d, want %d", g.Player().Pending(), tt.wantPending)
			}
			if g.Running() != tt.wantRunning {
				t.Errorf("Running() = %v, want %v", g.Running(), tt.wantRunning)
			}
		})
	}
}

func TestStepDrawsStatusLine(t *testing.T) {
	f := newFixture(t)
	g, sim := f.newGame(t, startConfig)

	g.Step(context.Background(), time.Millisecond)

	// The camera keeps the last row of the 24-row screen for the status.
	if r, _, _, _ := sim.GetContent(0, 23); r != 't' {
		t.Errorf("status line starts with %q, want 't'", r)
	}
}

func TestQuitSavesAndRestores(t *testing.T) {
	f := newFixture(t)
	cfg := startConfig
	cfg.Start = world.Point{X: 28, Y: 4}
	g, _ := f.newGame(t, cfg)
	g.handleKey(tcell.KeyRight, 0)
	g.Step(context.Background(), 100*time.Millisecond)

	ctx := context.Background()
	if err := g.Quit(ctx); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if err := g.Quit(ctx); err != nil {
		t.Errorf("second Quit: %v", err)
	}
	if err := f.saves.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f.reopenHandlers(t)
	save, ok, err := LoadSave(f.saves)
	if err != nil || !ok {
		t.Fatalf("LoadSave = %v, %v", ok, err)
	}
	want := Save{Map: "testb", Scene: "scene1", X: 1, Y: 3}
	if diff := cmp.Diff(want, save); diff != "" {
		t.Errorf("save mismatch (-want +got):\n%s", diff)
	}

	restored, _ := f.newGame(t, startConfig)
	if restored.Scenes().CurrentMap() != "testb" || restored.Player().Position != save.Position() {
		t.Errorf("restored at %s %v, want testb %v",
			restored.Scenes().CurrentMap(), restored.Player().Position, save.Position())
	}
}

func TestBrokenSaveFallsBackToStart(t *testing.T) {
	f := newFixture(t)
	if err := StoreSave(f.saves, Save{Map: "gone", Scene: "scene1", X: 3, Y: 3}); err != nil {
		t.Fatal(err)
	}
	g, _ := f.newGame(t, startConfig)

	if g.Scenes().CurrentMap() != "testa" || g.Player().Position != startConfig.Start {
		t.Errorf("got %s %v, want start", g.Scenes().CurrentMap(), g.Player().Position)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, startConfig)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if g.Running() {
		t.Error("Running() after Run returned")
	}
	if _, ok := f.saves.Entry(SaveKey); !ok {
		t.Error("Run did not save on exit")
	}
}

func TestNotifyChangedReloadsScene(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, startConfig)
	before := g.Scenes().Current()

	g.NotifyChanged("scene1")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Scenes().Current() == before {
		t.Error("scene1 was not rebuilt")
	}
}

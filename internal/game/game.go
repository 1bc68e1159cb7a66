// Package game provides the main game loop and state management.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samdwyer/tilerealm/internal/apperr"
	"github.com/samdwyer/tilerealm/internal/entity"
	"github.com/samdwyer/tilerealm/internal/resources"
	"github.com/samdwyer/tilerealm/internal/scene"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/telemetry"
	"github.com/samdwyer/tilerealm/internal/ui"
	"github.com/samdwyer/tilerealm/internal/world"
)

// Deps are the components a game is built from.
type Deps struct {
	Screen *ui.Screen
	Store  *storage.Store
	Scenes *resources.Handler
	Saves  *resources.Handler
	Logger *slog.Logger
}

// Game holds the entire game state. Everything but NotifyChanged must be
// called from the loop goroutine.
type Game struct {
	screen   *ui.Screen
	renderer *ui.Renderer
	scenes   *scene.Manager
	sceneRes *resources.Handler
	saves    *resources.Handler
	logger   *slog.Logger

	options Options
	fps     int
	player  *entity.Player
	camera  *ui.Camera
	changed chan string
	running bool
	closed  bool
}

// New creates a game, restores the last save and enters its map.
func New(ctx context.Context, deps Deps, cfg Config) (*Game, error) {
	ctx, span := telemetry.Tracer("game").Start(ctx, "game.init")
	defer span.End()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Game{
		screen:   deps.Screen,
		renderer: ui.NewRenderer(deps.Screen),
		scenes:   scene.NewManager(deps.Scenes, logger),
		sceneRes: deps.Scenes,
		saves:    deps.Saves,
		logger:   logger,
		options:  readOptions(deps.Store, logger),
		changed:  make(chan string, 16),
		running:  true,
	}

	g.fps = g.options.FPS
	if cfg.MaxFPS > 0 && (g.fps <= 0 || g.fps > cfg.MaxFPS) {
		g.fps = cfg.MaxFPS
	}
	g.camera = &ui.Camera{}
	g.resize()

	mapName, sceneName, pos := cfg.StartMap, cfg.StartScene, cfg.Start
	save, ok, err := LoadSave(deps.Saves)
	switch {
	case err != nil:
		logger.Warn("can't read save, using start position", "error", err)
	case ok:
		mapName, sceneName, pos = save.Map, save.Scene, save.Position()
	}
	g.player = entity.NewPlayer(pos)

	if err := g.UpdateMap(ctx, mapName, sceneName); err != nil {
		if !ok {
			telemetry.Fail(span, err)
			return nil, fmt.Errorf("game: enter start map: %w", err)
		}
		logger.Warn("saved map unavailable, using start position", "error", err)
		if err := g.UpdateMap(ctx, cfg.StartMap, cfg.StartScene); err != nil {
			telemetry.Fail(span, err)
			return nil, fmt.Errorf("game: enter start map: %w", err)
		}
		g.player.SetPosition(cfg.Start)
	}

	span.SetAttributes(
		attribute.String("scene", g.scenes.CurrentScene()),
		attribute.String("map", g.scenes.CurrentMap()),
		attribute.Int("player.x", g.player.Position.X),
		attribute.Int("player.y", g.player.Position.Y),
		attribute.Bool("restored", ok),
		attribute.Int("fps", g.fps),
	)
	logger.Info("game initialized", "scene", g.scenes.CurrentScene(), "map", g.scenes.CurrentMap(), "fps", g.fps)
	return g, nil
}

// readOptions reads each option from the default storage file. Missing
// values keep their defaults.
func readOptions(store *storage.Store, logger *slog.Logger) Options {
	opts := defaultOptions()
	if store == nil {
		return opts
	}
	read := func(name string, dst any) {
		var err error
		switch p := dst.(type) {
		case *string:
			*p, err = storage.Param[string](store, name, "")
		case *int:
			*p, err = storage.Param[int](store, name, "")
		case *[2]int:
			*p, err = storage.Param[[2]int](store, name, "")
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("bad option, using default", "option", name, "error", err)
		}
	}

	windowName, size, fps := opts.WindowName, opts.ScreenSize, opts.FPS
	read("window_name", &windowName)
	read("screen_size", &size)
	read("fps", &fps)
	if windowName != "" {
		opts.WindowName = windowName
	}
	if size[0] > 0 && size[1] > 1 {
		opts.ScreenSize = size
	}
	if fps > 0 {
		opts.FPS = fps
	}
	return opts
}

// Options returns the in-game settings in use.
func (g *Game) Options() Options { return g.options }

// FPS returns the frame rate of the loop.
func (g *Game) FPS() int { return g.fps }

// Player returns the player.
func (g *Game) Player() *entity.Player { return g.player }

// Scenes returns the scene manager.
func (g *Game) Scenes() *scene.Manager { return g.scenes }

// Running reports whether the loop should keep going.
func (g *Game) Running() bool { return g.running }

// UpdateMap switches map and scene, then drops the other scenes. Empty
// names keep the current ones.
func (g *Game) UpdateMap(ctx context.Context, mapName, sceneName string) error {
	if err := g.scenes.ChangeMap(ctx, mapName, sceneName); err != nil {
		return err
	}
	g.scenes.Cleanup()
	return nil
}

// NotifyChanged queues a scene file changed on disk for reload. It is safe
// to call from any goroutine and drops the key when the queue is full.
func (g *Game) NotifyChanged(key string) {
	select {
	case g.changed <- key:
	default:
		g.logger.Warn("reload queue full, dropping change", "scene", key)
	}
}

// Step advances the game by dt and redraws.
func (g *Game) Step(ctx context.Context, dt time.Duration) {
	cur := g.scenes.Current()
	if cur == nil {
		return
	}
	if g.player.Update(dt, cur) {
		if p, ok := cur.PortalAt(g.player.Feet()); ok {
			g.enterPortal(ctx, p)
		}
	}
	g.draw()
}

func (g *Game) enterPortal(ctx context.Context, p world.Portal) {
	ctx, span := telemetry.Tracer("game").Start(ctx, "portal.enter")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal", p.Name),
		attribute.String("target.map", p.TargetMap),
		attribute.String("target.scene", p.TargetScene),
	)

	exit, err := g.scenes.PortalExit(p)
	if err != nil {
		g.logger.Warn("portal leads nowhere", "portal", p.Name, "error", err)
		telemetry.Fail(span, err)
		return
	}
	if err := g.UpdateMap(ctx, p.TargetMap, p.TargetScene); err != nil {
		g.logger.Warn("can't enter portal", "portal", p.Name, "error", err)
		telemetry.Fail(span, err)
		return
	}
	g.player.SetPosition(exit)
}

func (g *Game) draw() {
	cur := g.scenes.Current()
	if cur == nil {
		return
	}
	g.camera.Center(g.player.Position, cur.Width, cur.Height)
	status := fmt.Sprintf("%s | %s/%s | %d,%d", g.options.WindowName,
		g.scenes.CurrentScene(), g.scenes.CurrentMap(), g.player.Position.X, g.player.Position.Y)
	g.renderer.Render(cur, g.player, g.camera, status)
}

// resize fits the camera to the smaller of the screen_size option and the
// terminal, keeping the last row for the status line.
func (g *Game) resize() {
	w, h := g.screen.Size()
	g.camera.Width = min(g.options.ScreenSize[0], w)
	g.camera.Height = max(min(g.options.ScreenSize[1], h)-1, 0)
}

// Run executes the main game loop until the player quits or ctx is done,
// then saves and closes the screen.
func (g *Game) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan tcell.Event, 16)
	eg, ctx := errgroup.WithContext(ctx)

	// PollEvent returns nil once Quit closes the screen.
	eg.Go(func() error {
		defer close(events)
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				return nil
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	})

	eg.Go(func() error {
		defer cancel()
		ticker := time.NewTicker(time.Second / time.Duration(max(g.fps, 1)))
		defer ticker.Stop()

		g.draw()
		last := time.Now()
		for g.running {
			select {
			case <-ctx.Done():
				g.running = false
			case ev, ok := <-events:
				if !ok {
					g.running = false
					continue
				}
				g.handleEvent(ev)
			case key := <-g.changed:
				if err := g.scenes.Reload(key); err != nil {
					g.logger.Warn("can't reload scene", "scene", key, "error", err)
				}
			case now := <-ticker.C:
				g.Step(ctx, now.Sub(last))
				last = now
			}
		}
		return g.Quit(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (g *Game) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		g.handleKey(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		g.screen.Sync()
		g.resize()
	}
}

// handleKey processes keyboard input.
func (g *Game) handleKey(key tcell.Key, r rune) {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		g.running = false

	case tcell.KeyUp:
		g.player.Queue(0, -1)
	case tcell.KeyDown:
		g.player.Queue(0, 1)
	case tcell.KeyLeft:
		g.player.Queue(-1, 0)
	case tcell.KeyRight:
		g.player.Queue(1, 0)

	case tcell.KeyRune:
		switch r {
		case 'q', 'Q':
			g.running = false
		case 'w', 'W':
			g.player.Queue(0, -1)
		case 's', 'S':
			g.player.Queue(0, 1)
		case 'a', 'A':
			g.player.Queue(-1, 0)
		case 'd', 'D':
			g.player.Queue(1, 0)
		}
	}
}

// Quit saves the player position, flushes the resource handlers and closes
// the screen. Later calls do nothing.
func (g *Game) Quit(ctx context.Context) error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.running = false

	save := Save{
		Map:   g.scenes.CurrentMap(),
		Scene: g.scenes.CurrentScene(),
		X:     g.player.Position.X,
		Y:     g.player.Position.Y,
	}
	var errs []error
	if err := StoreSave(g.saves, save); err != nil {
		errs = append(errs, fmt.Errorf("game: save: %w", err))
	}
	errs = append(errs, g.saves.FlushAll(ctx), g.sceneRes.FlushAll(ctx))

	g.screen.Close()
	g.logger.Info("game has quit", "scene", save.Scene, "map", save.Map, "x", save.X, "y", save.Y)
	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samdwyer/tilerealm/internal/config"
	"github.com/samdwyer/tilerealm/internal/game"
	"github.com/samdwyer/tilerealm/internal/gamedata"
	"github.com/samdwyer/tilerealm/internal/resources"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/world"
	pkgconfig "github.com/samdwyer/tilerealm/pkg/config"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File
	store   *storage.Store
	scenes  *resources.Handler
	saves   *resources.Handler
}

// openApp loads the config, opens the log file, seeds missing default
// assets and opens the store and resource handlers.
func openApp(cmd *cli.Command) (*app, error) {
	cfg := config.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.Root().String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logFile, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.App.LogLevel})),
		logFile: logFile,
	}

	if err := a.open(); err != nil {
		_ = logFile.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open() error {
	storeFS, err := storage.NewFS(a.cfg.Storage.Path)
	if err != nil {
		return err
	}
	resFS, err := storage.NewFS(a.cfg.Resources.Path)
	if err != nil {
		return err
	}
	for bundle, dst := range map[string]*storage.FS{
		gamedata.BundleStorage:   storeFS,
		gamedata.BundleResources: resFS,
	} {
		copied, err := gamedata.Seed(bundle, dst)
		if err != nil {
			return err
		}
		if len(copied) > 0 {
			a.logger.Info("default assets installed", "bundle", bundle, "files", copied)
		}
	}

	if a.store, err = storage.Open(storeFS, a.logger); err != nil {
		return err
	}
	if a.scenes, err = resources.Open(resFS, a.cfg.Resources.Scenes, a.cfg.Game.StartScene, a.logger); err != nil {
		return err
	}
	if a.saves, err = resources.Open(resFS, a.cfg.Resources.Saves, game.SaveKey, a.logger); err != nil {
		return err
	}
	return nil
}

// close writes the handler indexes and the shortcut index, then closes
// the log file.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for _, h := range []*resources.Handler{a.scenes, a.saves} {
		if h != nil {
			errs = append(errs, h.Close(ctx))
		}
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.logFile.Close())
	return errors.Join(errs...)
}

func (a *app) gameConfig() game.Config {
	g := a.cfg.Game
	return game.Config{
		StartMap:   g.StartMap,
		StartScene: g.StartScene,
		Start:      world.Point{X: g.StartX, Y: g.StartY},
		MaxFPS:     g.MaxFPS,
	}
}

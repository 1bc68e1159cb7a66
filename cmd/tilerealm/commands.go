package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samdwyer/tilerealm/internal/game"
	"github.com/samdwyer/tilerealm/internal/storage"
	"github.com/samdwyer/tilerealm/internal/telemetry"
	"github.com/samdwyer/tilerealm/internal/ui"
)

func runPlay(ctx context.Context, cmd *cli.Command) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if a.cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, a.cfg.Telemetry.Endpoint)
		if err != nil {
			// The game still works without observability.
			a.logger.Warn("telemetry setup failed", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.WithoutCancel(ctx)); err != nil {
					a.logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()
		}
	}

	screen, err := ui.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	g, err := game.New(ctx, game.Deps{
		Screen: screen,
		Store:  a.store,
		Scenes: a.scenes,
		Saves:  a.saves,
		Logger: a.logger,
	}, a.gameConfig())
	if err != nil {
		screen.Close()
		return err
	}

	if a.cfg.Resources.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := a.scenes.Watch(watchCtx, g.NotifyChanged); err != nil {
				a.logger.Warn("scene watcher stopped", "error", err)
			}
		}()
	}

	if err := g.Run(ctx); err != nil {
		return fmt.Errorf("game error: %w", err)
	}
	return nil
}

func runParamGet(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: param get NAME [--file FILE]")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(ctx)) }()

	v, err := a.store.GetParam(cmd.Args().Get(0), cmd.String("file"))
	if err != nil {
		return err
	}
	out, err := storage.Encode(storage.FormatJSON, v)
	if err != nil {
		return err
	}
	_, err = writer(cmd).Write(out)
	return err
}

func runParamSet(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: param set NAME VALUE [--file FILE]")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(ctx)) }()

	return a.store.SetParam(cmd.Args().Get(0), parseValue(cmd.Args().Get(1)), cmd.String("file"))
}

// parseValue reads raw as JSON, or as a plain string when it is not JSON.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func runShortcutList(ctx context.Context, cmd *cli.Command) (err error) {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(ctx)) }()

	shortcuts := a.store.Shortcuts()
	aliases := make([]string, 0, len(shortcuts))
	for short := range shortcuts {
		aliases = append(aliases, short)
	}
	sort.Strings(aliases)

	w := writer(cmd)
	for _, short := range aliases {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", short, shortcuts[short]); err != nil {
			return err
		}
	}
	return nil
}

func runShortcutAdd(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: shortcut add FILE SHORTCUT")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(ctx)) }()

	return a.store.AddShortcut(cmd.Args().Get(0), cmd.Args().Get(1))
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

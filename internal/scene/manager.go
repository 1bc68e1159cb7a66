// Package scene loads scenes (groups of named maps) from a resource handler
// and tracks the active map.
package scene

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/tilerealm/internal/apperr"
	"github.com/samdwyer/tilerealm/internal/resources"
	"github.com/samdwyer/tilerealm/internal/telemetry"
	"github.com/samdwyer/tilerealm/internal/world"
)

// Def is the stored form of a scene.
type Def struct {
	Name string                  `json:"name"`
	Maps map[string]world.MapDef `json:"maps"`
}

// Manager owns the built maps of every loaded scene and the current
// selection. It is not safe for concurrent use.
type Manager struct {
	handler *resources.Handler
	logger  *slog.Logger

	scenes       map[string]map[string]*world.Map
	currentScene string
	currentMap   string
}

// NewManager returns a manager reading scenes from h.
func NewManager(h *resources.Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handler: h,
		logger:  logger,
		scenes:  make(map[string]map[string]*world.Map),
	}
}

// load returns the built maps of a scene, reading it on first use.
func (m *Manager) load(sceneName string) (map[string]*world.Map, error) {
	if maps, ok := m.scenes[sceneName]; ok {
		return maps, nil
	}
	maps, err := m.build(sceneName)
	if err != nil {
		return nil, err
	}
	m.scenes[sceneName] = maps
	m.logger.Debug("scene loaded", "scene", sceneName, "maps", len(maps))
	return maps, nil
}

// build reads a scene definition and builds every map in it.
func (m *Manager) build(sceneName string) (map[string]*world.Map, error) {
	def, err := resources.ReadAs[Def](m.handler, sceneName)
	if err != nil {
		return nil, fmt.Errorf("scene: load %s: %w", sceneName, err)
	}
	if len(def.Maps) == 0 {
		return nil, fmt.Errorf("scene: %s has no maps: %w", sceneName, apperr.ErrNotFound)
	}
	maps := make(map[string]*world.Map, len(def.Maps))
	for name, md := range def.Maps {
		built, err := world.Build(name, md)
		if err != nil {
			return nil, fmt.Errorf("scene: %s: %w", sceneName, err)
		}
		maps[name] = built
	}
	return maps, nil
}

func (m *Manager) lookup(mapName, sceneName string) (*world.Map, error) {
	maps, err := m.load(sceneName)
	if err != nil {
		return nil, err
	}
	mp, ok := maps[mapName]
	if !ok {
		return nil, fmt.Errorf("scene: map %q in %s: %w", mapName, sceneName, apperr.ErrNotFound)
	}
	return mp, nil
}

// ChangeMap selects a map. An empty name keeps the current map or scene.
func (m *Manager) ChangeMap(ctx context.Context, mapName, sceneName string) error {
	_, span := telemetry.Tracer("scene").Start(ctx, "scene.change_map")
	defer span.End()

	if sceneName == "" {
		sceneName = m.currentScene
	}
	if mapName == "" {
		mapName = m.currentMap
	}
	span.SetAttributes(
		attribute.String("scene", sceneName),
		attribute.String("map", mapName),
		attribute.String("from_scene", m.currentScene),
		attribute.String("from_map", m.currentMap),
	)

	if _, err := m.lookup(mapName, sceneName); err != nil {
		telemetry.Fail(span, err)
		return err
	}
	m.currentScene, m.currentMap = sceneName, mapName
	m.logger.Info("map changed", "scene", sceneName, "map", mapName)
	return nil
}

// Cleanup drops every scene except the current one from memory and from
// the resource cache.
func (m *Manager) Cleanup() {
	for name := range m.scenes {
		if name == m.currentScene {
			continue
		}
		delete(m.scenes, name)
		if err := m.handler.Unload(name); err != nil {
			m.logger.Warn("can't unload scene", "scene", name, "error", err)
		}
	}
}

// Reload drops a cached scene so it is rebuilt on next use. The current
// scene is rebuilt immediately; if the new definition is broken or lost the
// current map, the old maps stay in use and the error is returned.
func (m *Manager) Reload(sceneName string) error {
	if sceneName != m.currentScene {
		delete(m.scenes, sceneName)
		return nil
	}
	maps, err := m.build(sceneName)
	if err != nil {
		return fmt.Errorf("scene: reload %s: %w", sceneName, err)
	}
	if _, ok := maps[m.currentMap]; !ok {
		return fmt.Errorf("scene: reload %s: map %q: %w", sceneName, m.currentMap, apperr.ErrNotFound)
	}
	m.scenes[sceneName] = maps
	m.logger.Info("scene reloaded", "scene", sceneName)
	return nil
}

// Loaded returns the names of the scenes held in memory.
func (m *Manager) Loaded() []string {
	out := make([]string, 0, len(m.scenes))
	for name := range m.scenes {
		out = append(out, name)
	}
	return out
}

// Current returns the active map, or nil before the first ChangeMap.
func (m *Manager) Current() *world.Map {
	maps, ok := m.scenes[m.currentScene]
	if !ok {
		return nil
	}
	return maps[m.currentMap]
}

// CurrentScene returns the active scene name.
func (m *Manager) CurrentScene() string { return m.currentScene }

// CurrentMap returns the active map name.
func (m *Manager) CurrentMap() string { return m.currentMap }

// Portals returns the portals of the active map.
func (m *Manager) Portals() []world.Portal {
	if cur := m.Current(); cur != nil {
		return cur.Portals
	}
	return nil
}

// PortalExit returns where a portal puts the player in its target map. A
// portal without a target scene stays in the current scene.
func (m *Manager) PortalExit(p world.Portal) (world.Point, error) {
	sceneName := p.TargetScene
	if sceneName == "" {
		sceneName = m.currentScene
	}
	target, err := m.lookup(p.TargetMap, sceneName)
	if err != nil {
		return world.Point{}, err
	}
	return target.Spawn(p.Exit), nil
}

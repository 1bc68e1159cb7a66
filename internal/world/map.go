package world

import (
	"fmt"
	"math/rand"
)

// DefaultSpawn is the spawn point used when a portal names no exit.
const DefaultSpawn = "default"

// Portal is a map region that moves the player to a spawn point of another
// map, possibly in another scene.
type Portal struct {
	Name        string `json:"name"`
	Rect        Rect   `json:"rect"`
	TargetMap   string `json:"targeted_map_name"`
	TargetScene string `json:"targeted_scene_name"`
	Exit        string `json:"exit"`
}

// Map is a named tile layout.
type Map struct {
	Name    string
	Width   int
	Height  int
	Tiles   [][]Tile
	Spawns  map[string]Point
	Portals []Portal
	Rooms   []Rect
}

// GeneratorDef asks for a procedurally generated layout.
type GeneratorDef struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Seed   int64 `json:"seed"`
}

// MapDef is the stored form of a map: either a literal layout or a
// generator block, plus spawn points and portals.
type MapDef struct {
	Layout    []string         `json:"layout,omitempty"`
	Generator *GeneratorDef    `json:"generator,omitempty"`
	Spawns    map[string]Point `json:"spawns,omitempty"`
	Portals   []Portal         `json:"portals,omitempty"`
}

// Build turns a definition into a Map.
func Build(name string, def MapDef) (*Map, error) {
	var (
		m   *Map
		err error
	)
	switch {
	case def.Generator != nil:
		g := def.Generator
		m, err = Generate(g.Width, g.Height, rand.New(rand.NewSource(g.Seed)))
	case len(def.Layout) > 0:
		m, err = ParseLayout(def.Layout)
	default:
		err = fmt.Errorf("world: map %q has neither layout nor generator", name)
	}
	if err != nil {
		return nil, fmt.Errorf("world: map %q: %w", name, err)
	}
	m.Name = name

	for k, p := range def.Spawns {
		if !m.inBounds(p) {
			return nil, fmt.Errorf("world: map %q: spawn %q at (%d,%d) is out of bounds", name, k, p.X, p.Y)
		}
		m.Spawns[k] = p
	}
	if _, ok := m.Spawns[DefaultSpawn]; !ok && len(m.Rooms) > 0 {
		m.Spawns[DefaultSpawn] = m.Rooms[0].Center()
	}
	for _, p := range def.Portals {
		if p.Rect.Width == 0 || p.Rect.Height == 0 {
			// Generated maps have no fixed coordinates; anchor the portal
			// in the last room so it is reachable.
			if len(m.Rooms) == 0 {
				return nil, fmt.Errorf("world: map %q: portal %q has no rect", name, p.Name)
			}
			c := m.Rooms[len(m.Rooms)-1].Center()
			p.Rect = Rect{X: c.X, Y: c.Y, Width: 1, Height: 1}
		}
		m.Portals = append(m.Portals, p)
	}
	return m, nil
}

// ParseLayout builds a map from rows of tile characters. Short rows are
// padded with wall.
func ParseLayout(rows []string) (*Map, error) {
	width := 0
	for _, row := range rows {
		if n := len([]rune(row)); n > width {
			width = n
		}
	}
	if width == 0 {
		return nil, fmt.Errorf("world: empty layout")
	}
	m := NewMap(width, len(rows))
	for y, row := range rows {
		for x, r := range []rune(row) {
			t, err := ParseTile(r)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", y, x, err)
			}
			m.Tiles[y][x] = t
		}
	}
	return m, nil
}

// NewMap creates a map filled with walls.
func NewMap(width, height int) *Map {
	tiles := make([][]Tile, height)
	for y := range tiles {
		tiles[y] = make([]Tile, width)
		for x := range tiles[y] {
			tiles[y][x] = TileWall
		}
	}
	return &Map{
		Width:  width,
		Height: height,
		Tiles:  tiles,
		Spawns: make(map[string]Point),
	}
}

func (m *Map) inBounds(p Point) bool {
	return p.X >= 0 && p.X < m.Width && p.Y >= 0 && p.Y < m.Height
}

// IsPassable returns true if the given position can be walked on.
func (m *Map) IsPassable(p Point) bool {
	return m.inBounds(p) && m.Tiles[p.Y][p.X].IsPassable()
}

// TileAt returns the tile at the given position; outside the map is wall.
func (m *Map) TileAt(p Point) Tile {
	if !m.inBounds(p) {
		return TileWall
	}
	return m.Tiles[p.Y][p.X]
}

// Spawn returns the named spawn point, falling back to the default spawn
// and then to the map center.
func (m *Map) Spawn(name string) Point {
	if p, ok := m.Spawns[name]; ok {
		return p
	}
	if p, ok := m.Spawns[DefaultSpawn]; ok {
		return p
	}
	return Point{X: m.Width / 2, Y: m.Height / 2}
}

// PortalAt returns the first portal touching r.
func (m *Map) PortalAt(r Rect) (Portal, bool) {
	for _, p := range m.Portals {
		if p.Rect.Intersects(r) {
			return p, true
		}
	}
	return Portal{}, false
}

// Package world holds tile maps, their portals and the procedural map
// generator.
package world

import "fmt"

// Tile is a single map cell, stored as its display character.
type Tile rune

const (
	TileWall  Tile = '#'
	TileFloor Tile = '.'
	TileGrass Tile = ','
	TileWater Tile = '~'
	TileDoor  Tile = '+'
)

// ParseTile maps a layout character to a Tile. A space is read as wall so
// ragged layouts are closed.
func ParseTile(r rune) (Tile, error) {
	switch t := Tile(r); t {
	case TileWall, TileFloor, TileGrass, TileWater, TileDoor:
		return t, nil
	case ' ':
		return TileWall, nil
	default:
		return 0, fmt.Errorf("world: unknown tile %q", r)
	}
}

// IsPassable returns true if the tile can be walked on.
func (t Tile) IsPassable() bool {
	return t == TileFloor || t == TileGrass || t == TileDoor
}

// Rune returns the tile's display character.
func (t Tile) Rune() rune {
	return rune(t)
}

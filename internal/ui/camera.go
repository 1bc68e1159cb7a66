package ui

import "github.com/samdwyer/tilerealm/internal/world"

// Camera is the visible window onto a map, in map coordinates.
type Camera struct {
	X, Y          int
	Width, Height int
}

// Center moves the camera so target sits in the middle of the view,
// clamped so the view never leaves a map larger than itself. A map smaller
// than the view is pinned at the origin.
func (c *Camera) Center(target world.Point, mapWidth, mapHeight int) {
	c.X = clamp(target.X-c.Width/2, 0, mapWidth-c.Width)
	c.Y = clamp(target.Y-c.Height/2, 0, mapHeight-c.Height)
}

// ToScreen converts a map position to view coordinates.
func (c *Camera) ToScreen(p world.Point) (int, int) {
	return p.X - c.X, p.Y - c.Y
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/samdwyer/tilerealm/internal/entity"
	"github.com/samdwyer/tilerealm/internal/world"
)

// Renderer handles drawing the game to the screen.
type Renderer struct {
	screen *Screen
}

// NewRenderer creates a new renderer for the given screen.
func NewRenderer(screen *Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Render draws the part of m under the camera, the player on top and a
// status line below the view.
func (r *Renderer) Render(m *world.Map, player *entity.Player, cam *Camera, status string) {
	r.screen.Clear()

	for sy := 0; sy < cam.Height; sy++ {
		for sx := 0; sx < cam.Width; sx++ {
			p := world.Point{X: cam.X + sx, Y: cam.Y + sy}
			if p.X >= m.Width || p.Y >= m.Height {
				continue
			}
			tile := m.TileAt(p)
			r.screen.SetContent(sx, sy, tile.Rune(), tileStyle(tile))
		}
	}

	portalStyle := tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	for _, portal := range m.Portals {
		for y := portal.Rect.Y; y < portal.Rect.Y+portal.Rect.Height; y++ {
			for x := portal.Rect.X; x < portal.Rect.X+portal.Rect.Width; x++ {
				if sx, sy, ok := r.visible(cam, world.Point{X: x, Y: y}); ok {
					r.screen.SetContent(sx, sy, 'O', portalStyle)
				}
			}
		}
	}

	if sx, sy, ok := r.visible(cam, player.Position); ok {
		playerStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
		r.screen.SetContent(sx, sy, player.Symbol, playerStyle)
	}

	r.RenderMessage(status, cam.Height)
	r.screen.Show()
}

func (r *Renderer) visible(cam *Camera, p world.Point) (int, int, bool) {
	sx, sy := cam.ToScreen(p)
	return sx, sy, sx >= 0 && sx < cam.Width && sy >= 0 && sy < cam.Height
}

// tileStyle returns the appropriate style for a tile type.
func tileStyle(tile world.Tile) tcell.Style {
	switch tile {
	case world.TileWall:
		return tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	case world.TileFloor:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	case world.TileGrass:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case world.TileWater:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	case world.TileDoor:
		return tcell.StyleDefault.Foreground(tcell.ColorOlive)
	default:
		return tcell.StyleDefault
	}
}

// RenderMessage writes msg on row y.
func (r *Renderer) RenderMessage(msg string, y int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for i, ch := range []rune(msg) {
		r.screen.SetContent(i, y, ch, style)
	}
}

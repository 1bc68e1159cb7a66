// Package entity provides the player.
package entity

import (
	"time"

	"github.com/samdwyer/tilerealm/internal/world"
)

const (
	// DefaultMoveDelay is the time between two steps of a held direction.
	DefaultMoveDelay = 80 * time.Millisecond
	// maxQueuedMoves bounds key-repeat buffering.
	maxQueuedMoves = 4
)

// Player is the single controllable character.
type Player struct {
	Position  world.Point
	Symbol    rune
	MoveDelay time.Duration

	queue    []world.Point
	cooldown time.Duration
}

// NewPlayer creates a player at the given position.
func NewPlayer(pos world.Point) *Player {
	return &Player{
		Position:  pos,
		Symbol:    '@',
		MoveDelay: DefaultMoveDelay,
	}
}

// SetPosition teleports the player and drops pending moves.
func (p *Player) SetPosition(pos world.Point) {
	p.Position = pos
	p.queue = p.queue[:0]
}

// Queue buffers a one-tile step. Steps beyond the buffer are dropped.
func (p *Player) Queue(dx, dy int) {
	if len(p.queue) >= maxQueuedMoves {
		return
	}
	p.queue = append(p.queue, world.Point{X: dx, Y: dy})
}

// Pending returns the number of buffered steps.
func (p *Player) Pending() int { return len(p.queue) }

// Update advances the player by dt, taking at most one buffered step per
// MoveDelay. Steps into impassable tiles are consumed without moving.
// It reports whether the position changed.
func (p *Player) Update(dt time.Duration, m *world.Map) bool {
	if p.cooldown > 0 {
		p.cooldown -= dt
	}
	moved := false
	for p.cooldown <= 0 && len(p.queue) > 0 {
		step := p.queue[0]
		p.queue = p.queue[1:]
		next := world.Point{X: p.Position.X + step.X, Y: p.Position.Y + step.Y}
		if m != nil && !m.IsPassable(next) {
			continue
		}
		p.Position = next
		p.cooldown += p.MoveDelay
		moved = true
	}
	if len(p.queue) == 0 && p.cooldown < 0 {
		p.cooldown = 0
	}
	return moved
}

// Feet returns the collision rectangle used for portals.
func (p *Player) Feet() world.Rect {
	return world.Rect{X: p.Position.X, Y: p.Position.Y, Width: 1, Height: 1}
}

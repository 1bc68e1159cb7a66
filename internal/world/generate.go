package world

import (
	"fmt"
	"math/rand"
)

// BSP parameters
const (
	minRoomSize = 4
	maxRoomSize = 12
	minLeafSize = 8
)

// MinGeneratedSize is the smallest width or height Generate accepts.
const MinGeneratedSize = minLeafSize + 2

// Generate carves rooms and corridors into a wall-filled map using binary
// space partitioning. The same rng seed gives the same map.
func Generate(width, height int, rng *rand.Rand) (*Map, error) {
	if width < MinGeneratedSize || height < MinGeneratedSize {
		return nil, fmt.Errorf("generated map must be at least %dx%d, got %dx%d",
			MinGeneratedSize, MinGeneratedSize, width, height)
	}
	g := &generator{m: NewMap(width, height), rng: rng}

	root := &bspNode{x: 1, y: 1, width: width - 2, height: height - 2}
	g.splitNode(root)
	g.createRooms(root)
	g.connectRooms(root)
	return g.m, nil
}

type generator struct {
	m   *Map
	rng *rand.Rand
}

type bspNode struct {
	x, y          int
	width, height int
	left, right   *bspNode
	room          *Rect
}

func (n *bspNode) isLeaf() bool {
	return n.left == nil && n.right == nil
}

func (g *generator) splitNode(node *bspNode) {
	canSplitW := node.width >= minLeafSize*2
	canSplitH := node.height >= minLeafSize*2

	var horizontal bool
	switch {
	case canSplitW && node.width > node.height:
		horizontal = false
	case canSplitH:
		horizontal = true
	case canSplitW:
		horizontal = false
	default:
		return
	}

	size := node.width
	if horizontal {
		size = node.height
	}
	lo, hi := minLeafSize, size-minLeafSize
	if hi < lo {
		return
	}
	split := lo + g.rng.Intn(hi-lo+1)

	if horizontal {
		node.left = &bspNode{x: node.x, y: node.y, width: node.width, height: split}
		node.right = &bspNode{x: node.x, y: node.y + split, width: node.width, height: node.height - split}
	} else {
		node.left = &bspNode{x: node.x, y: node.y, width: split, height: node.height}
		node.right = &bspNode{x: node.x + split, y: node.y, width: node.width - split, height: node.height}
	}
	g.splitNode(node.left)
	g.splitNode(node.right)
}

func (g *generator) createRooms(node *bspNode) {
	if node == nil {
		return
	}
	if !node.isLeaf() {
		g.createRooms(node.left)
		g.createRooms(node.right)
		return
	}

	// Leaves are at least minLeafSize wide, so a room of up to size-2 fits
	// with a one-tile margin.
	w := randomSize(g.rng, node.width-2)
	h := randomSize(g.rng, node.height-2)
	if w < minRoomSize || h < minRoomSize {
		return
	}
	room := Rect{
		X:      node.x + 1 + g.rng.Intn(node.width-w-1),
		Y:      node.y + 1 + g.rng.Intn(node.height-h-1),
		Width:  w,
		Height: h,
	}
	node.room = &room
	g.m.Rooms = append(g.m.Rooms, room)
	g.carve(room)
}

// randomSize picks a room dimension in [minRoomSize, min(maxRoomSize, limit)].
func randomSize(rng *rand.Rand, limit int) int {
	hi := min(maxRoomSize, limit)
	if hi < minRoomSize {
		return hi
	}
	return minRoomSize + rng.Intn(hi-minRoomSize+1)
}

func (g *generator) carve(r Rect) {
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			g.setFloor(x, y)
		}
	}
}

// setFloor carves one tile, keeping the outer border solid.
func (g *generator) setFloor(x, y int) {
	if x > 0 && x < g.m.Width-1 && y > 0 && y < g.m.Height-1 {
		g.m.Tiles[y][x] = TileFloor
	}
}

func (g *generator) connectRooms(node *bspNode) {
	if node == nil || node.isLeaf() {
		return
	}
	g.connectRooms(node.left)
	g.connectRooms(node.right)

	a, b := anyRoom(node.left), anyRoom(node.right)
	if a != nil && b != nil {
		g.carveCorridor(*a, *b)
	}
}

func anyRoom(node *bspNode) *Rect {
	if node == nil {
		return nil
	}
	if node.room != nil {
		return node.room
	}
	if r := anyRoom(node.left); r != nil {
		return r
	}
	return anyRoom(node.right)
}

func (g *generator) carveCorridor(a, b Rect) {
	p1, p2 := a.Center(), b.Center()
	if g.rng.Intn(2) == 0 {
		g.hTunnel(p1.X, p2.X, p1.Y)
		g.vTunnel(p1.Y, p2.Y, p2.X)
	} else {
		g.vTunnel(p1.Y, p2.Y, p1.X)
		g.hTunnel(p1.X, p2.X, p2.Y)
	}
}

func (g *generator) hTunnel(x1, x2, y int) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	for x := x1; x <= x2; x++ {
		g.setFloor(x, y)
	}
}

func (g *generator) vTunnel(y1, y2, x int) {
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		g.setFloor(x, y)
	}
}

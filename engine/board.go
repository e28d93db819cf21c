package engine

import "sort"

// Board is a square grid of stones with two overlay sets: blocked cells
// (temporarily unplayable) and destroyed cells (unplayable until repaired).
// Grid is indexed Grid[y][x].
//
// All mutators treat out-of-bounds coordinates as a no-op and report false.
type Board struct {
	Size      int
	Grid      [][]Player
	blocked   map[Point]struct{}
	destroyed map[Point]struct{}
}

// NewBoard returns an empty size x size board.
func NewBoard(size int) *Board {
	grid := make([][]Player, size)
	for y := range grid {
		grid[y] = make([]Player, size)
	}
	return &Board{
		Size:      size,
		Grid:      grid,
		blocked:   make(map[Point]struct{}),
		destroyed: make(map[Point]struct{}),
	}
}

func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.Size && y >= 0 && y < b.Size
}

// At returns the stone at (x, y), or None when out of bounds.
func (b *Board) At(x, y int) Player {
	if !b.InBounds(x, y) {
		return None
	}
	return b.Grid[y][x]
}

// IsEmpty reports whether (x, y) is playable: in bounds, no stone, not blocked,
// not destroyed.
func (b *Board) IsEmpty(x, y int) bool {
	if !b.InBounds(x, y) || b.Grid[y][x] != None {
		return false
	}
	p := Point{x, y}
	if _, ok := b.blocked[p]; ok {
		return false
	}
	_, ok := b.destroyed[p]
	return !ok
}

func (b *Board) IsDestroyed(x, y int) bool {
	_, ok := b.destroyed[Point{x, y}]
	return ok
}

func (b *Board) IsBlocked(x, y int) bool {
	_, ok := b.blocked[Point{x, y}]
	return ok
}

// IsBorder reports whether (x, y) lies on the outer ring.
func (b *Board) IsBorder(x, y int) bool {
	if !b.InBounds(x, y) {
		return false
	}
	return x == 0 || y == 0 || x == b.Size-1 || y == b.Size-1
}

// Place puts a stone for player on (x, y) if the cell is playable.
func (b *Board) Place(x, y int, player Player) bool {
	if !b.IsEmpty(x, y) {
		return false
	}
	b.Grid[y][x] = player
	return true
}

// Remove clears the stone and any block on (x, y).
func (b *Board) Remove(x, y int) bool {
	if !b.InBounds(x, y) {
		return false
	}
	b.Grid[y][x] = None
	delete(b.blocked, Point{x, y})
	return true
}

func (b *Board) SetBlocked(x, y int, blocked bool) bool {
	if !b.InBounds(x, y) {
		return false
	}
	if blocked {
		b.blocked[Point{x, y}] = struct{}{}
	} else {
		delete(b.blocked, Point{x, y})
	}
	return true
}

// Destroy clears the stone on (x, y) and marks the cell destroyed. Idempotent.
func (b *Board) Destroy(x, y int) bool {
	if !b.InBounds(x, y) {
		return false
	}
	p := Point{x, y}
	b.Grid[y][x] = None
	b.destroyed[p] = struct{}{}
	delete(b.blocked, p)
	return true
}

// Repair clears the destroyed flag only; no stone is restored.
func (b *Board) Repair(x, y int) bool {
	if !b.InBounds(x, y) {
		return false
	}
	delete(b.destroyed, Point{x, y})
	return true
}

// Destroyed returns the destroyed cells in row-major order.
func (b *Board) Destroyed() []Point {
	return sortedPoints(b.destroyed)
}

// Blocked returns the blocked cells in row-major order.
func (b *Board) Blocked() []Point {
	return sortedPoints(b.blocked)
}

// Stones returns the coordinates holding player's stones, row-major.
func (b *Board) Stones(player Player) []Point {
	var out []Point
	for y := 0; y < b.Size; y++ {
		for x := 0; x < b.Size; x++ {
			if b.Grid[y][x] == player {
				out = append(out, Point{x, y})
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	c := NewBoard(b.Size)
	for y := range b.Grid {
		copy(c.Grid[y], b.Grid[y])
	}
	for p := range b.blocked {
		c.blocked[p] = struct{}{}
	}
	for p := range b.destroyed {
		c.destroyed[p] = struct{}{}
	}
	return c
}

func sortedPoints(set map[Point]struct{}) []Point {
	out := make([]Point, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

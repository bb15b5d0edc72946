package grid

import (
	"fmt"
	"math"
)

// Cell is one discrete grid unit.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Add(d Cell) Cell { return Cell{X: c.X + d.X, Y: c.Y + d.Y} }

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Grid is the bounds-checked coordinate system shared by every simulation component.
// World space has +Y pointing north; cell (0,0) covers [0,CellSize)x[0,CellSize).
type Grid struct {
	Width    int
	Height   int
	CellSize float64
}

func New(width, height int, cellSize float64) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("grid: invalid dimensions %dx%d", width, height)
	}
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		return Grid{}, fmt.Errorf("grid: invalid cell size %v", cellSize)
	}
	return Grid{Width: width, Height: height, CellSize: cellSize}, nil
}

func (g Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Index returns the flat row-major index of an in-bounds cell, or -1.
func (g Grid) Index(c Cell) int {
	if !g.InBounds(c) {
		return -1
	}
	return c.Y*g.Width + c.X
}

func (g Grid) CellAt(idx int) Cell {
	return Cell{X: idx % g.Width, Y: idx / g.Width}
}

func (g Grid) Size() int { return g.Width * g.Height }

func (g Grid) WorldToCell(p Vec2) Cell {
	return Cell{
		X: int(math.Floor(p.X / g.CellSize)),
		Y: int(math.Floor(p.Y / g.CellSize)),
	}
}

// CellToWorld returns the centre of c in world units.
func (g Grid) CellToWorld(c Cell) Vec2 {
	return Vec2{
		X: (float64(c.X) + 0.5) * g.CellSize,
		Y: (float64(c.Y) + 0.5) * g.CellSize,
	}
}

// Clamp snaps c to the nearest in-bounds cell.
func (g Grid) Clamp(c Cell) Cell {
	return Cell{X: clampInt(c.X, 0, g.Width-1), Y: clampInt(c.Y, 0, g.Height-1)}
}

func (g Grid) Center() Vec2 {
	return Vec2{X: float64(g.Width) * g.CellSize * 0.5, Y: float64(g.Height) * g.CellSize * 0.5}
}

func (g Grid) WorldSize() Vec2 {
	return Vec2{X: float64(g.Width) * g.CellSize, Y: float64(g.Height) * g.CellSize}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Chebyshev is the step count between two cells when diagonal moves cost one step.
func Chebyshev(a, b Cell) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func Euclidean(a, b Cell) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Package walls maintains the wall adjacency index: which cells hold a wall and, for
// each wall, which cardinal sides are exposed. The exposure mask selects a tile variant.
//
// The index is refreshed only by the occupancy grid; nothing else mutates it.
package walls

import (
	"sort"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

// Mask has one bit per exposed cardinal side, using the grid.Dir bit values.
type Mask uint8

const Full Mask = Mask(grid.North | grid.East | grid.South | grid.West)

func (m Mask) Exposed(d grid.Dir) bool { return m&Mask(d) != 0 }

type Variant string

const (
	Center     Variant = "center"
	EdgeN      Variant = "edge_n"
	EdgeE      Variant = "edge_e"
	EdgeS      Variant = "edge_s"
	EdgeW      Variant = "edge_w"
	CornerNE   Variant = "corner_ne"
	CornerNW   Variant = "corner_nw"
	CornerSE   Variant = "corner_se"
	CornerSW   Variant = "corner_sw"
	TN         Variant = "t_n"
	TE         Variant = "t_e"
	TS         Variant = "t_s"
	TW         Variant = "t_w"
	Cross      Variant = "cross"
	StraightNS Variant = "straight_ns"
	StraightEW Variant = "straight_ew"
)

var table = [16]Variant{
	0:  Center,
	1:  EdgeN,
	2:  EdgeE,
	4:  EdgeS,
	8:  EdgeW,
	3:  CornerNE,
	9:  CornerNW,
	6:  CornerSE,
	12: CornerSW,
	11: TN,
	7:  TE,
	14: TS,
	13: TW,
	15: Cross,
	5:  StraightEW, // N+S exposed: the wall runs east-west
	10: StraightNS,
}

// VariantFor maps a mask to its tile variant. Without straight tiles the two
// opposite-pair masks fall back to Center.
func VariantFor(m Mask, haveStraights bool) Variant {
	v := table[m&Full]
	if !haveStraights && (v == StraightEW || v == StraightNS) {
		return Center
	}
	return v
}

// Index is keyed by cell. Not safe for concurrent use.
type Index struct {
	g             grid.Grid
	haveStraights bool
	walls         map[grid.Cell]entity.OccupantID
	masks         map[grid.Cell]Mask
}

func NewIndex(g grid.Grid, haveStraights bool) *Index {
	return &Index{
		g:             g,
		haveStraights: haveStraights,
		walls:         map[grid.Cell]entity.OccupantID{},
		masks:         map[grid.Cell]Mask{},
	}
}

// Register records a wall at c and refreshes c and its four neighbours.
func (x *Index) Register(c grid.Cell, occ entity.OccupantID) {
	if !x.g.InBounds(c) {
		return
	}
	x.walls[c] = occ
	x.RefreshAround(c)
}

// Unregister removes the wall at c, if any, and refreshes its neighbours.
func (x *Index) Unregister(c grid.Cell) {
	if _, ok := x.walls[c]; !ok {
		return
	}
	delete(x.walls, c)
	delete(x.masks, c)
	x.RefreshAround(c)
}

// RefreshAround refreshes c and its four cardinal neighbours without registering anything.
func (x *Index) RefreshAround(c grid.Cell) {
	x.Refresh(c)
	for _, n := range grid.Neighbors4(c) {
		x.Refresh(n)
	}
}

// Refresh recomputes the exposure mask of the wall at c. Cells without a wall are ignored.
func (x *Index) Refresh(c grid.Cell) {
	if _, ok := x.walls[c]; !ok {
		return
	}
	var m Mask
	for _, d := range grid.Cardinals {
		n := c.Add(d.Offset())
		if !x.g.InBounds(n) || !x.HasWall(n) {
			m |= Mask(d)
		}
	}
	x.masks[c] = m
}

func (x *Index) HasWall(c grid.Cell) bool {
	_, ok := x.walls[c]
	return ok
}

func (x *Index) Occupant(c grid.Cell) (entity.OccupantID, bool) {
	id, ok := x.walls[c]
	return id, ok
}

func (x *Index) Mask(c grid.Cell) (Mask, bool) {
	m, ok := x.masks[c]
	return m, ok
}

func (x *Index) Variant(c grid.Cell) (Variant, bool) {
	m, ok := x.masks[c]
	if !ok {
		return "", false
	}
	return VariantFor(m, x.haveStraights), true
}

func (x *Index) Len() int { return len(x.walls) }

// Cells returns the wall cells in row-major order.
func (x *Index) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, len(x.walls))
	for c := range x.walls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Package pathfind plans worker routes with A* over the live walkability field.
package pathfind

import (
	"container/heap"
	"math"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/grid"
)

// Walkability is read at search time; results reflect the grid at the moment of the call.
type Walkability interface {
	Bounds() grid.Grid
	IsWalkable(c grid.Cell) bool
}

const (
	DefaultMaxExpansions    = 2048
	DefaultSubstituteRadius = 10
)

type Planner struct {
	Map              Walkability
	MaxExpansions    int
	SubstituteRadius int
	Log              *zap.Logger
}

func New(m Walkability, maxExpansions, substituteRadius int, log *zap.Logger) *Planner {
	if maxExpansions <= 0 {
		maxExpansions = DefaultMaxExpansions
	}
	if substituteRadius < 0 {
		substituteRadius = DefaultSubstituteRadius
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{Map: m, MaxExpansions: maxExpansions, SubstituteRadius: substituteRadius, Log: log}
}

// FindPath returns the cells from start to target inclusive. An unwalkable target is
// replaced by the nearest walkable cell within SubstituteRadius. When no route exists
// the result is the one-element path [start].
func (p *Planner) FindPath(start, target grid.Cell) []grid.Cell {
	b := p.Map.Bounds()
	if !b.InBounds(start) || !b.InBounds(target) {
		return []grid.Cell{start}
	}
	if !p.Map.IsWalkable(target) {
		sub, ok := p.NearestWalkable(target)
		if !ok {
			p.Log.Debug("no walkable substitute", zap.Stringer("target", target))
			return []grid.Cell{start}
		}
		target = sub
	}
	path, ok := p.search(start, target)
	if !ok {
		p.Log.Debug("path not found", zap.Stringer("start", start), zap.Stringer("target", target))
		return []grid.Cell{start}
	}
	return path
}

// Reachable reports whether a route from from to exactly to exists.
func (p *Planner) Reachable(from, to grid.Cell) bool {
	b := p.Map.Bounds()
	if !b.InBounds(from) || !b.InBounds(to) || !p.Map.IsWalkable(to) {
		return false
	}
	_, ok := p.search(from, to)
	return ok
}

// NearestWalkable scans square rings of growing radius around target and returns the
// closest walkable in-bounds cell. target itself is returned when walkable.
func (p *Planner) NearestWalkable(target grid.Cell) (grid.Cell, bool) {
	b := p.Map.Bounds()
	if b.InBounds(target) && p.Map.IsWalkable(target) {
		return target, true
	}
	for r := 1; r <= p.SubstituteRadius; r++ {
		best, bestD, found := grid.Cell{}, math.Inf(1), false
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if absInt(dx) != r && absInt(dy) != r {
					continue
				}
				c := grid.Cell{X: target.X + dx, Y: target.Y + dy}
				if !b.InBounds(c) || !p.Map.IsWalkable(c) {
					continue
				}
				if d := grid.Euclidean(c, target); d < bestD {
					best, bestD, found = c, d, true
				}
			}
		}
		if found {
			return best, true
		}
	}
	return grid.Cell{}, false
}

type node struct {
	idx int
	f   float64
	h   float64
	seq int
}

type openSet []node

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}

func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *openSet) Push(x any) { *o = append(*o, x.(node)) }

func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

func (p *Planner) search(start, target grid.Cell) ([]grid.Cell, bool) {
	if start == target {
		return []grid.Cell{start}, true
	}
	b := p.Map.Bounds()
	n := b.Size()
	gCost := make([]float64, n)
	parent := make([]int, n)
	closed := make([]bool, n)
	for i := range gCost {
		gCost[i] = math.Inf(1)
		parent[i] = -1
	}

	si, ti := b.Index(start), b.Index(target)
	gCost[si] = 0
	h0 := grid.Euclidean(start, target)
	open := &openSet{{idx: si, f: h0, h: h0}}
	seq := 1
	expansions := 0

	for open.Len() > 0 {
		cur := heap.Pop(open).(node)
		if closed[cur.idx] {
			continue
		}
		if cur.idx == ti {
			return reconstruct(b, parent, ti), true
		}
		closed[cur.idx] = true
		expansions++
		if expansions > p.MaxExpansions {
			return nil, false
		}

		cc := b.CellAt(cur.idx)
		for _, off := range grid.Offsets8 {
			nc := cc.Add(off)
			ni := b.Index(nc)
			if ni < 0 || closed[ni] || !p.Map.IsWalkable(nc) {
				continue
			}
			if off.X != 0 && off.Y != 0 && p.cornerBlocked(cc, off) {
				continue
			}
			g := gCost[cur.idx] + math.Sqrt(float64(off.X*off.X+off.Y*off.Y))
			if g >= gCost[ni] {
				continue
			}
			gCost[ni] = g
			parent[ni] = cur.idx
			h := grid.Euclidean(nc, target)
			heap.Push(open, node{idx: ni, f: g + h, h: h, seq: seq})
			seq++
		}
	}
	return nil, false
}

// cornerBlocked is true when both orthogonal cells beside a diagonal step are unwalkable.
func (p *Planner) cornerBlocked(from grid.Cell, off grid.Cell) bool {
	a := grid.Cell{X: from.X + off.X, Y: from.Y}
	c := grid.Cell{X: from.X, Y: from.Y + off.Y}
	return !p.Map.IsWalkable(a) && !p.Map.IsWalkable(c)
}

func reconstruct(b grid.Grid, parent []int, end int) []grid.Cell {
	var rev []grid.Cell
	for i := end; i >= 0; i = parent[i] {
		rev = append(rev, b.CellAt(i))
	}
	out := make([]grid.Cell, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

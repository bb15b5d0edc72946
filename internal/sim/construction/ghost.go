// Package construction turns queued placements ("ghosts") into finished occupants.
//
// A ghost is Pending until a worker starts building it, InProgress while a worker is
// building, and is destroyed the moment its progress reaches 1 and the real occupant has
// been registered with the occupancy grid.
package construction

import (
	"errors"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

type State uint8

const (
	Pending State = iota
	InProgress
)

func (s State) String() string {
	if s == InProgress {
		return "IN_PROGRESS"
	}
	return "PENDING"
}

var (
	ErrAlreadyBuilding = errors.New("construction: already in progress")
	ErrTrapRisk        = errors.New("construction: would trap worker")
)

type Ghost struct {
	ID       entity.GhostID
	Type     catalogs.BuildingType
	Cell     grid.Cell
	Progress float64
	State    State
	Worker   entity.WorkerID
}

func (g *Ghost) advance(dt float64) {
	if dt <= 0 {
		return
	}
	if g.Type.BuildSeconds <= 0 {
		g.Progress = 1
		return
	}
	g.Progress = clamp01(g.Progress + dt/g.Type.BuildSeconds)
}

func (g *Ghost) complete() bool { return g.Progress >= 1 }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Walkability is the read side of the occupancy grid used by the trap heuristic and
// work position selection.
type Walkability interface {
	InBounds(c grid.Cell) bool
	IsWalkable(c grid.Cell) bool
}

// WouldTrapWorker is a local heuristic, not a connectivity proof. For movement-blocking
// types it counts the worker's four cardinal neighbours that are either the cell about
// to be built or already unwalkable; three or more means the worker risks being sealed
// in. Out-of-bounds neighbours count as blocked.
func WouldTrapWorker(m Walkability, bt catalogs.BuildingType, site, workerCell grid.Cell) bool {
	if !bt.BlocksMovement && !bt.IsWall() {
		return false
	}
	blocked := 0
	for _, n := range grid.Neighbors4(workerCell) {
		if n == site || !m.IsWalkable(n) {
			blocked++
		}
	}
	return blocked >= 3
}

// workOffsets are stand points around a site, in cell units from its centre.
var workOffsets = [8]grid.Vec2{
	{X: 0, Y: -0.8},
	{X: 0, Y: 0.8},
	{X: -0.8, Y: 0},
	{X: 0.8, Y: 0},
	{X: -0.6, Y: -0.6},
	{X: 0.6, Y: -0.6},
	{X: -0.6, Y: 0.6},
	{X: 0.6, Y: 0.6},
}

// WorkClearance is the radius, in cells, inside which another worker makes a stand point busy.
const WorkClearance = 0.3

// WorkPosition picks where a worker should stand to build at site: the first candidate
// that is in bounds, walkable and not taken per occupied. Falls back to the south point.
func WorkPosition(m Walkability, g grid.Grid, site grid.Cell, occupied func(p grid.Vec2, radius float64) bool) grid.Vec2 {
	centre := g.CellToWorld(site)
	for _, off := range workOffsets {
		p := centre.Add(off.Scale(g.CellSize))
		c := g.WorldToCell(p)
		if !g.InBounds(c) || !m.IsWalkable(c) {
			continue
		}
		if occupied != nil && occupied(p, WorkClearance*g.CellSize) {
			continue
		}
		return p
	}
	return centre.Add(workOffsets[0].Scale(g.CellSize))
}

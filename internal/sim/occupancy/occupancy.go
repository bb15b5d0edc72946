// Package occupancy is the single source of truth for what is where. It owns the
// per-cell floor, structure, door and pending layers, derives walkability from them,
// and is the only caller that mutates the wall adjacency index.
package occupancy

import (
	"fmt"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/walls"
)

// Occupant is a completed building registered in one layer of one cell.
type Occupant struct {
	Type catalogs.BuildingType
	Cell grid.Cell
}

// Listener is told when a bulldoze removes a pending construction.
type Listener interface {
	PendingCancelled(ghost entity.GhostID, c grid.Cell)
}

type cell struct {
	floor     entity.OccupantID
	structure entity.OccupantID
	door      entity.OccupantID
	pending   entity.GhostID
	walkable  bool
}

type Counts struct {
	Floors     int `json:"floors"`
	Structures int `json:"structures"`
	Doors      int `json:"doors"`
	Pending    int `json:"pending"`
}

type Grid struct {
	g         grid.Grid
	cells     []cell
	occupants *entity.Arena[entity.OccupantID, Occupant]
	walls     *walls.Index
	listener  Listener
	log       *zap.Logger
}

func New(g grid.Grid, haveStraightWalls bool, log *zap.Logger) *Grid {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Grid{
		g:         g,
		cells:     make([]cell, g.Size()),
		occupants: entity.NewArena[entity.OccupantID, Occupant](),
		walls:     walls.NewIndex(g, haveStraightWalls),
		log:       log,
	}
	for i := range o.cells {
		o.cells[i].walkable = true
	}
	return o
}

func (o *Grid) SetListener(l Listener) { o.listener = l }

func (o *Grid) Bounds() grid.Grid { return o.g }

func (o *Grid) at(c grid.Cell) *cell {
	i := o.g.Index(c)
	if i < 0 {
		return nil
	}
	return &o.cells[i]
}

// CanPlace returns nil when bt may be queued at c, or a *PlacementError.
func (o *Grid) CanPlace(bt catalogs.BuildingType, c grid.Cell) error {
	s := o.at(c)
	if s == nil {
		return reject(OutOfBounds, c, LayerNone)
	}
	if s.pending != 0 {
		return reject(PendingExists, c, LayerPending)
	}
	switch LayerFor(bt) {
	case LayerFloor:
		if s.floor != 0 {
			return reject(LayerOccupied, c, LayerFloor)
		}
	case LayerDoor:
		if s.door != 0 {
			return reject(LayerOccupied, c, LayerDoor)
		}
		if s.structure != 0 && !o.isWallOccupant(s.structure) {
			return reject(LayerOccupied, c, LayerStructure)
		}
	case LayerStructure:
		if s.structure != 0 {
			return reject(LayerOccupied, c, LayerStructure)
		}
		if s.door != 0 {
			return reject(LayerOccupied, c, LayerDoor)
		}
	}
	return nil
}

// Place reserves c for ghost. A door placed over a wall removes the wall first, in the
// same call. The real occupant is only created by RegisterCompleted.
func (o *Grid) Place(bt catalogs.BuildingType, c grid.Cell, ghost entity.GhostID) error {
	if ghost == 0 {
		return fmt.Errorf("occupancy: place %s at %s: zero ghost handle", bt.ID, c)
	}
	if err := o.CanPlace(bt, c); err != nil {
		o.log.Debug("placement rejected", zap.String("type", bt.ID), zap.Stringer("cell", c), zap.Error(err))
		return err
	}
	s := o.at(c)
	if bt.IsDoor() && s.structure != 0 {
		o.removeStructure(c, s)
	}
	s.pending = ghost
	o.log.Debug("placement queued", zap.String("type", bt.ID), zap.Stringer("cell", c), zap.Uint32("ghost", uint32(ghost)))
	return nil
}

// RegisterCompleted swaps the pending entry owned by ghost for a real occupant of bt,
// updates walkability and refreshes the wall index when a wall or door changed.
func (o *Grid) RegisterCompleted(ghost entity.GhostID, bt catalogs.BuildingType, c grid.Cell) (entity.OccupantID, error) {
	s := o.at(c)
	if s == nil {
		return 0, reject(OutOfBounds, c, LayerNone)
	}
	if s.pending != ghost {
		return 0, fmt.Errorf("occupancy: register %s at %s: pending ghost is %d, not %d", bt.ID, c, s.pending, ghost)
	}
	layer := LayerFor(bt)
	slot := s.slot(layer)
	if *slot != 0 {
		return 0, reject(LayerOccupied, c, layer)
	}

	s.pending = 0
	id := o.occupants.Insert(Occupant{Type: bt, Cell: c})
	*slot = id
	o.recomputeWalkable(s)

	switch {
	case bt.IsWall():
		o.walls.Register(c, id)
	case bt.IsDoor():
		o.walls.RefreshAround(c)
	}
	o.log.Debug("construction registered",
		zap.String("type", bt.ID),
		zap.Stringer("cell", c),
		zap.Stringer("layer", layer),
		zap.Bool("walkable", s.walkable),
	)
	return id, nil
}

// Bulldoze removes the first present layer among pending, door, structure, floor.
// An empty or out-of-bounds cell is a no-op and reports LayerNone.
func (o *Grid) Bulldoze(c grid.Cell) (Layer, bool) {
	s := o.at(c)
	if s == nil {
		return LayerNone, false
	}
	switch {
	case s.pending != 0:
		ghost := s.pending
		s.pending = 0
		o.log.Debug("pending construction bulldozed", zap.Stringer("cell", c), zap.Uint32("ghost", uint32(ghost)))
		if o.listener != nil {
			o.listener.PendingCancelled(ghost, c)
		}
		return LayerPending, true
	case s.door != 0:
		o.occupants.Remove(s.door)
		s.door = 0
		o.recomputeWalkable(s)
		o.walls.RefreshAround(c)
		return LayerDoor, true
	case s.structure != 0:
		o.removeStructure(c, s)
		return LayerStructure, true
	case s.floor != 0:
		o.occupants.Remove(s.floor)
		s.floor = 0
		return LayerFloor, true
	}
	return LayerNone, false
}

func (o *Grid) removeStructure(c grid.Cell, s *cell) {
	wall := o.isWallOccupant(s.structure)
	o.occupants.Remove(s.structure)
	s.structure = 0
	o.recomputeWalkable(s)
	if wall {
		o.walls.Unregister(c)
	}
}

func (o *Grid) recomputeWalkable(s *cell) {
	blocked := false
	if s.structure != 0 {
		if occ, ok := o.occupants.Get(s.structure); ok {
			blocked = occ.Type.BlocksMovement
		}
	}
	s.walkable = !blocked || s.door != 0
}

func (o *Grid) isWallOccupant(id entity.OccupantID) bool {
	occ, ok := o.occupants.Get(id)
	return ok && occ.Type.IsWall()
}

func (s *cell) slot(l Layer) *entity.OccupantID {
	switch l {
	case LayerFloor:
		return &s.floor
	case LayerDoor:
		return &s.door
	}
	return &s.structure
}

// IsWalkable is false for out-of-bounds cells.
func (o *Grid) IsWalkable(c grid.Cell) bool {
	s := o.at(c)
	return s != nil && s.walkable
}

func (o *Grid) InBounds(c grid.Cell) bool { return o.g.InBounds(c) }

// OccupantAt returns the completed occupant in layer at c. Use PendingAt for the pending layer.
func (o *Grid) OccupantAt(l Layer, c grid.Cell) (entity.OccupantID, bool) {
	s := o.at(c)
	if s == nil {
		return 0, false
	}
	var id entity.OccupantID
	switch l {
	case LayerFloor:
		id = s.floor
	case LayerStructure:
		id = s.structure
	case LayerDoor:
		id = s.door
	}
	return id, id != 0
}

func (o *Grid) PendingAt(c grid.Cell) (entity.GhostID, bool) {
	s := o.at(c)
	if s == nil || s.pending == 0 {
		return 0, false
	}
	return s.pending, true
}

func (o *Grid) Occupant(id entity.OccupantID) (Occupant, bool) {
	p, ok := o.occupants.Get(id)
	if !ok {
		return Occupant{}, false
	}
	return *p, true
}

func (o *Grid) Counts() Counts {
	var n Counts
	for i := range o.cells {
		s := &o.cells[i]
		if s.floor != 0 {
			n.Floors++
		}
		if s.structure != 0 {
			n.Structures++
		}
		if s.door != 0 {
			n.Doors++
		}
		if s.pending != 0 {
			n.Pending++
		}
	}
	return n
}

// PendingCells lists cells holding a pending construction, in row-major order.
func (o *Grid) PendingCells() []grid.Cell {
	var out []grid.Cell
	for i := range o.cells {
		if o.cells[i].pending != 0 {
			out = append(out, o.g.CellAt(i))
		}
	}
	return out
}

func (o *Grid) HasWall(c grid.Cell) bool { return o.walls.HasWall(c) }

func (o *Grid) WallVariant(c grid.Cell) (walls.Variant, bool) { return o.walls.Variant(c) }

func (o *Grid) WallMask(c grid.Cell) (walls.Mask, bool) { return o.walls.Mask(c) }

func (o *Grid) WallCells() []grid.Cell { return o.walls.Cells() }

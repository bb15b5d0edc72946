package occupancy

import (
	"fmt"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/grid"
)

type Layer uint8

const (
	LayerNone Layer = iota
	LayerFloor
	LayerStructure
	LayerDoor
	LayerPending
)

func (l Layer) String() string {
	switch l {
	case LayerFloor:
		return "floor"
	case LayerStructure:
		return "structure"
	case LayerDoor:
		return "door"
	case LayerPending:
		return "pending"
	}
	return "none"
}

// LayerFor is the layer a completed occupant of bt is written into.
func LayerFor(bt catalogs.BuildingType) Layer {
	switch bt.Kind {
	case catalogs.KindDoor:
		return LayerDoor
	case catalogs.KindFloor:
		return LayerFloor
	}
	return LayerStructure
}

type Reason string

const (
	OutOfBounds   Reason = "OutOfBounds"
	LayerOccupied Reason = "LayerOccupied"
	PendingExists Reason = "PendingExists"
	UnknownType   Reason = "UnknownType"
)

// PlacementError is returned synchronously for a rejected placement. It is never retried.
type PlacementError struct {
	Reason Reason
	Cell   grid.Cell
	Layer  Layer
}

func (e *PlacementError) Error() string {
	if e.Layer != LayerNone {
		return fmt.Sprintf("placement rejected at %s: %s (%s)", e.Cell, e.Reason, e.Layer)
	}
	return fmt.Sprintf("placement rejected at %s: %s", e.Cell, e.Reason)
}

func reject(r Reason, c grid.Cell, l Layer) error {
	return &PlacementError{Reason: r, Cell: c, Layer: l}
}

package ws

import (
	"errors"

	"buildcraft.ai/internal/protocol"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/occupancy"
	"buildcraft.ai/internal/sim/world"
)

// RequestFrom converts a validated control message into a world request.
func RequestFrom(ctl protocol.ControlMsg, actor string) world.Request {
	req := world.Request{
		Kind:   world.RequestKind(ctl.Type),
		TypeID: ctl.TypeID,
		Actor:  actor,
	}
	if ctl.Cell != nil {
		req.Cell = &grid.Cell{X: ctl.Cell[0], Y: ctl.Cell[1]}
	}
	return req
}

// ResultFor renders a world result as the RESULT answering request id.
func ResultFor(id string, res world.Result) protocol.ResultMsg {
	if res.Err != nil {
		m := reject(id, CodeFor(res.Err), res.Err.Error())
		m.Tick = res.Tick
		return m
	}
	m := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ResultFor:       id,
		OK:              true,
		Tick:            res.Tick,
		Ghost:           uint32(res.Ghost),
		Worker:          uint32(res.Worker),
		Cancelled:       res.Cancelled,
	}
	if res.Removed != occupancy.LayerNone {
		m.Removed = res.Removed.String()
	}
	return m
}

// CodeFor maps a world error onto a protocol error code.
func CodeFor(err error) string {
	var pe *occupancy.PlacementError
	if errors.As(err, &pe) {
		switch pe.Reason {
		case occupancy.OutOfBounds:
			return protocol.ErrOutOfBounds
		case occupancy.LayerOccupied:
			return protocol.ErrLayerOccupied
		case occupancy.PendingExists:
			return protocol.ErrPendingExists
		case occupancy.UnknownType:
			return protocol.ErrUnknownType
		}
	}
	if errors.Is(err, world.ErrMissingCell) || errors.Is(err, world.ErrUnknownRequest) {
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

func reject(id, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ResultFor:       id,
		OK:              false,
		Code:            code,
		Message:         msg,
	}
}

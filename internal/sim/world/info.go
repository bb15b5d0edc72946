package world

import "buildcraft.ai/internal/protocol"

// Params describes the fixed world parameters. Safe from any goroutine.
func (w *World) Params() protocol.WorldParams {
	return protocol.WorldParams{
		TickRateHz: w.cfg.Tuning.TickRateHz,
		Width:      w.g.Width,
		Height:     w.g.Height,
		CellSize:   w.g.CellSize,
		Seed:       w.cfg.Tuning.Seed,
	}
}

// CatalogRef describes the building catalog for clients. Safe from any goroutine.
func (w *World) CatalogRef() protocol.CatalogRef {
	ref := protocol.CatalogRef{Digest: w.cat.Digest, Types: make([]protocol.BuildingTypeRef, 0, len(w.cat.Types))}
	for _, bt := range w.cat.Types {
		ref.Types = append(ref.Types, protocol.BuildingTypeRef{
			ID:             bt.ID,
			DisplayName:    bt.DisplayName,
			Kind:           string(bt.Kind),
			BlocksMovement: bt.BlocksMovement,
			BuildSeconds:   bt.BuildSeconds,
		})
	}
	return ref
}

package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Placement rejections.
	ErrOutOfBounds   = "E_OUT_OF_BOUNDS"
	ErrLayerOccupied = "E_LAYER_OCCUPIED"
	ErrPendingExists = "E_PENDING_EXISTS"
	ErrUnknownType   = "E_UNKNOWN_TYPE"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrOutOfBounds:     {},
	ErrLayerOccupied:   {},
	ErrPendingExists:   {},
	ErrUnknownType:     {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

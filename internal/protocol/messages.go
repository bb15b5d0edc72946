package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldID         string      `json:"world_id"`
	WorldParams     WorldParams `json:"world_params"`
	Catalog         CatalogRef  `json:"catalog"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	CellSize   float64 `json:"cell_size"`
	Seed       int64   `json:"seed"`
}

type CatalogRef struct {
	Digest string            `json:"digest"`
	Types  []BuildingTypeRef `json:"types"`
}

type BuildingTypeRef struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"display_name"`
	Kind           string  `json:"kind"`
	BlocksMovement bool    `json:"blocks_movement"`
	BuildSeconds   float64 `json:"build_seconds"`
}

// ControlMsg carries PLACE, BULLDOZE, SPAWN_WORKER and CANCEL_ALL (client -> server).
// Which fields are required depends on Type; see the embedded schemas.
type ControlMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	TypeID          string  `json:"type_id,omitempty"`
	Cell            *[2]int `json:"cell,omitempty"`
}

// RESULT (server -> client): one per control request.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ResultFor       string `json:"result_for"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Tick            uint64 `json:"tick,omitempty"`
	Ghost           uint32 `json:"ghost,omitempty"`
	Worker          uint32 `json:"worker,omitempty"`
	Removed         string `json:"removed,omitempty"`
	Cancelled       int    `json:"cancelled,omitempty"`
}

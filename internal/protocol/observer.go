package protocol

// SUBSCRIBE (observer -> server). First message on the observer connection; may be re-sent
// to change the frame rate.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EveryTicks throttles frames below the server default. Zero keeps the default.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// BootstrapResponse is served on GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Catalog         CatalogRef  `json:"catalog"`
}

// FRAME (server -> observer): a read-only view of the simulation after a tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`

	// Cells lists only cells that hold something or are not walkable, row-major.
	Cells   []CellView   `json:"cells"`
	Ghosts  []GhostView  `json:"ghosts"`
	Workers []WorkerView `json:"workers"`
	Jobs    JobCounters  `json:"jobs"`
}

type CellView struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Floor     string `json:"floor,omitempty"`
	Structure string `json:"structure,omitempty"`
	Door      string `json:"door,omitempty"`
	// Wall is the adjacency variant of a wall occupant.
	Wall     string `json:"wall,omitempty"`
	Pending  bool   `json:"pending,omitempty"`
	Walkable bool   `json:"walkable"`
}

type GhostView struct {
	ID       uint32  `json:"id"`
	TypeID   string  `json:"type_id"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Worker   uint32  `json:"worker,omitempty"`
}

type WorkerView struct {
	ID    uint32     `json:"id"`
	Pos   [2]float64 `json:"pos"`
	State string     `json:"state"`
	Job   uint32     `json:"job,omitempty"`
}

type JobCounters struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Requeued  int `json:"requeued"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
	TrapRisks int `json:"trap_risks"`
}

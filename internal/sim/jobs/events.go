package jobs

import "buildcraft.ai/internal/sim/entity"

type EventKind string

const (
	JobQueued    EventKind = "JOB_QUEUED"
	JobPromoted  EventKind = "JOB_PROMOTED"
	JobAssigned  EventKind = "JOB_ASSIGNED"
	JobCompleted EventKind = "JOB_COMPLETED"
	JobRequeued  EventKind = "JOB_REQUEUED"
	JobTimedOut  EventKind = "JOB_TIMED_OUT"
	JobCancelled EventKind = "JOB_CANCELLED"
	JobDropped   EventKind = "JOB_DROPPED"
)

type Event struct {
	Kind   EventKind
	Ghost  entity.GhostID
	Worker entity.WorkerID
}

type EventSink func(Event)

type Stats struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Queued    int `json:"queued"`
	Promoted  int `json:"promoted"`
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
	Requeued  int `json:"requeued"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
	Passes    int `json:"passes"`
}

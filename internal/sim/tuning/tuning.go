package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz      int   `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	Seed            int64 `yaml:"seed" json:"seed"`
	FrameEveryTicks int   `yaml:"frame_every_ticks" json:"frame_every_ticks"`

	Grid      Grid      `yaml:"grid" json:"grid"`
	Scheduler Scheduler `yaml:"scheduler" json:"scheduler"`
	Worker    Worker    `yaml:"worker" json:"worker"`
	Planner   Planner   `yaml:"planner" json:"planner"`
	Spawn     Spawn     `yaml:"spawn" json:"spawn"`
}

type Grid struct {
	Width    int     `yaml:"width" json:"width"`
	Height   int     `yaml:"height" json:"height"`
	CellSize float64 `yaml:"cell_size" json:"cell_size"`
}

type Scheduler struct {
	IntervalSeconds float64 `yaml:"interval_seconds" json:"interval_seconds"`
	MaxJobDistance  float64 `yaml:"max_job_distance" json:"max_job_distance"`
}

// Worker distances are in cells; they are scaled by the grid cell size at use.
type Worker struct {
	MoveSpeed         float64 `yaml:"move_speed" json:"move_speed"`
	BuildRange        float64 `yaml:"build_range" json:"build_range"`
	ArrivalRadius     float64 `yaml:"arrival_radius" json:"arrival_radius"`
	AvoidanceRadius   float64 `yaml:"avoidance_radius" json:"avoidance_radius"`
	AvoidanceForce    float64 `yaml:"avoidance_force" json:"avoidance_force"`
	AvoidanceWeight   float64 `yaml:"avoidance_weight" json:"avoidance_weight"`
	IdleMinSeconds    float64 `yaml:"idle_min_seconds" json:"idle_min_seconds"`
	IdleMaxSeconds    float64 `yaml:"idle_max_seconds" json:"idle_max_seconds"`
	WanderRadius      float64 `yaml:"wander_radius" json:"wander_radius"`
	JobTimeoutSeconds float64 `yaml:"job_timeout_seconds" json:"job_timeout_seconds"`
}

type Planner struct {
	MaxExpansions    int `yaml:"max_expansions" json:"max_expansions"`
	SubstituteRadius int `yaml:"substitute_radius" json:"substitute_radius"`
}

type Spawn struct {
	InitialWorkers int     `yaml:"initial_workers" json:"initial_workers"`
	AreaWidth      float64 `yaml:"area_width" json:"area_width"`
	AreaHeight     float64 `yaml:"area_height" json:"area_height"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:      20,
		Seed:            1,
		FrameEveryTicks: 2,
		Grid:            Grid{Width: 50, Height: 50, CellSize: 1},
		Scheduler:       Scheduler{IntervalSeconds: 0.5, MaxJobDistance: 20},
		Worker: Worker{
			MoveSpeed:         2,
			BuildRange:        1.5,
			ArrivalRadius:     0.3,
			AvoidanceRadius:   0.4,
			AvoidanceForce:    0.5,
			AvoidanceWeight:   0.1,
			IdleMinSeconds:    2,
			IdleMaxSeconds:    8,
			WanderRadius:      5,
			JobTimeoutSeconds: 5,
		},
		Planner: Planner{MaxExpansions: 2048, SubstituteRadius: 10},
		Spawn:   Spawn{InitialWorkers: 3, AreaWidth: 10, AreaHeight: 10},
	}
}

// Load overlays path onto Defaults. A missing file is not an error.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.FrameEveryTicks < 0:
		return fmt.Errorf("frame_every_ticks must be >= 0")
	case t.Grid.Width <= 0 || t.Grid.Height <= 0:
		return fmt.Errorf("grid size must be positive, got %dx%d", t.Grid.Width, t.Grid.Height)
	case t.Grid.CellSize <= 0:
		return fmt.Errorf("grid.cell_size must be > 0")
	case t.Scheduler.IntervalSeconds <= 0:
		return fmt.Errorf("scheduler.interval_seconds must be > 0")
	case t.Scheduler.MaxJobDistance <= 0:
		return fmt.Errorf("scheduler.max_job_distance must be > 0")
	case t.Worker.MoveSpeed <= 0:
		return fmt.Errorf("worker.move_speed must be > 0")
	case t.Worker.BuildRange <= 0:
		return fmt.Errorf("worker.build_range must be > 0")
	case t.Worker.ArrivalRadius <= 0:
		return fmt.Errorf("worker.arrival_radius must be > 0")
	case t.Worker.AvoidanceRadius < 0 || t.Worker.AvoidanceForce < 0 || t.Worker.AvoidanceWeight < 0:
		return fmt.Errorf("worker avoidance parameters must be >= 0")
	case t.Worker.IdleMinSeconds < 0 || t.Worker.IdleMaxSeconds < t.Worker.IdleMinSeconds:
		return fmt.Errorf("worker idle range [%v,%v] is invalid", t.Worker.IdleMinSeconds, t.Worker.IdleMaxSeconds)
	case t.Worker.WanderRadius < 0:
		return fmt.Errorf("worker.wander_radius must be >= 0")
	case t.Worker.JobTimeoutSeconds <= 0:
		return fmt.Errorf("worker.job_timeout_seconds must be > 0")
	case t.Planner.MaxExpansions <= 0:
		return fmt.Errorf("planner.max_expansions must be > 0")
	case t.Planner.SubstituteRadius < 0:
		return fmt.Errorf("planner.substitute_radius must be >= 0")
	case t.Spawn.InitialWorkers < 0:
		return fmt.Errorf("spawn.initial_workers must be >= 0")
	case t.Spawn.AreaWidth < 0 || t.Spawn.AreaHeight < 0:
		return fmt.Errorf("spawn area must be >= 0")
	}
	return nil
}

// Reloadable copies the fields that may change while the world runs onto base.
// Grid dimensions, seed and tick rate stay fixed for the life of a world.
func (t Tuning) Reloadable(base Tuning) Tuning {
	base.FrameEveryTicks = t.FrameEveryTicks
	base.Scheduler = t.Scheduler
	base.Worker = t.Worker
	base.Planner = t.Planner
	return base
}

package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/world"
)

const manifestFile = "run.json"

// RunManifest pins down everything a replay needs besides the tick journal: the world
// configuration at tick 0 and the building catalog.
type RunManifest struct {
	RunID         string          `json:"run_id"`
	WorldID       string          `json:"world_id"`
	StartedAt     time.Time       `json:"started_at"`
	StraightWalls bool            `json:"straight_walls"`
	Tuning        tuning.Tuning   `json:"tuning"`
	CatalogDigest string          `json:"catalog_digest"`
	Catalog       json.RawMessage `json:"catalog"`
}

func NewRunManifest(runID string, cfg world.Config, cat *catalogs.Catalog, startedAt time.Time) (RunManifest, error) {
	raw, err := json.Marshal(cat.Types)
	if err != nil {
		return RunManifest{}, err
	}
	return RunManifest{
		RunID:         runID,
		WorldID:       cfg.ID,
		StartedAt:     startedAt.UTC(),
		StraightWalls: cfg.StraightWalls,
		Tuning:        cfg.Tuning,
		CatalogDigest: cat.Digest,
		Catalog:       raw,
	}, nil
}

// WorldConfig rebuilds the configuration the run started with.
func (m RunManifest) WorldConfig() world.Config {
	return world.Config{ID: m.WorldID, Tuning: m.Tuning, StraightWalls: m.StraightWalls}
}

func (m RunManifest) BuildingCatalog() (*catalogs.Catalog, error) {
	return catalogs.Parse(m.Catalog)
}

func WriteManifest(runDir string, m RunManifest) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(runDir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, manifestFile))
}

func ReadManifest(runDir string) (RunManifest, error) {
	var m RunManifest
	b, err := os.ReadFile(filepath.Join(runDir, manifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", manifestFile, err)
	}
	return m, nil
}

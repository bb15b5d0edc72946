// Package catalogs loads the building palette from buildings.json. Every type carries an
// explicit kind tag, and placement rules read that tag rather than the display name.
package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind is the explicit classification tag authored with each building type.
// Placement rules depend only on Kind and BlocksMovement, never on display names.
type Kind string

const (
	KindFloor Kind = "FLOOR"
	KindWall  Kind = "WALL"
	KindDoor  Kind = "DOOR"
	KindOther Kind = "OTHER"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFloor, KindWall, KindDoor, KindOther:
		return true
	}
	return false
}

type BuildingType struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"display_name"`
	Kind           Kind    `json:"kind"`
	BlocksMovement bool    `json:"blocks_movement"`
	BuildSeconds   float64 `json:"build_seconds"`
	Size           [2]int  `json:"size"`
}

func (b BuildingType) IsDoor() bool  { return b.Kind == KindDoor }
func (b BuildingType) IsWall() bool  { return b.Kind == KindWall }
func (b BuildingType) IsFloor() bool { return b.Kind == KindFloor }

// IsStructure reports whether the type lives in the structure layer.
func (b BuildingType) IsStructure() bool { return b.Kind == KindWall || b.Kind == KindOther }

// Catalog is the read-only set of building types, in authoring order.
type Catalog struct {
	Types  []BuildingType
	ByID   map[string]BuildingType
	Digest string
}

func (c *Catalog) Get(id string) (BuildingType, bool) {
	if c == nil {
		return BuildingType{}, false
	}
	bt, ok := c.ByID[id]
	return bt, ok
}

// IDs returns the type ids in palette order.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		out = append(out, t.ID)
	}
	return out
}

//go:embed schema/buildings.schema.json
var buildingsSchemaJSON string

var buildingsSchema = jsonschema.MustCompileString("buildings.schema.json", buildingsSchemaJSON)

const FileName = "buildings.json"

// Load reads <configDir>/buildings.json. A missing file yields the built-in catalog.
func Load(configDir string) (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(raw)
}

// Parse validates raw against the buildings schema and builds a catalog.
func Parse(raw []byte) (*Catalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	if err := buildingsSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}

	var defs []BuildingType
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	c, err := build(defs)
	if err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func build(defs []BuildingType) (*Catalog, error) {
	c := &Catalog{ByID: make(map[string]BuildingType, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%s: empty id", FileName)
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("%s: %s: unknown kind %q", FileName, d.ID, d.Kind)
		}
		if d.Size == [2]int{} {
			d.Size = [2]int{1, 1}
		}
		if d.Size != [2]int{1, 1} {
			return nil, fmt.Errorf("%s: %s: only 1x1 footprints are supported, got %dx%d", FileName, d.ID, d.Size[0], d.Size[1])
		}
		if d.BuildSeconds < 0 {
			return nil, fmt.Errorf("%s: %s: negative build_seconds", FileName, d.ID)
		}
		if d.Kind == KindDoor && d.BlocksMovement {
			return nil, fmt.Errorf("%s: %s: doors cannot block movement", FileName, d.ID)
		}
		if _, dup := c.ByID[d.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate id %s", FileName, d.ID)
		}
		c.ByID[d.ID] = d
		c.Types = append(c.Types, d)
	}
	return c, nil
}

// Default is the built-in Floor/Wall/Door palette.
func Default() *Catalog {
	c, err := build([]BuildingType{
		{ID: "FLOOR", DisplayName: "Floor", Kind: KindFloor, BuildSeconds: 1},
		{ID: "WALL", DisplayName: "Wall", Kind: KindWall, BlocksMovement: true, BuildSeconds: 2},
		{ID: "DOOR", DisplayName: "Door", Kind: KindDoor, BuildSeconds: 1.5},
	})
	if err != nil {
		panic(err)
	}
	b, _ := json.Marshal(c.Types)
	c.Digest = sha256Hex(b)
	return c
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

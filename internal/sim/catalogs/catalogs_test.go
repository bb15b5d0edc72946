package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRepoConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	door, ok := c.Get("DOOR")
	if !ok || !door.IsDoor() {
		t.Fatalf("expected DOOR to be door-classified: %#v", door)
	}
	// A display name containing "door" must not make a type a door.
	trap, ok := c.Get("TRAPDOOR")
	if !ok {
		t.Fatalf("missing TRAPDOOR")
	}
	if trap.IsDoor() || !trap.IsFloor() {
		t.Fatalf("TRAPDOOR misclassified: %#v", trap)
	}
	if c.Digest == "" {
		t.Fatalf("expected digest")
	}
	if got := c.IDs()[0]; got != "FLOOR" {
		t.Fatalf("palette order not preserved, first=%s", got)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"bad kind":      `[{"id":"X","display_name":"X","kind":"ROOF","build_seconds":1}]`,
		"multi tile":    `[{"id":"X","display_name":"X","kind":"WALL","build_seconds":1,"size":[2,1]}]`,
		"duplicate":     `[{"id":"X","display_name":"X","kind":"WALL","build_seconds":1},{"id":"X","display_name":"Y","kind":"FLOOR","build_seconds":1}]`,
		"negative time": `[{"id":"X","display_name":"X","kind":"WALL","build_seconds":-1}]`,
		"unknown field": `[{"id":"X","display_name":"X","kind":"WALL","build_seconds":1,"prefab":"x"}]`,
		"blocking door": `[{"id":"X","display_name":"X","kind":"DOOR","blocks_movement":true,"build_seconds":1}]`,
		"empty":         `[]`,
		"not json":      `{`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Types) != 3 {
		t.Fatalf("expected default palette, got %d types", len(c.Types))
	}
	wall, _ := c.Get("WALL")
	if !wall.BlocksMovement || !wall.IsStructure() {
		t.Fatalf("default wall misconfigured: %#v", wall)
	}
}

func TestLoadReportsFileName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(`[{"id":"lower","display_name":"x","kind":"WALL","build_seconds":1}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), FileName) {
		t.Fatalf("expected schema error mentioning %s, got %v", FileName, err)
	}
}

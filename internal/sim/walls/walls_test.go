package walls

import (
	"testing"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

func mustGrid(t *testing.T, w, h int) grid.Grid {
	t.Helper()
	g, err := grid.New(w, h, 1)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestVariantTable(t *testing.T) {
	cases := []struct {
		mask Mask
		want Variant
	}{
		{0, Center},
		{1, EdgeN}, {2, EdgeE}, {4, EdgeS}, {8, EdgeW},
		{1 | 2, CornerNE}, {1 | 8, CornerNW}, {2 | 4, CornerSE}, {4 | 8, CornerSW},
		{1 | 2 | 8, TN}, {1 | 2 | 4, TE}, {2 | 4 | 8, TS}, {1 | 4 | 8, TW},
		{15, Cross},
		{1 | 4, StraightEW}, {2 | 8, StraightNS},
	}
	seen := map[Variant]bool{}
	for _, tc := range cases {
		if got := VariantFor(tc.mask, true); got != tc.want {
			t.Fatalf("mask %d: got %s want %s", tc.mask, got, tc.want)
		}
		seen[tc.want] = true
	}
	if len(seen) != 16 {
		t.Fatalf("expected 16 distinct variants, got %d", len(seen))
	}
	if VariantFor(1|4, false) != Center || VariantFor(2|8, false) != Center {
		t.Fatalf("opposite pairs must fall back to center without straights")
	}
}

func TestSingleWallIsFullyExposed(t *testing.T) {
	x := NewIndex(mustGrid(t, 3, 3), true)
	x.Register(grid.Cell{X: 1, Y: 1}, 1)
	if m, _ := x.Mask(grid.Cell{X: 1, Y: 1}); m != Full {
		t.Fatalf("mask=%d want %d", m, Full)
	}
}

func TestOutOfBoundsCountsAsExposed(t *testing.T) {
	x := NewIndex(mustGrid(t, 1, 1), true)
	x.Register(grid.Cell{}, 1)
	if v, _ := x.Variant(grid.Cell{}); v != Cross {
		t.Fatalf("variant=%s want cross", v)
	}
}

// Fill a 5x5 map with walls so the inner 3x3 block is surrounded, then open its centre.
// The four walls beside the gap go from mask 0 to exactly the bit facing the gap.
func TestRemovingCentreExposesOneBitPerNeighbour(t *testing.T) {
	x := NewIndex(mustGrid(t, 5, 5), true)
	var id entity.OccupantID
	for y := 0; y < 5; y++ {
		for xx := 0; xx < 5; xx++ {
			id++
			x.Register(grid.Cell{X: xx, Y: y}, id)
		}
	}
	centre := grid.Cell{X: 2, Y: 2}
	for _, n := range grid.Neighbors4(centre) {
		if m, _ := x.Mask(n); m != 0 {
			t.Fatalf("before: %v mask=%d want 0", n, m)
		}
	}

	x.Unregister(centre)

	want := map[grid.Cell]Mask{
		{X: 2, Y: 3}: Mask(grid.South),
		{X: 3, Y: 2}: Mask(grid.West),
		{X: 2, Y: 1}: Mask(grid.North),
		{X: 1, Y: 2}: Mask(grid.East),
	}
	for c, m := range want {
		if got, _ := x.Mask(c); got != m {
			t.Fatalf("after: %v mask=%d want %d", c, got, m)
		}
	}
	if _, ok := x.Mask(centre); ok {
		t.Fatalf("removed cell still has a mask")
	}
	if m, _ := x.Mask(grid.Cell{X: 1, Y: 1}); m != 0 {
		t.Fatalf("diagonal neighbour changed: %d", m)
	}
}

func TestStraightRun(t *testing.T) {
	x := NewIndex(mustGrid(t, 5, 3), true)
	for i := 0; i < 5; i++ {
		x.Register(grid.Cell{X: i, Y: 1}, entity.OccupantID(i+1))
	}
	if v, _ := x.Variant(grid.Cell{X: 2, Y: 1}); v != StraightEW {
		t.Fatalf("middle of horizontal run: %s", v)
	}
	if v, _ := x.Variant(grid.Cell{X: 0, Y: 1}); v != TW {
		t.Fatalf("west end: %s", v)
	}
	if len(x.Cells()) != 5 || x.Cells()[0] != (grid.Cell{X: 0, Y: 1}) {
		t.Fatalf("Cells order: %v", x.Cells())
	}
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	x := NewIndex(mustGrid(t, 3, 3), true)
	x.Unregister(grid.Cell{X: 1, Y: 1})
	x.Register(grid.Cell{X: 9, Y: 9}, 1)
	if x.Len() != 0 {
		t.Fatalf("expected empty index")
	}
}

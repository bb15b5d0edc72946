package pathfind

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"buildcraft.ai/internal/sim/grid"
)

type stubMap struct {
	g       grid.Grid
	blocked map[grid.Cell]bool
}

func newStub(t *testing.T, w, h int, blocked ...grid.Cell) *stubMap {
	t.Helper()
	g, err := grid.New(w, h, 1)
	if err != nil {
		t.Fatal(err)
	}
	m := &stubMap{g: g, blocked: map[grid.Cell]bool{}}
	for _, c := range blocked {
		m.blocked[c] = true
	}
	return m
}

func (m *stubMap) Bounds() grid.Grid { return m.g }

func (m *stubMap) IsWalkable(c grid.Cell) bool { return m.g.InBounds(c) && !m.blocked[c] }

func assertContiguous(t *testing.T, m *stubMap, path []grid.Cell) {
	t.Helper()
	for i, c := range path {
		if !m.IsWalkable(c) && i > 0 {
			t.Fatalf("path crosses blocked cell %v: %v", c, path)
		}
		if i > 0 && grid.Chebyshev(path[i-1], c) != 1 {
			t.Fatalf("non-adjacent step %v -> %v", path[i-1], c)
		}
	}
}

func TestOpenGridPathLengthIsChebyshev(t *testing.T) {
	m := newStub(t, 12, 9)
	p := New(m, 0, -1, nil)
	pairs := [][2]grid.Cell{
		{{X: 0, Y: 0}, {X: 11, Y: 8}},
		{{X: 3, Y: 7}, {X: 10, Y: 1}},
		{{X: 5, Y: 5}, {X: 5, Y: 0}},
		{{X: 0, Y: 4}, {X: 11, Y: 5}},
		{{X: 6, Y: 2}, {X: 6, Y: 2}},
	}
	for _, pr := range pairs {
		path := p.FindPath(pr[0], pr[1])
		if path[0] != pr[0] || path[len(path)-1] != pr[1] {
			t.Fatalf("endpoints %v -> %v: got %v", pr[0], pr[1], path)
		}
		if steps := len(path) - 1; steps != grid.Chebyshev(pr[0], pr[1]) {
			t.Fatalf("%v -> %v: %d steps, want %d", pr[0], pr[1], steps, grid.Chebyshev(pr[0], pr[1]))
		}
		assertContiguous(t, m, path)
	}
}

// Walls on three sides of (5,5) leave the east side open.
func TestRoutesThroughOpenSideOfPocket(t *testing.T) {
	walls := []grid.Cell{
		{X: 4, Y: 4}, {X: 5, Y: 4}, {X: 6, Y: 4},
		{X: 4, Y: 5},
		{X: 4, Y: 6}, {X: 5, Y: 6}, {X: 6, Y: 6},
	}
	m := newStub(t, 10, 10, walls...)
	p := New(m, 0, -1, nil)
	target := grid.Cell{X: 5, Y: 5}
	path := p.FindPath(grid.Cell{X: 1, Y: 5}, target)
	if path[len(path)-1] != target {
		t.Fatalf("did not reach pocket: %v", path)
	}
	assertContiguous(t, m, path)
	if prev := path[len(path)-2]; prev.X <= 5 {
		t.Fatalf("entered pocket from %v, want from the east", prev)
	}
}

func TestUnwalkableTargetIsSubstituted(t *testing.T) {
	m := newStub(t, 6, 6, grid.Cell{X: 3, Y: 3})
	p := New(m, 0, -1, nil)
	path := p.FindPath(grid.Cell{X: 0, Y: 3}, grid.Cell{X: 3, Y: 3})
	end := path[len(path)-1]
	if end == (grid.Cell{X: 3, Y: 3}) || grid.Chebyshev(end, grid.Cell{X: 3, Y: 3}) != 1 {
		t.Fatalf("expected neighbouring substitute, got %v", end)
	}
}

func TestNoRouteYieldsStart(t *testing.T) {
	// Column x=2 fully blocked.
	m := newStub(t, 5, 3, grid.Cell{X: 2, Y: 0}, grid.Cell{X: 2, Y: 1}, grid.Cell{X: 2, Y: 2})
	p := New(m, 0, -1, nil)
	start := grid.Cell{X: 0, Y: 1}
	if diff := cmp.Diff([]grid.Cell{start}, p.FindPath(start, grid.Cell{X: 4, Y: 1})); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if p.Reachable(start, grid.Cell{X: 4, Y: 1}) {
		t.Fatalf("Reachable should be false across a sealed column")
	}
	if !p.Reachable(start, grid.Cell{X: 1, Y: 2}) {
		t.Fatalf("same side should be reachable")
	}
}

func TestSubstituteRadiusBound(t *testing.T) {
	var blocked []grid.Cell
	for x := 0; x < 7; x++ {
		for y := 0; y < 7; y++ {
			if x >= 1 && y >= 1 && x <= 5 && y <= 5 {
				blocked = append(blocked, grid.Cell{X: x, Y: y})
			}
		}
	}
	m := newStub(t, 7, 7, blocked...)
	p := New(m, 0, 1, nil)
	if _, ok := p.NearestWalkable(grid.Cell{X: 3, Y: 3}); ok {
		t.Fatalf("radius 1 should not find a walkable cell")
	}
	p.SubstituteRadius = 3
	c, ok := p.NearestWalkable(grid.Cell{X: 3, Y: 3})
	if !ok || grid.Chebyshev(c, grid.Cell{X: 3, Y: 3}) != 3 {
		t.Fatalf("radius 3: got %v %v", c, ok)
	}
	// The ring's nearest cell is an edge midpoint, not a corner.
	if math.Abs(grid.Euclidean(c, grid.Cell{X: 3, Y: 3})-3) > 1e-9 {
		t.Fatalf("expected an axis-aligned substitute, got %v", c)
	}
}

func TestExpansionCapYieldsStart(t *testing.T) {
	m := newStub(t, 40, 40)
	p := New(m, 3, -1, nil)
	start := grid.Cell{X: 0, Y: 0}
	if got := p.FindPath(start, grid.Cell{X: 39, Y: 0}); len(got) != 1 || got[0] != start {
		t.Fatalf("expected [start] when the cap is hit, got %d cells", len(got))
	}
}

func TestOutOfBoundsEndpoints(t *testing.T) {
	m := newStub(t, 4, 4)
	p := New(m, 0, -1, nil)
	if got := p.FindPath(grid.Cell{X: -1, Y: 0}, grid.Cell{X: 2, Y: 2}); len(got) != 1 {
		t.Fatalf("oob start: %v", got)
	}
	if got := p.FindPath(grid.Cell{X: 1, Y: 1}, grid.Cell{X: 9, Y: 9}); len(got) != 1 || got[0] != (grid.Cell{X: 1, Y: 1}) {
		t.Fatalf("oob target: %v", got)
	}
}

func TestNoDiagonalSqueeze(t *testing.T) {
	// (1,0) and (0,1) blocked: (0,0) -> (1,1) must not cut the corner.
	m := newStub(t, 2, 2, grid.Cell{X: 1, Y: 0}, grid.Cell{X: 0, Y: 1})
	p := New(m, 0, -1, nil)
	if p.Reachable(grid.Cell{X: 0, Y: 0}, grid.Cell{X: 1, Y: 1}) {
		t.Fatalf("diagonal squeeze allowed")
	}
}

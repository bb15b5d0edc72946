package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildcraft.ai/internal/protocol"
)

func TestWallGlyph(t *testing.T) {
	for variant, want := range map[string]rune{
		"straight_ew": '─',
		"straight_ns": '│',
		"corner_sw":   '└',
		"cross":       '■',
		"center":      '┼',
		"bogus":       '#',
	} {
		assert.Equal(t, want, wallGlyph(variant), variant)
	}
}

func TestGlyphForPriority(t *testing.T) {
	door := glyphFor(protocol.CellView{Floor: "FLOOR", Wall: "center", Door: "DOOR", Walkable: true})
	assert.Equal(t, '+', door.r)

	wall := glyphFor(protocol.CellView{Floor: "FLOOR", Structure: "WALL", Wall: "straight_ew"})
	assert.Equal(t, '─', wall.r)

	floor := glyphFor(protocol.CellView{Floor: "FLOOR", Walkable: true})
	assert.Equal(t, '.', floor.r)

	assert.Equal(t, blank, glyphFor(protocol.CellView{Walkable: true}))
}

func TestGhostGlyph(t *testing.T) {
	g := ghostGlyph(protocol.GhostView{TypeID: "WALL", State: "PENDING"})
	assert.Equal(t, 'w', g.r)
	assert.Equal(t, tcell.ColorDarkCyan, g.fg)

	g = ghostGlyph(protocol.GhostView{TypeID: "DOOR", State: "IN_PROGRESS", Progress: 0.75})
	assert.Equal(t, 'd', g.r)
	assert.Equal(t, tcell.ColorGreen, g.fg)

	assert.Equal(t, '?', ghostGlyph(protocol.GhostView{}).r)
}

func testFrame() *protocol.FrameMsg {
	return &protocol.FrameMsg{
		Type:   protocol.TypeFrame,
		Tick:   42,
		Width:  4,
		Height: 3,
		Cells: []protocol.CellView{
			{X: 0, Y: 0, Floor: "FLOOR", Walkable: true},
			{X: 3, Y: 2, Structure: "WALL", Wall: "cross"},
		},
		Ghosts: []protocol.GhostView{
			{ID: 1, TypeID: "FLOOR", X: 1, Y: 0, State: "PENDING"},
		},
		Workers: []protocol.WorkerView{
			{ID: 1, Pos: [2]float64{2.5, 1.5}, State: "WORKING"},
			{ID: 2, Pos: [2]float64{99, 99}, State: "IDLE"},
		},
		Jobs: protocol.JobCounters{Pending: 1, Completed: 3, TrapRisks: 2},
	}
}

func TestLayoutFlipsYAndPlacesWorkers(t *testing.T) {
	rows := layout(testFrame(), 1)
	require.Len(t, rows, 3)

	text := make([]string, len(rows))
	for y, row := range rows {
		for _, g := range row {
			text[y] += string(g.r)
		}
	}
	assert.Equal(t, []string{
		"   ■",
		"  @ ",
		".f  ",
	}, text)
	assert.Equal(t, tcell.ColorLime, rows[1][2].fg)
}

func TestLayoutUsesCellSize(t *testing.T) {
	f := testFrame()
	f.Workers = []protocol.WorkerView{{ID: 1, Pos: [2]float64{5, 1}, State: "IDLE"}}
	rows := layout(f, 2)
	assert.Equal(t, '@', rows[2][2].r)
}

func TestStatusLine(t *testing.T) {
	s := statusLine(testFrame(), "w1: ghost 3")
	assert.Contains(t, s, "tick 42")
	assert.Contains(t, s, "workers 2")
	assert.Contains(t, s, "done 3")
	assert.Contains(t, s, "trap-risk 2")
	assert.Contains(t, s, "| w1: ghost 3")
}

func TestDrawPaintsScreen(t *testing.T) {
	scr := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, scr.Init())
	defer scr.Fini()
	scr.SetSize(80, 6)

	draw(scr, testFrame(), 1, [2]int{0, 0}, "")

	cells, width, _ := scr.GetContents()
	at := func(x, y int) rune {
		c := cells[y*width+x]
		if len(c.Runes) == 0 {
			return 0
		}
		return c.Runes[0]
	}
	assert.Equal(t, '■', at(3, 0))
	assert.Equal(t, '@', at(2, 1))
	assert.Equal(t, '.', at(0, 2))
	assert.Equal(t, 't', at(0, 3))

	_, _, attrs := cells[2*width].Style.Decompose()
	assert.NotZero(t, attrs&tcell.AttrReverse, "cursor cell is highlighted")
}

package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"buildcraft.ai/internal/protocol"
)

// glyph is one terminal cell of the map.
type glyph struct {
	r  rune
	fg tcell.Color
}

var blank = glyph{r: ' ', fg: tcell.ColorDefault}

// wallGlyphs draws each wall variant by the sides it connects to. Variant names list the
// exposed sides, so the box glyph is the complement.
var wallGlyphs = map[string]rune{
	"center":      '┼',
	"edge_n":      '┬',
	"edge_e":      '┤',
	"edge_s":      '┴',
	"edge_w":      '├',
	"corner_ne":   '┐',
	"corner_nw":   '┌',
	"corner_se":   '┘',
	"corner_sw":   '└',
	"t_n":         '╷',
	"t_e":         '╴',
	"t_s":         '╵',
	"t_w":         '╶',
	"cross":       '■',
	"straight_ns": '│',
	"straight_ew": '─',
}

func wallGlyph(variant string) rune {
	if r, ok := wallGlyphs[variant]; ok {
		return r
	}
	return '#'
}

// glyphFor picks what a built cell looks like. Doors win over walls, walls over other
// structures, structures over floors.
func glyphFor(c protocol.CellView) glyph {
	switch {
	case c.Door != "":
		return glyph{r: '+', fg: tcell.ColorOlive}
	case c.Wall != "":
		return glyph{r: wallGlyph(c.Wall), fg: tcell.ColorSilver}
	case c.Structure != "":
		return glyph{r: '#', fg: tcell.ColorSilver}
	case c.Floor != "":
		return glyph{r: '.', fg: tcell.ColorGray}
	}
	return blank
}

// ghostGlyph shows a ghost as the first letter of its type, coloured by progress.
func ghostGlyph(g protocol.GhostView) glyph {
	r := '?'
	if g.TypeID != "" {
		r = rune(g.TypeID[0] | 0x20)
	}
	fg := tcell.ColorDarkCyan
	switch {
	case g.State == "IN_PROGRESS" && g.Progress >= 0.5:
		fg = tcell.ColorGreen
	case g.State == "IN_PROGRESS":
		fg = tcell.ColorYellow
	}
	return glyph{r: r, fg: fg}
}

func workerColor(state string) tcell.Color {
	switch state {
	case "WORKING":
		return tcell.ColorLime
	case "MOVING_TO_JOB":
		return tcell.ColorAqua
	case "MOVING_IDLE":
		return tcell.ColorFuchsia
	}
	return tcell.ColorWhite
}

// layout rasterises a frame into rows, top row first. World +Y is north, so row 0 is the
// highest Y.
func layout(f *protocol.FrameMsg, cellSize float64) [][]glyph {
	rows := make([][]glyph, f.Height)
	for y := range rows {
		rows[y] = make([]glyph, f.Width)
		for x := range rows[y] {
			rows[y][x] = blank
		}
	}
	put := func(x, y int, g glyph) {
		if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
			return
		}
		rows[f.Height-1-y][x] = g
	}

	for _, c := range f.Cells {
		put(c.X, c.Y, glyphFor(c))
	}
	for _, g := range f.Ghosts {
		put(g.X, g.Y, ghostGlyph(g))
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	for _, w := range f.Workers {
		x := int(math.Floor(w.Pos[0] / cellSize))
		y := int(math.Floor(w.Pos[1] / cellSize))
		put(x, y, glyph{r: '@', fg: workerColor(w.State)})
	}
	return rows
}

func statusLine(f *protocol.FrameMsg, msg string) string {
	j := f.Jobs
	s := fmt.Sprintf("tick %d  workers %d  pending %d  active %d  done %d  requeued %d  timeout %d  cancelled %d",
		f.Tick, len(f.Workers), j.Pending, j.Active, j.Completed, j.Requeued, j.TimedOut, j.Cancelled)
	if j.TrapRisks > 0 {
		s += fmt.Sprintf("  trap-risk %d", j.TrapRisks)
	}
	if msg != "" {
		s += "  | " + msg
	}
	return s
}

const helpLine = "arrows move  f/w/d place  x bulldoze  s spawn  c cancel-all  q quit"

// draw paints the map, the cursor and two text lines below it.
func draw(screen tcell.Screen, f *protocol.FrameMsg, cellSize float64, cursor [2]int, msg string) {
	screen.Clear()
	if f == nil {
		drawText(screen, 0, 0, tcell.StyleDefault, "waiting for the first frame...")
		screen.Show()
		return
	}

	rows := layout(f, cellSize)
	for y, row := range rows {
		for x, g := range row {
			st := tcell.StyleDefault.Foreground(g.fg)
			if x == cursor[0] && y == f.Height-1-cursor[1] {
				st = st.Reverse(true)
			}
			screen.SetContent(x, y, g.r, nil, st)
		}
	}
	drawText(screen, 0, f.Height, tcell.StyleDefault.Foreground(tcell.ColorWhite), statusLine(f, msg))
	drawText(screen, 0, f.Height+1, tcell.StyleDefault.Foreground(tcell.ColorGray), helpLine)
	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, st tcell.Style, s string) {
	for i, r := range []rune(s) {
		screen.SetContent(x+i, y, r, nil, st)
	}
}

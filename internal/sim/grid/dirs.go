package grid

// Dir is a cardinal direction. Its bit value doubles as the exposure bit used by wall tiling.
type Dir uint8

const (
	North Dir = 1
	East  Dir = 2
	South Dir = 4
	West  Dir = 8
)

// Cardinals is the fixed N, E, S, W iteration order.
var Cardinals = [4]Dir{North, East, South, West}

func (d Dir) Offset() Cell {
	switch d {
	case North:
		return Cell{X: 0, Y: 1}
	case East:
		return Cell{X: 1, Y: 0}
	case South:
		return Cell{X: 0, Y: -1}
	case West:
		return Cell{X: -1, Y: 0}
	}
	return Cell{}
}

func (d Dir) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	}
	return "?"
}

// Neighbors4 returns the four cardinal neighbours of c in N, E, S, W order.
// Cells may be out of bounds.
func Neighbors4(c Cell) [4]Cell {
	return [4]Cell{
		c.Add(North.Offset()),
		c.Add(East.Offset()),
		c.Add(South.Offset()),
		c.Add(West.Offset()),
	}
}

// Offsets8 lists the cardinal offsets first, then the diagonals.
var Offsets8 = [8]Cell{
	{X: 0, Y: 1}, {X: 0, Y: -1}, {X: -1, Y: 0}, {X: 1, Y: 0},
	{X: 1, Y: 1}, {X: -1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1},
}

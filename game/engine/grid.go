package engine

// Grid is fixed-size cell storage indexed Cells[y][x]
type Grid struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Cells  [][]Cell `json:"cells"`
}

// NewGrid creates an empty grid of the given size
func NewGrid(width, height int) *Grid {
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
	}
	return &Grid{Width: width, Height: height, Cells: cells}
}

// InBounds reports whether pos lies on the grid
func (g *Grid) InBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.Width && pos.Y >= 0 && pos.Y < g.Height
}

// At returns the cell at pos. Positions outside the grid are reported as walls.
func (g *Grid) At(pos Position) Cell {
	if !g.InBounds(pos) {
		return Cell{Wall}
	}
	return g.Cells[pos.Y][pos.X]
}

// Has reports whether the cell at pos carries the marker
func (g *Grid) Has(pos Position, m Marker) bool {
	return g.At(pos).Has(m)
}

// Add places a marker on the cell at pos
func (g *Grid) Add(pos Position, m Marker) {
	if !g.InBounds(pos) {
		return
	}
	g.Cells[pos.Y][pos.X] = append(g.Cells[pos.Y][pos.X], m)
}

// Remove takes one occurrence of the marker off the cell at pos
func (g *Grid) Remove(pos Position, m Marker) bool {
	if !g.InBounds(pos) {
		return false
	}
	cell := g.Cells[pos.Y][pos.X]
	for i, got := range cell {
		if got == m {
			g.Cells[pos.Y][pos.X] = append(cell[:i:i], cell[i+1:]...)
			return true
		}
	}
	return false
}

// Positions returns every position holding the marker in row-major order
func (g *Grid) Positions(m Marker) []Position {
	var out []Position
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x].Has(m) {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}

// Copy returns a deep copy of the grid
func (g *Grid) Copy() *Grid {
	cp := &Grid{Width: g.Width, Height: g.Height, Cells: make([][]Cell, len(g.Cells))}
	for y, row := range g.Cells {
		cp.Cells[y] = make([]Cell, len(row))
		for x, cell := range row {
			if len(cell) > 0 {
				cp.Cells[y][x] = append(Cell(nil), cell...)
			}
		}
	}
	return cp
}

// Equal compares the shape and markers of two grids. Empty and nil cells are equal.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Width != other.Width || g.Height != other.Height || len(g.Cells) != len(other.Cells) {
		return false
	}
	for y := range g.Cells {
		if len(g.Cells[y]) != len(other.Cells[y]) {
			return false
		}
		for x := range g.Cells[y] {
			a, b := g.Cells[y][x], other.Cells[y][x]
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
		}
	}
	return true
}

// Package heightfield provides the fractal height grid, its topology
// queries and the diamond-square generator that fills it.
package heightfield

import (
	"fmt"
	"math"
)

// Coord addresses a grid cell. Y is the row; on a realized plane it runs
// along the world Z axis.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Role classifies a vertex by its position on the grid boundary.
type Role uint8

const (
	RoleCorner Role = iota
	RoleEdge
	RoleInterior
)

func (r Role) String() string {
	switch r {
	case RoleCorner:
		return "Corner"
	case RoleEdge:
		return "Edge"
	case RoleInterior:
		return "Interior"
	default:
		return "Unknown"
	}
}

// Grid is a row-major elevation grid.
type Grid struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float64 `json:"-"`
}

// NewGrid creates a flat grid of any size, for freeform editing.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// SideForDepth returns 2^depth + 1, the side length diamond-square needs.
func SideForDepth(depth int) int {
	return 1<<depth + 1
}

// New creates a flat square grid sized for diamond-square at the given depth.
func New(depth int) *Grid {
	side := SideForDepth(depth)
	return NewGrid(side, side)
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.Data)
}

// Index maps a cell coordinate to its row-major index.
func (g *Grid) Index(x, y int) int {
	return x + y*g.Width
}

// Coord maps a row-major index back to its cell coordinate.
func (g *Grid) Coord(i int) Coord {
	return Coord{X: i % g.Width, Y: i / g.Width}
}

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

func (g *Grid) At(x, y int) float64 {
	return g.Data[g.Index(x, y)]
}

func (g *Grid) Set(x, y int, v float64) {
	g.Data[g.Index(x, y)] = v
}

func (g *Grid) Add(x, y int, dv float64) {
	g.Data[g.Index(x, y)] += dv
}

// axisDirections are the four axis-aligned neighbour offsets.
var axisDirections = [4]Coord{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
}

// Neighbors returns the indices of the in-bounds axis neighbours of cell i.
func (g *Grid) Neighbors(i int) []int {
	c := g.Coord(i)
	out := make([]int, 0, 4)
	for _, d := range axisDirections {
		x, y := c.X+d.X, c.Y+d.Y
		if g.InBounds(x, y) {
			out = append(out, g.Index(x, y))
		}
	}
	return out
}

// Role classifies (x, y) by how many axis neighbours it has: four is
// Interior, three is Edge, fewer is Corner. This matches the edge count a
// realized plane gives the same vertex.
func (g *Grid) Role(x, y int) Role {
	switch len(g.Neighbors(g.Index(x, y))) {
	case 4:
		return RoleInterior
	case 3:
		return RoleEdge
	default:
		return RoleCorner
	}
}

// Corners returns the corner elevations in generator order: (0,0),
// (w-1,0), (w-1,h-1), (0,h-1).
func (g *Grid) Corners() [4]float64 {
	w, h := g.Width, g.Height
	return [4]float64{g.At(0, 0), g.At(w-1, 0), g.At(w-1, h-1), g.At(0, h-1)}
}

// Bounds returns the lowest and highest elevations on the grid.
func (g *Grid) Bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	lo, hi := g.Bounds()
	return fmt.Sprintf("Grid(%dx%d, elevation=[%.3f, %.3f])", g.Width, g.Height, lo, hi)
}

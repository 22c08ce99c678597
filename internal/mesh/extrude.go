package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ExtrudeBoundary implements Kernel. New vertices are appended in the order
// their boundary vertex is first met walking the faces.
func (k *Memory) ExtrudeBoundary(h Handle, offset mgl64.Vec3) (int, int, error) {
	m := k.mesh(h)
	if m == nil {
		return 0, 0, fmt.Errorf("extrude boundary %d: %w", h, ErrUnknownHandle)
	}
	first := len(m.verts)
	edges := m.boundaryEdges()
	if len(edges) == 0 {
		return first, first, fmt.Errorf("extrude boundary: mesh is closed: %w", ErrDegenerateGeometry)
	}

	copies := make(map[int]int)
	dup := func(v int) int {
		if c, ok := copies[v]; ok {
			return c
		}
		c := len(m.verts)
		m.verts = append(m.verts, m.verts[v].Add(offset))
		copies[v] = c
		return c
	}
	for _, e := range edges {
		a, b := e[0], e[1]
		// The wall walks the shared edge opposite to its face so the
		// surface stays consistently wound.
		m.faces = append(m.faces, []int{b, a, dup(a), dup(b)})
	}
	m.invalidate()
	return first, len(m.verts), nil
}

// MergeCoincidentVertices welds vertices closer than epsilon and returns
// how many vertices were removed. Faces that collapse are dropped.
func (k *Memory) MergeCoincidentVertices(h Handle, epsilon float64) int {
	m := k.mesh(h)
	if m == nil || len(m.verts) == 0 {
		return 0
	}
	before := len(m.verts)
	rep := weld(m.verts, epsilon)
	for _, f := range m.faces {
		for i, v := range f {
			f[i] = rep[v]
		}
	}
	m.compact()
	return before - len(m.verts)
}

// weld maps every vertex to the lowest-indexed vertex within epsilon,
// using a uniform hash grid with cell size epsilon.
func weld(verts []mgl64.Vec3, epsilon float64) []int {
	if epsilon <= 0 {
		epsilon = 1e-9
	}
	type cell [3]int64
	cellOf := func(p mgl64.Vec3) cell {
		return cell{
			int64(math.Floor(p[0] / epsilon)),
			int64(math.Floor(p[1] / epsilon)),
			int64(math.Floor(p[2] / epsilon)),
		}
	}
	grid := make(map[cell][]int)
	rep := make([]int, len(verts))
	for i, p := range verts {
		rep[i] = i
		c := cellOf(p)
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if verts[j].Sub(p).Len() <= epsilon {
							rep[i] = j
							break search
						}
					}
				}
			}
		}
		if rep[i] == i {
			grid[c] = append(grid[c], i)
		}
	}
	return rep
}

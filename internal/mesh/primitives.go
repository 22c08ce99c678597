package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// newPlane builds a plane in the XZ plane centred on the origin. Vertex
// (x, z) has index z*(subdivX+1)+x, so a row-major height grid maps onto it
// directly.
func newPlane(width, depth float64, subdivX, subdivZ int) *polyMesh {
	subdivX = max(subdivX, 1)
	subdivZ = max(subdivZ, 1)
	nx := subdivX + 1
	m := &polyMesh{}
	for z := 0; z <= subdivZ; z++ {
		for x := 0; x <= subdivX; x++ {
			m.verts = append(m.verts, mgl64.Vec3{
				-width/2 + width*float64(x)/float64(subdivX),
				0,
				-depth/2 + depth*float64(z)/float64(subdivZ),
			})
		}
	}
	for z := 0; z < subdivZ; z++ {
		for x := 0; x < subdivX; x++ {
			a := z*nx + x
			m.faces = append(m.faces, []int{a, a + nx, a + nx + 1, a + 1})
		}
	}
	return m
}

// newSphere builds a UV sphere: rings of subdivAxis vertices, then the top
// and bottom poles. Pole caps are triangles.
func newSphere(radius float64, subdivAxis, subdivHeight int) *polyMesh {
	sa := max(subdivAxis, 3)
	sh := max(subdivHeight, 2)
	m := &polyMesh{}
	for k := 1; k < sh; k++ {
		theta := math.Pi * float64(k) / float64(sh)
		for j := 0; j < sa; j++ {
			phi := 2 * math.Pi * float64(j) / float64(sa)
			m.verts = append(m.verts, mgl64.Vec3{
				radius * math.Sin(theta) * math.Cos(phi),
				radius * math.Cos(theta),
				radius * math.Sin(theta) * math.Sin(phi),
			})
		}
	}
	top := len(m.verts)
	bottom := top + 1
	m.verts = append(m.verts, mgl64.Vec3{0, radius, 0}, mgl64.Vec3{0, -radius, 0})

	ring := func(k, j int) int { return (k-1)*sa + j%sa }
	for j := 0; j < sa; j++ {
		m.faces = append(m.faces, []int{top, ring(1, j+1), ring(1, j)})
	}
	for k := 1; k < sh-1; k++ {
		for j := 0; j < sa; j++ {
			m.faces = append(m.faces, []int{ring(k, j), ring(k, j+1), ring(k+1, j+1), ring(k+1, j)})
		}
	}
	for j := 0; j < sa; j++ {
		m.faces = append(m.faces, []int{ring(sh-1, j), ring(sh-1, j+1), bottom})
	}
	return m
}

// newBox builds a closed box centred on the origin. The top grid comes
// first (indices [0, (subdivX+1)*(subdivZ+1))), the bottom grid second, and
// the sides are single quads bridging the two perimeters.
func newBox(width, height, depth float64, subdivX, subdivZ int) *polyMesh {
	subdivX = max(subdivX, 1)
	subdivZ = max(subdivZ, 1)
	top := newPlane(width, depth, subdivX, subdivZ)
	bottom := newPlane(width, depth, subdivX, subdivZ)
	for i := range top.verts {
		top.verts[i][1] = height / 2
		bottom.verts[i][1] = -height / 2
	}
	for _, f := range bottom.faces {
		reverseRing(f)
	}
	n := len(top.verts)
	m := top
	m.appendMesh(bottom)

	nx := subdivX + 1
	idx := func(x, z int) int { return z*nx + x }
	var perimeter []int
	for x := 0; x < subdivX; x++ {
		perimeter = append(perimeter, idx(x, 0))
	}
	for z := 0; z < subdivZ; z++ {
		perimeter = append(perimeter, idx(subdivX, z))
	}
	for x := subdivX; x > 0; x-- {
		perimeter = append(perimeter, idx(x, subdivZ))
	}
	for z := subdivZ; z > 0; z-- {
		perimeter = append(perimeter, idx(0, z))
	}
	for i, a := range perimeter {
		b := perimeter[(i+1)%len(perimeter)]
		m.faces = append(m.faces, []int{a, b, b + n, a + n})
	}
	m.invalidate()
	return m
}

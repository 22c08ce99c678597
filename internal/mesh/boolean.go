package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// rayDir is deliberately off-axis so parity rays rarely graze grid edges.
var rayDir = mgl64.Vec3{0.5773, 0.0531, 0.8148}.Normalize()

// solid answers point-in-mesh queries for a closed polygon mesh. Triangles
// are bucketed on a grid in the plane perpendicular to rayDir, where every
// parity ray projects to a single point.
type solid struct {
	verts   []mgl64.Vec3
	tris    [][3]int
	box     bbox
	u, w    mgl64.Vec3
	lo      [2]float64
	cell    [2]float64
	n       int
	buckets [][]int32
}

func newSolid(m *polyMesh) *solid {
	s := &solid{verts: m.verts, box: m.bounds()}
	for _, f := range m.faces {
		for i := 1; i+1 < len(f); i++ {
			s.tris = append(s.tris, [3]int{f[0], f[i], f[i+1]})
		}
	}
	s.u = rayDir.Cross(mgl64.Vec3{0, 1, 0}).Normalize()
	s.w = rayDir.Cross(s.u)

	s.n = int(math.Ceil(math.Sqrt(float64(len(s.tris)))))
	s.n = max(1, min(s.n, 256))
	lo := [2]float64{math.Inf(1), math.Inf(1)}
	hi := [2]float64{math.Inf(-1), math.Inf(-1)}
	for _, p := range s.verts {
		q := s.project(p)
		for i := range q {
			lo[i] = math.Min(lo[i], q[i])
			hi[i] = math.Max(hi[i], q[i])
		}
	}
	s.lo = lo
	for i := range s.cell {
		s.cell[i] = math.Max((hi[i]-lo[i])/float64(s.n), 1e-9)
	}
	s.buckets = make([][]int32, s.n*s.n)
	for ti, t := range s.tris {
		a, b, c := s.project(s.verts[t[0]]), s.project(s.verts[t[1]]), s.project(s.verts[t[2]])
		x0, y0 := s.bucket([2]float64{min(a[0], b[0], c[0]), min(a[1], b[1], c[1])})
		x1, y1 := s.bucket([2]float64{max(a[0], b[0], c[0]), max(a[1], b[1], c[1])})
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				s.buckets[y*s.n+x] = append(s.buckets[y*s.n+x], int32(ti))
			}
		}
	}
	return s
}

func (s *solid) project(p mgl64.Vec3) [2]float64 {
	return [2]float64{p.Dot(s.u), p.Dot(s.w)}
}

// bucket returns the grid cell of a projected point, clamped to the grid.
func (s *solid) bucket(q [2]float64) (int, int) {
	x := int((q[0] - s.lo[0]) / s.cell[0])
	y := int((q[1] - s.lo[1]) / s.cell[1])
	return max(0, min(x, s.n-1)), max(0, min(y, s.n-1))
}

// contains counts ray crossings; an odd count means p is inside.
func (s *solid) contains(p mgl64.Vec3) bool {
	if !s.box.contains(p) {
		return false
	}
	x, y := s.bucket(s.project(p))
	hits := 0
	for _, ti := range s.buckets[y*s.n+x] {
		t := s.tris[ti]
		if rayHitsTriangle(p, rayDir, s.verts[t[0]], s.verts[t[1]], s.verts[t[2]]) {
			hits++
		}
	}
	return hits%2 == 1
}

// rayHitsTriangle is the Möller–Trumbore test restricted to t > 0.
func rayHitsTriangle(origin, dir, a, b, c mgl64.Vec3) bool {
	const eps = 1e-12
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return false
	}
	inv := 1 / det
	s := origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return false
	}
	return e2.Dot(q)*inv > 1e-9
}

// BooleanOp classifies whole faces by whether their centroid lies inside
// the other operand. Faces are not split, so seams follow the input
// tessellation.
func (k *Memory) BooleanOp(a, b Handle, op BoolOp) (Handle, error) {
	ma, mb := k.mesh(a), k.mesh(b)
	if ma == nil || mb == nil {
		return NoHandle, fmt.Errorf("boolean %s %d,%d: %w", op, a, b, ErrUnknownHandle)
	}
	if len(ma.faces) == 0 || len(mb.faces) == 0 {
		return NoHandle, fmt.Errorf("boolean %s: empty operand: %w", op, ErrDegenerateGeometry)
	}

	inA, inB := newSolid(ma), newSolid(mb)
	out := ma.clone()
	offset := out.appendMesh(mb)

	var faces [][]int
	for _, f := range ma.faces {
		if !inB.contains(ma.faceCentroid(f)) {
			faces = append(faces, append([]int(nil), f...))
		}
	}
	for _, f := range mb.faces {
		inside := inA.contains(mb.faceCentroid(f))
		switch {
		case op == Union && !inside:
			faces = append(faces, shift(f, offset, false))
		case op == Difference && inside:
			faces = append(faces, shift(f, offset, true))
		}
	}
	if len(faces) == 0 {
		return NoHandle, fmt.Errorf("boolean %s: result is empty: %w", op, ErrDegenerateGeometry)
	}
	out.faces = faces
	out.compact()
	return k.add(k.objects[a].name, out), nil
}

func shift(f []int, offset int, reverse bool) []int {
	out := make([]int, len(f))
	for i, v := range f {
		out[i] = v + offset
	}
	if reverse {
		reverseRing(out)
	}
	return out
}

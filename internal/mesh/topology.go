package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// polyMesh is an indexed polygon mesh. Faces list vertex indices wound
// counter-clockwise when viewed from outside.
type polyMesh struct {
	verts []mgl64.Vec3
	faces [][]int

	topo *topology // nil when stale
}

// topology caches edge connectivity, rebuilt lazily after any change to faces.
type topology struct {
	edges     [][2]int
	edgeFaces [][]int
	vertEdges [][]int
	vertFaces [][]int
	edgeIndex map[[2]int]int
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func (m *polyMesh) clone() *polyMesh {
	c := &polyMesh{
		verts: make([]mgl64.Vec3, len(m.verts)),
		faces: make([][]int, len(m.faces)),
	}
	copy(c.verts, m.verts)
	for i, f := range m.faces {
		c.faces[i] = append([]int(nil), f...)
	}
	return c
}

func (m *polyMesh) invalidate() {
	m.topo = nil
}

// topology returns the edge cache, building it on first use. Edge indices
// follow first appearance walking faces in order.
func (m *polyMesh) topology() *topology {
	if m.topo != nil {
		return m.topo
	}
	t := &topology{
		edgeIndex: make(map[[2]int]int),
		vertEdges: make([][]int, len(m.verts)),
		vertFaces: make([][]int, len(m.verts)),
	}
	for fi, f := range m.faces {
		for i, a := range f {
			b := f[(i+1)%len(f)]
			key := edgeKey(a, b)
			ei, ok := t.edgeIndex[key]
			if !ok {
				ei = len(t.edges)
				t.edgeIndex[key] = ei
				t.edges = append(t.edges, key)
				t.edgeFaces = append(t.edgeFaces, nil)
				t.vertEdges[key[0]] = append(t.vertEdges[key[0]], ei)
				t.vertEdges[key[1]] = append(t.vertEdges[key[1]], ei)
			}
			t.edgeFaces[ei] = append(t.edgeFaces[ei], fi)
			t.vertFaces[a] = append(t.vertFaces[a], fi)
		}
	}
	m.topo = t
	return t
}

// boundaryEdges returns directed boundary edges (a→b as wound in their face).
func (m *polyMesh) boundaryEdges() [][2]int {
	t := m.topology()
	var out [][2]int
	for fi, f := range m.faces {
		for i, a := range f {
			b := f[(i+1)%len(f)]
			ei := t.edgeIndex[edgeKey(a, b)]
			if len(t.edgeFaces[ei]) == 1 && t.edgeFaces[ei][0] == fi {
				out = append(out, [2]int{a, b})
			}
		}
	}
	return out
}

// faceNormal uses Newell's method so non-planar quads get a stable normal.
func (m *polyMesh) faceNormal(f []int) mgl64.Vec3 {
	var n mgl64.Vec3
	for i, a := range f {
		p := m.verts[a]
		q := m.verts[f[(i+1)%len(f)]]
		n[0] += (p[1] - q[1]) * (p[2] + q[2])
		n[1] += (p[2] - q[2]) * (p[0] + q[0])
		n[2] += (p[0] - q[0]) * (p[1] + q[1])
	}
	return n
}

func (m *polyMesh) faceCentroid(f []int) mgl64.Vec3 {
	var c mgl64.Vec3
	for _, v := range f {
		c = c.Add(m.verts[v])
	}
	return c.Mul(1 / float64(len(f)))
}

// vertexNormal is the area-weighted average of the incident face normals.
func (m *polyMesh) vertexNormal(v int) mgl64.Vec3 {
	t := m.topology()
	var n mgl64.Vec3
	seen := make(map[int]bool, len(t.vertFaces[v]))
	for _, fi := range t.vertFaces[v] {
		if seen[fi] {
			continue
		}
		seen[fi] = true
		n = n.Add(m.faceNormal(m.faces[fi]))
	}
	if n.Len() == 0 {
		return mgl64.Vec3{0, 1, 0}
	}
	return n.Normalize()
}

type bbox struct {
	min, max mgl64.Vec3
}

func (m *polyMesh) bounds() bbox {
	b := bbox{
		min: mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		max: mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, p := range m.verts {
		for k := 0; k < 3; k++ {
			b.min[k] = math.Min(b.min[k], p[k])
			b.max[k] = math.Max(b.max[k], p[k])
		}
	}
	return b
}

func (b bbox) contains(p mgl64.Vec3) bool {
	for k := 0; k < 3; k++ {
		if p[k] < b.min[k] || p[k] > b.max[k] {
			return false
		}
	}
	return true
}

// compact drops unreferenced vertices and faces with fewer than three
// distinct vertices. Surviving vertices keep their relative order.
func (m *polyMesh) compact() {
	var faces [][]int
	used := make([]bool, len(m.verts))
	for _, f := range m.faces {
		f = dedupeRing(f)
		if len(f) < 3 {
			continue
		}
		for _, v := range f {
			used[v] = true
		}
		faces = append(faces, f)
	}
	remap := make([]int, len(m.verts))
	var verts []mgl64.Vec3
	for i, ok := range used {
		if ok {
			remap[i] = len(verts)
			verts = append(verts, m.verts[i])
		}
	}
	for _, f := range faces {
		for i, v := range f {
			f[i] = remap[v]
		}
	}
	m.verts = verts
	m.faces = faces
	m.invalidate()
}

// dedupeRing removes consecutive repeats (including wrap-around) from a
// face's vertex ring.
func dedupeRing(f []int) []int {
	out := make([]int, 0, len(f))
	for i, v := range f {
		if i > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// appendMesh copies other's geometry into m, returning the vertex offset.
func (m *polyMesh) appendMesh(other *polyMesh) int {
	offset := len(m.verts)
	m.verts = append(m.verts, other.verts...)
	for _, f := range other.faces {
		nf := make([]int, len(f))
		for i, v := range f {
			nf[i] = v + offset
		}
		m.faces = append(m.faces, nf)
	}
	m.invalidate()
	return offset
}

func reverseRing(f []int) {
	for i, j := 0, len(f)-1; i < j; i, j = i+1, j-1 {
		f[i], f[j] = f[j], f[i]
	}
}

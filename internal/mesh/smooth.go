package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Smooth runs Catmull–Clark subdivision divisions times. Original vertices
// keep their indices; edge points follow, then face points. Border
// vertices slide along the border and vertices with only two edges are
// pinned, so an open grid keeps its footprint.
func (k *Memory) Smooth(h Handle, divisions int) error {
	m := k.mesh(h)
	if m == nil {
		return fmt.Errorf("smooth %d: %w", h, ErrUnknownHandle)
	}
	for i := 0; i < divisions; i++ {
		if len(m.faces) == 0 {
			return fmt.Errorf("smooth: no faces: %w", ErrDegenerateGeometry)
		}
		subdivide(m)
	}
	return nil
}

func subdivide(m *polyMesh) {
	t := m.topology()
	nv, ne := len(m.verts), len(t.edges)

	facePts := make([]mgl64.Vec3, len(m.faces))
	for fi, f := range m.faces {
		facePts[fi] = m.faceCentroid(f)
	}

	edgePts := make([]mgl64.Vec3, ne)
	for ei, e := range t.edges {
		a, b := m.verts[e[0]], m.verts[e[1]]
		if fs := t.edgeFaces[ei]; len(fs) == 2 {
			edgePts[ei] = a.Add(b).Add(facePts[fs[0]]).Add(facePts[fs[1]]).Mul(0.25)
		} else {
			edgePts[ei] = a.Add(b).Mul(0.5)
		}
	}

	verts := make([]mgl64.Vec3, nv, nv+ne+len(m.faces))
	for v := 0; v < nv; v++ {
		verts[v] = smoothedVertex(m, t, facePts, v)
	}
	verts = append(verts, edgePts...)
	verts = append(verts, facePts...)

	faces := make([][]int, 0, 4*len(m.faces))
	for fi, f := range m.faces {
		fp := nv + ne + fi
		for i, v := range f {
			next := f[(i+1)%len(f)]
			prev := f[(i+len(f)-1)%len(f)]
			en := nv + t.edgeIndex[edgeKey(v, next)]
			ep := nv + t.edgeIndex[edgeKey(prev, v)]
			faces = append(faces, []int{v, en, fp, ep})
		}
	}
	m.verts = verts
	m.faces = faces
	m.invalidate()
}

func smoothedVertex(m *polyMesh, t *topology, facePts []mgl64.Vec3, v int) mgl64.Vec3 {
	p := m.verts[v]
	edges := t.vertEdges[v]
	if len(edges) == 0 {
		return p
	}
	var border []int
	for _, ei := range edges {
		if len(t.edgeFaces[ei]) < 2 {
			border = append(border, ei)
		}
	}
	other := func(ei int) mgl64.Vec3 {
		e := t.edges[ei]
		if e[0] == v {
			return m.verts[e[1]]
		}
		return m.verts[e[0]]
	}
	if len(border) > 0 {
		if len(border) != 2 || len(edges) <= 2 {
			return p
		}
		return p.Mul(6).Add(other(border[0])).Add(other(border[1])).Mul(1.0 / 8)
	}

	n := float64(len(edges))
	var fAvg, rAvg mgl64.Vec3
	faces := uniqueInts(t.vertFaces[v])
	for _, fi := range faces {
		fAvg = fAvg.Add(facePts[fi])
	}
	fAvg = fAvg.Mul(1 / float64(len(faces)))
	for _, ei := range edges {
		rAvg = rAvg.Add(p.Add(other(ei)).Mul(0.5))
	}
	rAvg = rAvg.Mul(1 / n)
	return fAvg.Add(rAvg.Mul(2)).Add(p.Mul(n - 3)).Mul(1 / n)
}

// ReducePolyCount decimates by vertex clustering until roughly percent of
// the vertices are gone. Clusters collapse to their mean position.
func (k *Memory) ReducePolyCount(h Handle, percent float64) error {
	m := k.mesh(h)
	if m == nil {
		return fmt.Errorf("reduce %d: %w", h, ErrUnknownHandle)
	}
	if percent <= 0 {
		return nil
	}
	if percent >= 100 {
		return fmt.Errorf("reduce by %.0f%%: %w", percent, ErrDegenerateGeometry)
	}
	target := int(math.Round(float64(len(m.verts)) * (1 - percent/100)))
	target = max(target, 4)
	if target >= len(m.verts) {
		return nil
	}

	box := m.bounds()
	ext := box.max.Sub(box.min)
	span := math.Max(ext[0], math.Max(ext[1], ext[2]))
	if span == 0 {
		return fmt.Errorf("reduce: zero extent: %w", ErrDegenerateGeometry)
	}
	cells := func(res int) map[[3]int][]int {
		size := span / float64(res)
		out := make(map[[3]int][]int)
		for i, p := range m.verts {
			d := p.Sub(box.min)
			key := [3]int{
				min(int(d[0]/size), res-1),
				min(int(d[1]/size), res-1),
				min(int(d[2]/size), res-1),
			}
			out[key] = append(out[key], i)
		}
		return out
	}

	lo, hi := 1, 512
	for lo < hi {
		mid := (lo + hi) / 2
		if len(cells(mid)) >= target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	reduced := m.clone()
	rep := make([]int, len(m.verts))
	for _, members := range cells(lo) {
		var c mgl64.Vec3
		for _, v := range members {
			c = c.Add(m.verts[v])
		}
		c = c.Mul(1 / float64(len(members)))
		for _, v := range members {
			rep[v] = members[0]
		}
		reduced.verts[members[0]] = c
	}
	for _, f := range reduced.faces {
		for i, v := range f {
			f[i] = rep[v]
		}
	}
	reduced.compact()
	if len(reduced.faces) == 0 {
		return fmt.Errorf("reduce: every face collapsed: %w", ErrDegenerateGeometry)
	}
	m.verts, m.faces = reduced.verts, reduced.faces
	m.invalidate()
	return nil
}

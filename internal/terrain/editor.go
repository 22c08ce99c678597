package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/mesh"
)

// Falloff is a linear soft-selection kernel.
type Falloff struct {
	Radius float64
}

// Weight returns the displacement weight at distance d. A non-positive
// radius is hard-edged: weight 1 on the anchors only.
func (f Falloff) Weight(d float64) float64 {
	if f.Radius <= 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-d/f.Radius)
}

// selectedFaces validates sel against the terrain. With multiple unset
// exactly one face is required, otherwise at least one.
func (s *Session) selectedFaces(sel mesh.Selection, multiple bool) ([]int, error) {
	if err := s.requireTerrain(); err != nil {
		return nil, err
	}
	want := "a single face"
	if multiple {
		want = "one or more faces"
	}
	if len(sel) == 0 {
		return nil, &SelectionError{Want: want, Got: "nothing"}
	}
	if !multiple && len(sel) > 1 {
		return nil, &SelectionError{Want: want, Got: fmt.Sprintf("%d elements", len(sel))}
	}
	nf := s.kernel.FaceCount(s.terrain)
	faces := make([]int, 0, len(sel))
	for _, e := range sel {
		switch {
		case e.Mesh != s.terrain:
			return nil, &SelectionError{Want: want, Got: "a non-terrain object"}
		case e.Kind != mesh.ElementFace:
			return nil, &SelectionError{Want: want, Got: "a " + e.Kind.String()}
		case e.Index < 0 || e.Index >= nf:
			return nil, &SelectionError{Want: want, Got: fmt.Sprintf("face %d of %d", e.Index, nf)}
		}
		faces = append(faces, e.Index)
	}
	return faces, nil
}

// faceVertices returns the distinct vertices of the given faces.
func (s *Session) faceVertices(faces []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range faces {
		for _, v := range s.kernel.FaceVertices(s.terrain, f) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// softMove raises each anchor by lift(anchor) and every other vertex by
// Weight(d) times the lift of its nearest anchor, d being the 3D distance
// to that anchor. Once solid, vertices at base elevation are left alone.
func (s *Session) softMove(anchors []int, lift func(anchor int) float64, radius float64) {
	k, h := s.kernel, s.terrain
	base := s.cfg.Terrain.BaseElevation
	fall := Falloff{Radius: radius}

	anchorPos := make([]mgl64.Vec3, len(anchors))
	anchorLift := make([]float64, len(anchors))
	isAnchor := make(map[int]int, len(anchors))
	for i, a := range anchors {
		anchorPos[i] = k.VertexPosition(h, a)
		anchorLift[i] = lift(a)
		isAnchor[a] = i
	}

	n := k.VertexCount(h)
	for v := 0; v < n; v++ {
		p := k.VertexPosition(h, v)
		if s.solid && p.Y() == base {
			continue
		}
		if i, ok := isAnchor[v]; ok {
			s.setElevation(v, p, anchorPos[i].Y()+anchorLift[i])
			continue
		}
		if radius <= 0 {
			continue
		}
		nearest, best := -1, math.Inf(1)
		for i, ap := range anchorPos {
			if d := p.Sub(ap).Len(); d < best {
				nearest, best = i, d
			}
		}
		w := fall.Weight(best)
		if w == 0 || anchorLift[nearest] == 0 {
			continue
		}
		s.setElevation(v, p, p.Y()+w*anchorLift[nearest])
	}
}

// Bump adds uniform(-amount, amount) to every vertex elevation. A zero
// amount flattens instead, scaling every elevation toward zero. Vertices at
// base elevation are never moved, and placed trees are deleted.
func (s *Session) Bump(ctx context.Context, amount float64) error {
	if err := s.requireTerrain(); err != nil {
		return err
	}
	s.DeleteTrees()

	k, h := s.kernel, s.terrain
	base := s.cfg.Terrain.BaseElevation
	factor := s.cfg.Editor.FlattenFactor
	status := "Adding bumps"
	if amount == 0 {
		status = "Flattening"
	}
	n := k.VertexCount(h)
	for v := 0; v < n; v++ {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		p := k.VertexPosition(h, v)
		if p.Y() == base {
			continue
		}
		if amount == 0 {
			s.setElevation(v, p, p.Y()*factor)
		} else {
			s.setElevation(v, p, p.Y()+s.uniform(-amount, amount))
		}
		s.report(v+1, n, status)
	}
	s.log.Info("terrain bumped", "amount", amount, "vertices", n)
	return nil
}

// Mountain raises a peak on a single selected face: a steep core of
// MountainCoreHeight over radius*MountainCoreRatio, then height over radius.
func (s *Session) Mountain(sel mesh.Selection, radius, height float64) error {
	faces, err := s.selectedFaces(sel, false)
	if err != nil {
		return fmt.Errorf("mountain: %w", err)
	}
	anchors := s.faceVertices(faces)
	ed := s.cfg.Editor
	core := ed.MountainCoreHeight
	s.softMove(anchors, func(int) float64 { return core }, ed.MountainCoreRatio*radius)
	s.softMove(anchors, func(int) float64 { return height }, radius)
	s.log.Info("mountain raised", "face", faces[0], "radius", radius, "height", height)
	return nil
}

// Trench lowers the selected faces by depth, blending over falloffWidth.
// A non-positive width gives a hard-edged cut.
func (s *Session) Trench(sel mesh.Selection, falloffWidth, depth float64) error {
	faces, err := s.selectedFaces(sel, true)
	if err != nil {
		return fmt.Errorf("trench: %w", err)
	}
	s.softMove(s.faceVertices(faces), func(int) float64 { return -depth }, falloffWidth)
	s.log.Info("trench cut", "faces", len(faces), "falloff", falloffWidth, "depth", depth)
	return nil
}

// FlattenFaces levels each selected face at the mean elevation of its own
// vertices, blending into its neighbours. Placed trees are deleted.
func (s *Session) FlattenFaces(sel mesh.Selection) error {
	faces, err := s.selectedFaces(sel, true)
	if err != nil {
		return fmt.Errorf("flatten faces: %w", err)
	}
	s.DeleteTrees()
	s.flattenFaces(faces)
	s.log.Info("faces flattened", "faces", len(faces))
	return nil
}

func (s *Session) flattenFaces(faces []int) {
	k, h := s.kernel, s.terrain
	for _, f := range faces {
		verts := k.FaceVertices(h, f)
		mean := 0.0
		for _, v := range verts {
			mean += k.VertexPosition(h, v).Y()
		}
		mean /= float64(len(verts))
		s.softMove(verts, func(v int) float64 {
			return mean - k.VertexPosition(h, v).Y()
		}, s.cfg.Editor.FlattenFacesRadius)
	}
}

// Smooth subdivides the terrain. It refuses meshes above the configured
// vertex limit rather than smoothing part of them.
func (s *Session) Smooth(divisions int) error {
	if err := s.requireTerrain(); err != nil {
		return err
	}
	limit := s.cfg.Limits.SmoothVertexLimit
	if n := s.kernel.VertexCount(s.terrain); n > limit {
		return fmt.Errorf("smooth: %d vertices, limit %d: %w", n, limit, ErrVertexLimitExceeded)
	}
	if err := s.kernel.Smooth(s.terrain, divisions); err != nil {
		return fmt.Errorf("smooth: %w", err)
	}
	s.grid = nil
	s.log.Info("terrain smoothed", "divisions", divisions, "vertices", s.kernel.VertexCount(s.terrain))
	return nil
}

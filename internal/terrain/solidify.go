package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Volume describes a solidified terrain. VertexCount is always
// TopVertices + WallVertices + CapVertices.
type Volume struct {
	TopVertices   int     // Surface vertices before solidifying
	WallVertices  int     // One per boundary-loop vertex
	CapVertices   int     // Bottom-cap vertices left after welding
	Welded        int     // Vertices merged into the walls
	VertexCount   int
	BaseElevation float64
}

// Solidify turns the open terrain surface into a closed volume: the
// boundary loop is extruded down to base elevation, a mirrored bottom cap
// is added and the seam is welded.
//
// Cancellation after extrusion leaves the terrain indeterminate; Dirty
// reports true until it is deleted or regenerated.
func (s *Session) Solidify(ctx context.Context) (*Volume, error) {
	if err := s.requireTerrain(); err != nil {
		return nil, err
	}
	if s.solid {
		return nil, fmt.Errorf("solidify: %w", ErrAlreadySolid)
	}
	k, h := s.kernel, s.terrain
	base := s.cfg.Terrain.BaseElevation
	top := k.VertexCount(h)

	edges := k.EdgeCount(h)
	boundary := 0
	for e := 0; e < edges; e++ {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		if k.EdgeConnectivity(h, e).Boundary() {
			boundary++
		}
		s.report(e+1, edges, "Finding boundary edges")
	}
	if boundary == 0 {
		return nil, fmt.Errorf("solidify: terrain has no open boundary: %w", ErrDegenerateGeometry)
	}
	faces := k.FaceCount(h)

	first, last, err := k.ExtrudeBoundary(h, mgl64.Vec3{})
	if err != nil {
		return nil, fmt.Errorf("solidify: %w", err)
	}
	s.dirty = true
	s.grid = nil
	for v := first; v < last; v++ {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		p := k.VertexPosition(h, v)
		k.MoveVertex(h, v, mgl64.Vec3{p.X(), base, p.Z()}, false)
		s.report(v-first+1, last-first, "Extruding walls")
	}

	subdiv := int(math.Round(math.Sqrt(float64(faces))))
	if subdiv < 1 {
		subdiv = 1
	}
	size := s.cfg.Terrain.Size
	bottom := k.CreatePlane(size, size, subdiv, subdiv)
	k.Transform(bottom, mgl64.Translate3D(0, base, 0).Mul4(mgl64.Scale3D(1, -1, 1)))
	solidHandle, err := k.Combine(h, bottom)
	k.Delete(bottom)
	if err != nil {
		return nil, fmt.Errorf("solidify: %w", err)
	}
	k.Delete(h)
	s.terrain = solidHandle
	welded := k.MergeCoincidentVertices(solidHandle, s.cfg.Terrain.MergeEpsilon)

	s.solid = true
	s.dirty = false
	vol := &Volume{
		TopVertices:   top,
		WallVertices:  last - first,
		Welded:        welded,
		VertexCount:   k.VertexCount(solidHandle),
		BaseElevation: base,
	}
	vol.CapVertices = vol.VertexCount - vol.TopVertices - vol.WallVertices
	s.log.Info("terrain solidified",
		"top", vol.TopVertices,
		"walls", vol.WallVertices,
		"cap", vol.CapVertices,
		"welded", welded,
		"boundary_edges", boundary,
	)
	return vol, nil
}

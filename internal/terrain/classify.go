package terrain

import (
	"context"
	"fmt"

	"github.com/talgya/landscaper/internal/heightfield"
)

// Classify labels terrain vertex v from its live connectivity. A vertex
// touching no boundary edge is Interior; a boundary vertex with three or
// more edges is Edge, otherwise Corner.
func (s *Session) Classify(v int) (heightfield.Role, error) {
	if err := s.requireTerrain(); err != nil {
		return 0, err
	}
	if n := s.kernel.VertexCount(s.terrain); v < 0 || v >= n {
		return 0, fmt.Errorf("classify: vertex %d out of range [0,%d)", v, n)
	}
	return s.classify(v), nil
}

func (s *Session) classify(v int) heightfield.Role {
	info := s.kernel.VertexConnectivity(s.terrain, v)
	boundary := false
	for _, e := range info.Edges {
		if s.kernel.EdgeConnectivity(s.terrain, e).Boundary() {
			boundary = true
			break
		}
	}
	switch {
	case !boundary:
		return heightfield.RoleInterior
	case len(info.Edges) >= 3:
		return heightfield.RoleEdge
	default:
		return heightfield.RoleCorner
	}
}

// ClassifyAll classifies every terrain vertex.
func (s *Session) ClassifyAll(ctx context.Context) ([]heightfield.Role, error) {
	if err := s.requireTerrain(); err != nil {
		return nil, err
	}
	n := s.kernel.VertexCount(s.terrain)
	roles := make([]heightfield.Role, n)
	for v := 0; v < n; v++ {
		if ctx.Err() != nil {
			return roles[:v], cancelled(ctx)
		}
		roles[v] = s.classify(v)
		s.report(v+1, n, "Classifying vertices")
	}
	return roles, nil
}

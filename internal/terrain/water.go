package terrain

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/mesh"
)

// Water is a box-like water volume spanning base elevation to sea level.
type Water struct {
	Handle    mesh.Handle
	SeaLevel  float64
	Separated bool // Boolean-subtracted from the terrain
}

// CreateWater replaces any existing water with a volume whose top sits at
// seaLevel, its surface vertices jittered for texture.
func (s *Session) CreateWater(ctx context.Context, seaLevel float64) (*Water, error) {
	base := s.cfg.Terrain.BaseElevation
	if seaLevel <= base {
		return nil, fmt.Errorf("create water: sea level %g must lie above base elevation %g", seaLevel, base)
	}
	s.DeleteWater()

	wc := s.cfg.Water
	k := s.kernel
	h := k.CreateBox(wc.Footprint, 1, wc.Footprint, wc.Subdivisions, wc.Subdivisions)
	s.water = &Water{Handle: h, SeaLevel: seaLevel}

	n := k.VertexCount(h)
	for v := 0; v < n; v++ {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		p := k.VertexPosition(h, v)
		y := base
		if p.Y() > 0 {
			y = seaLevel + s.uniform(-wc.SurfaceJitter, wc.SurfaceJitter)
		}
		k.MoveVertex(h, v, mgl64.Vec3{p.X(), y, p.Z()}, false)
		s.report(v+1, n, "Creating water")
	}
	s.log.Info("water created", "sea_level", seaLevel, "vertices", n)
	return s.Water(), nil
}

// SeparateWater subtracts the solid terrain from the water so the two
// volumes no longer overlap. It is a no-op once separated.
func (s *Session) SeparateWater() error {
	if s.water == nil {
		return fmt.Errorf("separate water: no water")
	}
	if s.water.Separated {
		return nil
	}
	if err := s.requireTerrain(); err != nil {
		return fmt.Errorf("separate water: %w", err)
	}
	if !s.solid {
		return fmt.Errorf("separate water: %w", ErrNotSolid)
	}
	diff, err := s.kernel.BooleanOp(s.water.Handle, s.terrain, mesh.Difference)
	if err != nil {
		return fmt.Errorf("separate water: %w", err)
	}
	s.kernel.Delete(s.water.Handle)
	s.water.Handle = diff
	s.water.Separated = true
	s.log.Info("water separated", "faces", s.kernel.FaceCount(diff))
	return nil
}

func (s *Session) DeleteWater() {
	if s.water == nil {
		return
	}
	s.kernel.Delete(s.water.Handle)
	s.water = nil
}

// seaLevel is the scatter cut-off: the water level, or the configured
// no-water level when there is none.
func (s *Session) seaLevel() float64 {
	if s.water == nil {
		return s.cfg.Water.NoWaterSeaLevel
	}
	return s.water.SeaLevel
}

package terrain

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/mesh"
)

// Cave describes one carved cavity.
type Cave struct {
	Spheres int
	Offset  mgl64.Vec3
	Yaw     float64 // Degrees
	Faces   int     // Blob faces subtracted from the terrain
}

// Carve packs sphereCount spheres along a biased random walk, unions them
// into one blob, roughens it, sinks it into the terrain and subtracts it.
// The terrain must be solid and any water separated from it.
func (s *Session) Carve(ctx context.Context, radiusMin, radiusMax float64, sphereCount int) (*Cave, error) {
	if err := s.requireTerrain(); err != nil {
		return nil, err
	}
	if !s.solid {
		return nil, fmt.Errorf("carve: %w", ErrNotSolid)
	}
	if s.water != nil && !s.water.Separated {
		return nil, fmt.Errorf("carve: %w", ErrWaterNotSeparated)
	}
	if radiusMin <= 0 || radiusMin > radiusMax || sphereCount < 1 {
		return nil, fmt.Errorf("carve: radius [%g,%g] with %d spheres is invalid", radiusMin, radiusMax, sphereCount)
	}

	k := s.kernel
	// live holds every kernel object this attempt still owns.
	var live []mesh.Handle
	cleanup := func() {
		for _, h := range live {
			k.Delete(h)
		}
	}

	var pos mgl64.Vec3
	up, left := true, true
	for i := 0; i < sphereCount; i++ {
		if ctx.Err() != nil {
			cleanup()
			return nil, cancelled(ctx)
		}
		dx := s.uniform(2, 3)
		dy := s.uniform(-1, 1)
		if up {
			pos[1] += 1.5
		} else {
			pos[1] -= 1.5
		}
		dz := s.uniform(-1, 1)
		if left {
			pos[2] -= 1.5
		} else {
			pos[2] += 1.5
		}
		up = dy > 0
		left = dz <= 0
		pos = pos.Add(mgl64.Vec3{dx, dy, dz})

		sp := k.CreateSphere(s.uniform(radiusMin, radiusMax), s.randint(4, 6), s.randint(4, 6))
		k.Transform(sp, mgl64.Translate3D(pos.X(), pos.Y(), pos.Z()))
		live = append(live, sp)
		s.report(i+1, sphereCount, "Placing cave spheres")
	}

	spheres := append([]mesh.Handle(nil), live...)
	blob := spheres[0]
	for i := 1; i < len(spheres); i++ {
		if ctx.Err() != nil {
			cleanup()
			return nil, cancelled(ctx)
		}
		merged, err := k.BooleanOp(blob, spheres[i], mesh.Union)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("carve: union sphere %d: %w", i, err)
		}
		k.Delete(blob)
		k.Delete(spheres[i])
		blob = merged
		live = append([]mesh.Handle{blob}, spheres[i+1:]...)
	}

	cc := s.cfg.Caves
	if err := k.ReducePolyCount(blob, cc.ReducePercent); err != nil {
		cleanup()
		return nil, fmt.Errorf("carve: %w", err)
	}
	if err := k.Smooth(blob, cc.SmoothDivisions); err != nil {
		cleanup()
		return nil, fmt.Errorf("carve: %w", err)
	}

	offset := mgl64.Vec3{cc.OffsetX, s.uniform(cc.DepthMin, cc.DepthMax), 0}
	yaw := float64(s.rng.Intn(360))
	centre := centroid(k, blob)
	k.Transform(blob, mgl64.Translate3D(centre.X()+offset.X(), centre.Y()+offset.Y(), centre.Z()+offset.Z()).
		Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(yaw))).
		Mul4(mgl64.Translate3D(-centre.X(), -centre.Y(), -centre.Z())))

	carved, err := k.BooleanOp(s.terrain, blob, mesh.Difference)
	blobFaces := k.FaceCount(blob)
	cleanup()
	if err != nil {
		return nil, fmt.Errorf("carve: %w", err)
	}
	k.Delete(s.terrain)
	s.terrain = carved

	cave := &Cave{Spheres: sphereCount, Offset: offset, Yaw: yaw, Faces: blobFaces}
	s.log.Info("cave carved",
		"spheres", sphereCount,
		"yaw", yaw,
		"blob_faces", blobFaces,
		"terrain_faces", k.FaceCount(carved),
	)
	return cave, nil
}

func centroid(k mesh.Kernel, h mesh.Handle) mgl64.Vec3 {
	n := k.VertexCount(h)
	var c mgl64.Vec3
	for v := 0; v < n; v++ {
		c = c.Add(k.VertexPosition(h, v))
	}
	if n > 0 {
		c = c.Mul(1 / float64(n))
	}
	return c
}

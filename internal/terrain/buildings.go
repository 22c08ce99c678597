package terrain

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/mesh"
)

// BuildingParams configures PlaceBuilding. Sizes are percentages.
type BuildingParams struct {
	MinSize  float64
	MaxSize  float64
	Rotation float64 // Degrees about Y
}

// BuildingResult describes a placed building.
type BuildingResult struct {
	Instance Instance
	Group    mesh.Handle
	Warnings []Warning
}

// PlaceBuilding flattens a single selected face and stands a building of
// the session's BuildingKind on its centre. City buildings get a random
// roof height.
func (s *Session) PlaceBuilding(ctx context.Context, sel mesh.Selection, p BuildingParams) (*BuildingResult, error) {
	faces, err := s.selectedFaces(sel, false)
	if err != nil {
		return nil, fmt.Errorf("place building: %w", err)
	}
	if p.MinSize > p.MaxSize {
		return nil, fmt.Errorf("place building: min size %g exceeds max size %g", p.MinSize, p.MaxSize)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	s.flattenFaces(faces)

	kind := s.buildingKind
	proto, warn, err := s.asset(kind)
	if err != nil {
		return nil, fmt.Errorf("place building: %w", err)
	}
	res := &BuildingResult{}
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}

	k := s.kernel
	verts := k.FaceVertices(s.terrain, faces[0])
	var centre mgl64.Vec3
	for _, v := range verts {
		centre = centre.Add(k.VertexPosition(s.terrain, v))
	}
	centre = centre.Mul(1 / float64(len(verts)))
	if kind == AssetHouse {
		centre[1] += 0.5
	}

	scale := s.uniform(p.MinSize, p.MaxSize) / 100
	inst := s.place(proto, kind, centre, p.Rotation, scale)
	if kind == AssetCityBuilding {
		raiseRoof(k, inst.Mesh, s.uniform(-1, 4)*scale)
	}

	members := append(k.Members(s.buildings), inst.Mesh)
	group := k.GroupObjects("Buildings", members)
	if s.buildings != mesh.NoHandle {
		k.Delete(s.buildings)
	}
	s.buildings = group

	res.Instance = inst
	res.Group = group
	s.log.Info("building placed",
		"kind", kind,
		"face", faces[0],
		"scale", scale,
		"buildings", len(members),
	)
	return res, nil
}

// raiseRoof lifts the top-most vertices of h by dy.
func raiseRoof(k mesh.Kernel, h mesh.Handle, dy float64) {
	n := k.VertexCount(h)
	if n == 0 {
		return
	}
	top := k.VertexPosition(h, 0).Y()
	for v := 1; v < n; v++ {
		top = max(top, k.VertexPosition(h, v).Y())
	}
	for v := 0; v < n; v++ {
		if k.VertexPosition(h, v).Y() >= top-1e-9 {
			k.MoveVertex(h, v, mgl64.Vec3{0, dy, 0}, true)
		}
	}
}

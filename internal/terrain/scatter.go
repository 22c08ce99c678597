package terrain

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/heightfield"
	"github.com/talgya/landscaper/internal/mesh"
)

// AssetKind identifies a placeable object.
type AssetKind uint8

const (
	AssetSmallTree AssetKind = iota
	AssetTallTree
	AssetCityBuilding
	AssetHouse
)

func (k AssetKind) String() string {
	switch k {
	case AssetSmallTree:
		return "smallTree"
	case AssetTallTree:
		return "tallTree"
	case AssetCityBuilding:
		return "cityBuilding"
	case AssetHouse:
		return "house"
	default:
		return "unknown"
	}
}

// Instance is one placed object.
type Instance struct {
	Kind     AssetKind
	Position mgl64.Vec3
	Scale    float64
	Yaw      float64 // Degrees
	Mesh     mesh.Handle
}

// Warning is a degraded but non-fatal outcome, such as a placeholder
// standing in for an asset that failed to load.
type Warning struct {
	Kind AssetKind
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s model not loaded from %s, using a placeholder: %v", w.Kind, w.Path, w.Err)
}

// asset returns the prototype for kind, importing it on first use. When the
// file cannot be read a placeholder primitive is built instead and a
// Warning is returned.
func (s *Session) asset(kind AssetKind) (mesh.Handle, *Warning, error) {
	if h, ok := s.assets[kind]; ok && s.kernel.Exists(h) {
		return h, nil, nil
	}
	ac := s.cfg.Assets
	var file string
	scale := ac.TreeScale
	switch kind {
	case AssetSmallTree:
		file = ac.SmallTree
	case AssetTallTree:
		file = ac.TallTree
	case AssetCityBuilding:
		file, scale = ac.City, ac.BuildingScale
	case AssetHouse:
		file, scale = ac.House, ac.BuildingScale
	}
	path := ac.AssetPath(file)

	var warn *Warning
	h, err := s.kernel.ImportAsset(path)
	switch {
	case errors.Is(err, ErrResourceNotFound):
		warn = &Warning{Kind: kind, Path: path, Err: err}
		s.log.Warn("asset not found, using placeholder", "kind", kind, "path", path, "err", err)
		if kind == AssetCityBuilding || kind == AssetHouse {
			h = s.kernel.CreateBox(1, 1, 1.25, 1, 1)
		} else {
			h = s.kernel.CreateSphere(1, 8, 8)
		}
	case err != nil:
		return mesh.NoHandle, nil, err
	}
	s.kernel.Transform(h, mgl64.Scale3D(scale, scale, scale))
	s.assets[kind] = h
	return h, warn, nil
}

// ScatterParams configures Scatter. Rates and scales are percentages.
type ScatterParams struct {
	SpawnRate     float64 // Chance per eligible vertex, 0-100
	SpeciesHeight float64 // Small trees below, tall trees at or above
	MinScale      float64
	MaxScale      float64
	MaxSlope      float64 // Spawn only where normal.Y > 1-MaxSlope
}

// ScatterResult lists what Scatter placed.
type ScatterResult struct {
	Instances []Instance
	Group     mesh.Handle // NoHandle when nothing was placed
	Warnings  []Warning
}

// Scatter replaces any placed trees with a fresh scattering over interior
// vertices that are flat enough and clear of the water.
func (s *Session) Scatter(ctx context.Context, p ScatterParams) (*ScatterResult, error) {
	if err := s.requireTerrain(); err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	if p.MinScale > p.MaxScale {
		return nil, fmt.Errorf("scatter: min scale %g exceeds max scale %g", p.MinScale, p.MaxScale)
	}
	s.DeleteTrees()

	res := &ScatterResult{}
	protos := make(map[AssetKind]mesh.Handle, 2)
	for _, kind := range []AssetKind{AssetSmallTree, AssetTallTree} {
		h, warn, err := s.asset(kind)
		if err != nil {
			return nil, fmt.Errorf("scatter: %w", err)
		}
		if warn != nil {
			res.Warnings = append(res.Warnings, *warn)
		}
		protos[kind] = h
	}

	k, h := s.kernel, s.terrain
	floor := s.seaLevel() + s.cfg.Water.SeaMargin
	jitter := s.cfg.Scatter.Jitter
	n := k.VertexCount(h)
	var members []mesh.Handle
	var err error
	processed := 0
	for v := 0; v < n; v++ {
		if ctx.Err() != nil {
			err = cancelled(ctx)
			break
		}
		if s.classify(v) != heightfield.RoleInterior {
			continue
		}
		processed++
		normal := k.VertexNormal(h, v)
		pos := k.VertexPosition(h, v)
		if !(float64(s.rng.Intn(100)) < p.SpawnRate && normal.Y() > 1-p.MaxSlope && pos.Y() > floor) {
			continue
		}
		kind := AssetTallTree
		if pos.Y() < p.SpeciesHeight {
			kind = AssetSmallTree
		}
		at := mgl64.Vec3{
			pos.X() + s.uniform(-jitter, jitter),
			pos.Y(),
			pos.Z() + s.uniform(-jitter, jitter),
		}
		inst := s.place(protos[kind], kind, at, float64(s.rng.Intn(360)), s.uniform(p.MinScale, p.MaxScale)/100)
		res.Instances = append(res.Instances, inst)
		members = append(members, inst.Mesh)
		s.report(processed, n+1, "Generating trees")
	}

	if len(members) > 0 {
		s.trees = k.GroupObjects("Trees", members)
		res.Group = s.trees
	}
	if err != nil {
		return res, err
	}
	s.log.Info("trees scattered",
		"instances", len(res.Instances),
		"interior_vertices", processed,
		"sea_level", s.seaLevel(),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// place instantiates proto at pos, rotated yaw degrees about Y and scaled.
func (s *Session) place(proto mesh.Handle, kind AssetKind, pos mgl64.Vec3, yaw, scale float64) Instance {
	h := s.kernel.Instantiate(proto)
	s.kernel.Transform(h, mgl64.Translate3D(pos.X(), pos.Y(), pos.Z()).
		Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(yaw))).
		Mul4(mgl64.Scale3D(scale, scale, scale)))
	return Instance{Kind: kind, Position: pos, Scale: scale, Yaw: yaw, Mesh: h}
}

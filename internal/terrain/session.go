// Package terrain is the heightfield synthesis and mesh-editing engine.
//
// A Session carries all editing state for one terrain: the mesh handle in
// the host kernel, the height grid while it still mirrors the mesh, the
// solid and water flags, and the placed tree and building groups. Callers
// must serialize operator calls on a Session.
package terrain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/config"
	"github.com/talgya/landscaper/internal/heightfield"
	"github.com/talgya/landscaper/internal/mesh"
)

// Session is the state of one editing session.
type Session struct {
	kernel   mesh.Kernel
	cfg      config.Config
	progress mesh.Progress
	log      *slog.Logger
	seed     int64
	rng      *rand.Rand

	terrain   mesh.Handle
	grid      *heightfield.Grid // nil once the mesh no longer mirrors it
	solid     bool
	dirty     bool
	water     *Water
	trees     mesh.Handle
	buildings mesh.Handle

	buildingKind AssetKind
	assets       map[AssetKind]mesh.Handle
}

// Option configures a Session.
type Option func(*Session)

func WithConfig(cfg config.Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

func WithProgress(p mesh.Progress) Option {
	return func(s *Session) { s.progress = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithSeed fixes the random source. A zero seed picks one at random.
func WithSeed(seed int64) Option {
	return func(s *Session) { s.seed = seed }
}

// NewSession creates an empty session driving kernel k.
func NewSession(k mesh.Kernel, opts ...Option) *Session {
	s := &Session{
		kernel:       k,
		cfg:          config.Default(),
		progress:     mesh.NopProgress{},
		log:          slog.Default(),
		buildingKind: AssetCityBuilding,
		assets:       make(map[AssetKind]mesh.Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == 0 {
		s.seed = rand.Int63()
	}
	s.rng = rand.New(rand.NewSource(s.seed))
	return s
}

func (s *Session) Kernel() mesh.Kernel    { return s.kernel }
func (s *Session) Config() config.Config  { return s.cfg }
func (s *Session) Seed() int64            { return s.seed }
func (s *Session) Terrain() mesh.Handle   { return s.terrain }
func (s *Session) Trees() mesh.Handle     { return s.trees }
func (s *Session) Buildings() mesh.Handle { return s.buildings }

// Grid returns the height grid while it still mirrors the terrain mesh, nil
// after smoothing or solidification.
func (s *Session) Grid() *heightfield.Grid { return s.grid }

// Solid reports whether the terrain has been solidified.
func (s *Session) Solid() bool { return s.solid }

// Dirty reports whether an operator was cancelled part-way through a
// topology change, leaving the terrain indeterminate. Delete or regenerate it.
func (s *Session) Dirty() bool { return s.dirty }

// Water returns the current water volume, or nil.
func (s *Session) Water() *Water {
	if s.water == nil {
		return nil
	}
	w := *s.water
	return &w
}

// BuildingKind returns the asset PlaceBuilding uses.
func (s *Session) BuildingKind() AssetKind { return s.buildingKind }

// SetBuildingKind selects city buildings or houses for PlaceBuilding.
func (s *Session) SetBuildingKind(k AssetKind) error {
	if k != AssetCityBuilding && k != AssetHouse {
		return fmt.Errorf("%s is not a building", k)
	}
	s.buildingKind = k
	return nil
}

// GenerateParams configures NewTerrain.
type GenerateParams struct {
	Depth   int
	Corners [4]float64
	Smooth  int  // Subdivisions applied after realizing the grid
	Detail  bool // Lay simplex detail over the fractal
}

// NewTerrain replaces any existing terrain with a freshly generated one.
func (s *Session) NewTerrain(ctx context.Context, p GenerateParams) error {
	s.DeleteTerrain()

	scale, err := heightfield.ParseLevelScale(s.cfg.Terrain.LevelScale, s.cfg.Terrain.Roughness)
	if err != nil {
		return fmt.Errorf("new terrain: %w", err)
	}
	grid, err := heightfield.Generate(ctx, heightfield.Params{
		Depth:      p.Depth,
		Corners:    p.Corners,
		LevelScale: scale,
		Rand:       s.rng,
	})
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		return fmt.Errorf("new terrain: %w", err)
	}
	if p.Detail {
		heightfield.AddDetail(grid, s.cfg.Terrain.DetailParams(s.seed+100))
	}

	if err := s.realize(ctx, grid); err != nil {
		return err
	}
	if p.Smooth > 0 {
		if err := s.Smooth(p.Smooth); err != nil {
			return fmt.Errorf("new terrain: %w", err)
		}
	}
	s.log.Info("terrain generated",
		"depth", p.Depth,
		"grid", grid.String(),
		"smooth", p.Smooth,
		"vertices", s.kernel.VertexCount(s.terrain),
	)
	return nil
}

// realize builds a plane matching grid and lifts each vertex to its elevation.
func (s *Session) realize(ctx context.Context, grid *heightfield.Grid) error {
	size := s.cfg.Terrain.Size
	h := s.kernel.CreatePlane(size, size, grid.Width-1, grid.Height-1)
	s.terrain = h
	s.grid = grid
	total := grid.Len()
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		s.kernel.MoveVertex(h, i, mgl64.Vec3{0, grid.Data[i], 0}, true)
		s.report(i+1, total, "Realizing terrain")
	}
	return nil
}

// NewPlane replaces any existing terrain with a flat subdivided plane.
func (s *Session) NewPlane(subdivisions int) error {
	if subdivisions < 1 {
		return fmt.Errorf("new plane: subdivisions must be positive, got %d", subdivisions)
	}
	s.DeleteTerrain()
	size := s.cfg.Terrain.Size
	s.terrain = s.kernel.CreatePlane(size, size, subdivisions, subdivisions)
	s.grid = heightfield.NewGrid(subdivisions+1, subdivisions+1)
	return nil
}

// DeleteTerrain removes the terrain and everything placed on it, and resets
// the solid and water state.
func (s *Session) DeleteTerrain() {
	s.DeleteTrees()
	s.DeleteBuildings()
	s.DeleteWater()
	if s.terrain != mesh.NoHandle {
		s.kernel.Delete(s.terrain)
		s.terrain = mesh.NoHandle
	}
	s.grid = nil
	s.solid = false
	s.dirty = false
}

func (s *Session) DeleteTrees() {
	if s.trees != mesh.NoHandle {
		s.kernel.Delete(s.trees)
		s.trees = mesh.NoHandle
	}
}

func (s *Session) DeleteBuildings() {
	if s.buildings != mesh.NoHandle {
		s.kernel.Delete(s.buildings)
		s.buildings = mesh.NoHandle
	}
}

// ReleaseAssets deletes the imported asset prototypes. They are re-imported
// on next use.
func (s *Session) ReleaseAssets() {
	for kind, h := range s.assets {
		s.kernel.Delete(h)
		delete(s.assets, kind)
	}
}

// Stats summarizes the current scene.
type Stats struct {
	Vertices  int
	Edges     int
	Faces     int
	Solid     bool
	Dirty     bool
	Water     bool
	SeaLevel  float64
	Trees     int
	Buildings int
}

func (s *Session) Stats() Stats {
	st := Stats{
		Solid:    s.solid,
		Dirty:    s.dirty,
		SeaLevel: s.seaLevel(),
	}
	if s.terrain != mesh.NoHandle {
		st.Vertices = s.kernel.VertexCount(s.terrain)
		st.Edges = s.kernel.EdgeCount(s.terrain)
		st.Faces = s.kernel.FaceCount(s.terrain)
	}
	st.Water = s.water != nil
	if s.trees != mesh.NoHandle {
		st.Trees = len(s.kernel.Members(s.trees))
	}
	if s.buildings != mesh.NoHandle {
		st.Buildings = len(s.kernel.Members(s.buildings))
	}
	return st
}

func (s *Session) requireTerrain() error {
	if s.terrain == mesh.NoHandle || !s.kernel.Exists(s.terrain) {
		return ErrNoTerrain
	}
	return nil
}

// setElevation places vertex v at elevation y, keeping the grid mirror in step.
func (s *Session) setElevation(v int, p mgl64.Vec3, y float64) {
	s.kernel.MoveVertex(s.terrain, v, mgl64.Vec3{p.X(), y, p.Z()}, false)
	if s.grid != nil && v < s.grid.Len() {
		s.grid.Data[v] = y
	}
}

func (s *Session) report(done, total int, status string) {
	if total <= 0 {
		return
	}
	s.progress.Report(100*float64(done)/float64(total), status)
}

func (s *Session) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// randint returns an integer in [lo, hi].
func (s *Session) randint(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

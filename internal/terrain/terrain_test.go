package terrain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/landscaper/internal/config"
	"github.com/talgya/landscaper/internal/mesh"
)

func newTestSession(t *testing.T, mutate func(*config.Config)) (*Session, *mesh.Memory) {
	t.Helper()
	cfg := config.Default()
	cfg.Assets.Dir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	k := mesh.NewMemory()
	s := NewSession(k,
		WithConfig(cfg),
		WithSeed(42),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return s, k
}

func elevations(k mesh.Kernel, h mesh.Handle) []float64 {
	out := make([]float64, k.VertexCount(h))
	for v := range out {
		out[v] = k.VertexPosition(h, v).Y()
	}
	return out
}

func boundaryLoopLength(k mesh.Kernel, h mesh.Handle) int {
	n := 0
	for e := 0; e < k.EdgeCount(h); e++ {
		if k.EdgeConnectivity(h, e).Boundary() {
			n++
		}
	}
	return n
}

func TestClassifyAgreesWithGridRoles(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if err := s.NewPlane(4); err != nil {
		t.Fatalf("NewPlane: %v", err)
	}
	g := s.Grid()
	first, err := s.ClassifyAll(context.Background())
	if err != nil {
		t.Fatalf("ClassifyAll: %v", err)
	}
	for v, role := range first {
		c := g.Coord(v)
		if want := g.Role(c.X, c.Y); role != want {
			t.Fatalf("vertex %d at %v: %v, want %v", v, c, role, want)
		}
	}
	again, _ := s.ClassifyAll(context.Background())
	for v := range first {
		if first[v] != again[v] {
			t.Fatalf("vertex %d changed role on re-query", v)
		}
	}
	if _, err := s.Classify(25); err == nil {
		t.Fatal("out-of-range vertex: expected error")
	}
}

func TestGenerateBumpSolidify(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewTerrain(ctx, GenerateParams{Depth: 2}); err != nil {
		t.Fatalf("NewTerrain: %v", err)
	}
	if got := k.VertexCount(s.Terrain()); got != 25 {
		t.Fatalf("vertices = %d, want 25", got)
	}
	if s.Grid().Corners() != [4]float64{} {
		t.Fatalf("corners = %v, want zeros", s.Grid().Corners())
	}

	before := elevations(k, s.Terrain())
	if err := s.Bump(ctx, 0); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	after := elevations(k, s.Terrain())
	base := s.Config().Terrain.BaseElevation
	for v := range before {
		if before[v] == 0 || before[v] == base {
			continue
		}
		if math.Abs(after[v]) >= math.Abs(before[v]) {
			t.Fatalf("vertex %d: |%v| not below |%v|", v, after[v], before[v])
		}
		if s.Grid().Data[v] != after[v] {
			t.Fatalf("grid out of step at %d", v)
		}
	}

	loop := boundaryLoopLength(k, s.Terrain())
	vol, err := s.Solidify(ctx)
	if err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if loop != 16 || vol.WallVertices != loop {
		t.Fatalf("walls = %d, boundary loop = %d, want 16", vol.WallVertices, loop)
	}
	if vol.CapVertices != 9 {
		t.Fatalf("cap vertices = %d, want 9", vol.CapVertices)
	}
	got := k.VertexCount(s.Terrain())
	if got != 25+vol.WallVertices+vol.CapVertices || got != vol.VertexCount {
		t.Fatalf("vertex count %d, volume %+v", got, vol)
	}
	if boundaryLoopLength(k, s.Terrain()) != 0 {
		t.Fatal("solid terrain still has open boundary edges")
	}
	if !s.Solid() || s.Dirty() || s.Grid() != nil {
		t.Fatalf("solid=%v dirty=%v grid=%v", s.Solid(), s.Dirty(), s.Grid())
	}

	if _, err := s.Solidify(ctx); !errors.Is(err, ErrAlreadySolid) {
		t.Fatalf("second Solidify: err = %v, want ErrAlreadySolid", err)
	}
	if k.VertexCount(s.Terrain()) != got {
		t.Fatal("failed Solidify changed the vertex count")
	}
}

func TestBumpSkipsBaseAfterSolidify(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewTerrain(ctx, GenerateParams{Depth: 2, Corners: [4]float64{1, 2, 3, 4}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solidify(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Bump(ctx, 0.5); err != nil {
		t.Fatal(err)
	}
	base := s.Config().Terrain.BaseElevation
	atBase := 0
	for _, y := range elevations(k, s.Terrain()) {
		if y == base {
			atBase++
		}
	}
	if atBase != 16+9 {
		t.Fatalf("%d vertices at base, want the 25 wall and cap vertices", atBase)
	}
}

func TestFlattenFacesIsIdempotent(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewTerrain(ctx, GenerateParams{Depth: 3, Corners: [4]float64{0, 4, 8, 2}}); err != nil {
		t.Fatal(err)
	}
	sel := mesh.Selection{mesh.Face(s.Terrain(), 27)}
	if err := s.FlattenFaces(sel); err != nil {
		t.Fatalf("FlattenFaces: %v", err)
	}
	once := elevations(k, s.Terrain())

	face := k.FaceVertices(s.Terrain(), 27)
	for _, v := range face[1:] {
		if math.Abs(once[v]-once[face[0]]) > 1e-9 {
			t.Fatalf("face not level: %v vs %v", once[v], once[face[0]])
		}
	}

	if err := s.FlattenFaces(sel); err != nil {
		t.Fatal(err)
	}
	twice := elevations(k, s.Terrain())
	for v := range once {
		if math.Abs(once[v]-twice[v]) > 1e-9 {
			t.Fatalf("vertex %d moved on second flatten: %v -> %v", v, once[v], twice[v])
		}
	}
}

func TestSelectionErrorsDoNotMutate(t *testing.T) {
	s, k := newTestSession(t, nil)
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	other := k.CreatePlane(1, 1, 1, 1)
	h := s.Terrain()
	before := elevations(k, h)

	tests := []struct {
		name string
		op   func() error
		want string
	}{
		{"mountain with nothing", func() error { return s.Mountain(nil, 3, 3) }, "a single face"},
		{"mountain with two faces", func() error {
			return s.Mountain(mesh.Selection{mesh.Face(h, 0), mesh.Face(h, 1)}, 3, 3)
		}, "a single face"},
		{"trench on a vertex", func() error {
			return s.Trench(mesh.Selection{{Mesh: h, Kind: mesh.ElementVertex, Index: 3}}, 1, 1)
		}, "one or more faces"},
		{"flatten another object", func() error {
			return s.FlattenFaces(mesh.Selection{mesh.Face(other, 0)})
		}, "one or more faces"},
		{"face out of range", func() error {
			return s.Trench(mesh.Selection{mesh.Face(h, 0), mesh.Face(h, 99)}, 1, 1)
		}, "one or more faces"},
		{"building on two faces", func() error {
			_, err := s.PlaceBuilding(context.Background(), mesh.Selection{mesh.Face(h, 0), mesh.Face(h, 1)}, BuildingParams{MinSize: 50, MaxSize: 60})
			return err
		}, "a single face"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, ErrInvalidSelection) {
				t.Fatalf("err = %v, want ErrInvalidSelection", err)
			}
			var se *SelectionError
			if !errors.As(err, &se) || se.Want != tt.want {
				t.Fatalf("selection error = %#v, want %q", se, tt.want)
			}
		})
	}
	after := elevations(k, h)
	for v := range before {
		if before[v] != after[v] {
			t.Fatalf("vertex %d moved after failed operators", v)
		}
	}
	if s.Stats().Buildings != 0 {
		t.Fatal("failed PlaceBuilding left a building")
	}
}

func TestMountainAndTrench(t *testing.T) {
	s, k := newTestSession(t, nil)
	if err := s.NewPlane(8); err != nil {
		t.Fatal(err)
	}
	h := s.Terrain()
	if err := s.Mountain(mesh.Selection{mesh.Face(h, 36)}, 4, 3); err != nil {
		t.Fatalf("Mountain: %v", err)
	}
	for _, v := range k.FaceVertices(h, 36) {
		if y := k.VertexPosition(h, v).Y(); math.Abs(y-4) > 1e-9 {
			t.Fatalf("peak vertex %d at %v, want 4", v, y)
		}
	}
	if y := k.VertexPosition(h, 0).Y(); y != 0 {
		t.Fatalf("far corner raised to %v", y)
	}

	if err := s.NewPlane(8); err != nil {
		t.Fatal(err)
	}
	h = s.Terrain()
	sel := mesh.Selection{mesh.Face(h, 10), mesh.Face(h, 11)}
	if err := s.Trench(sel, 0, 2); err != nil {
		t.Fatalf("Trench: %v", err)
	}
	anchors := map[int]bool{}
	for _, f := range []int{10, 11} {
		for _, v := range k.FaceVertices(h, f) {
			anchors[v] = true
		}
	}
	for v := 0; v < k.VertexCount(h); v++ {
		want := 0.0
		if anchors[v] {
			want = -2
		}
		if y := k.VertexPosition(h, v).Y(); y != want {
			t.Fatalf("hard-edged trench: vertex %d at %v, want %v", v, y, want)
		}
	}
}

func TestFalloffWeight(t *testing.T) {
	tests := []struct {
		radius, d, want float64
	}{
		{2, 0, 1},
		{2, 1, 0.5},
		{2, 2, 0},
		{2, 5, 0},
		{0, 0, 1},
		{0, 0.1, 0},
		{-1, 0, 1},
	}
	for _, tt := range tests {
		if got := (Falloff{Radius: tt.radius}).Weight(tt.d); got != tt.want {
			t.Errorf("Weight(r=%v, d=%v) = %v, want %v", tt.radius, tt.d, got, tt.want)
		}
	}
}

func TestScatterSpawnRates(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewPlane(8); err != nil {
		t.Fatal(err)
	}

	res, err := s.Scatter(ctx, ScatterParams{SpawnRate: 0, SpeciesHeight: 5.5, MinScale: 50, MaxScale: 80, MaxSlope: 1})
	if err != nil {
		t.Fatalf("Scatter(0): %v", err)
	}
	if len(res.Instances) != 0 || res.Group != mesh.NoHandle {
		t.Fatalf("0%% spawn placed %d instances", len(res.Instances))
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want one per missing tree asset", res.Warnings)
	}

	res, err = s.Scatter(ctx, ScatterParams{SpawnRate: 100, SpeciesHeight: 5.5, MinScale: 50, MaxScale: 80, MaxSlope: 1})
	if err != nil {
		t.Fatalf("Scatter(100): %v", err)
	}
	if len(res.Instances) != 49 {
		t.Fatalf("100%% spawn placed %d instances, want 49 interior vertices", len(res.Instances))
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("placeholders should be reused, got warnings %v", res.Warnings)
	}
	jitter := s.Config().Scatter.Jitter
	seen := map[[2]int]bool{}
	for _, inst := range res.Instances {
		if inst.Kind != AssetSmallTree {
			t.Fatalf("tree at y=%v should be small", inst.Position.Y())
		}
		if inst.Scale < 0.5 || inst.Scale > 0.8 || inst.Yaw < 0 || inst.Yaw >= 360 {
			t.Fatalf("instance %+v out of range", inst)
		}
		// Interior vertices of a 20-wide 8x8 plane sit on a 2.5 grid.
		gx := math.Round(inst.Position.X() / 2.5)
		gz := math.Round(inst.Position.Z() / 2.5)
		if math.Abs(inst.Position.X()-gx*2.5) > jitter || math.Abs(inst.Position.Z()-gz*2.5) > jitter {
			t.Fatalf("instance %v jittered too far", inst.Position)
		}
		seen[[2]int{int(gx), int(gz)}] = true
	}
	if len(seen) != 49 {
		t.Fatalf("instances cover %d vertices, want 49", len(seen))
	}
	if got := s.Stats().Trees; got != 49 {
		t.Fatalf("tree group holds %d members", got)
	}
}

func TestScatterRespectsSeaLevel(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewPlane(8); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWater(ctx, 1); err != nil {
		t.Fatalf("CreateWater: %v", err)
	}
	res, err := s.Scatter(ctx, ScatterParams{SpawnRate: 100, SpeciesHeight: 5.5, MinScale: 50, MaxScale: 80, MaxSlope: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Instances) != 0 {
		t.Fatalf("%d trees placed under water", len(res.Instances))
	}
}

func TestScatterImportsAssets(t *testing.T) {
	s, _ := newTestSession(t, nil)
	dir := s.Config().Assets.Dir
	obj := "v 0 0 0\nv 1 0 0\nv 0 2 0\nf 1 2 3\n"
	if err := os.WriteFile(filepath.Join(dir, "tree.obj"), []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	res, err := s.Scatter(context.Background(), ScatterParams{SpawnRate: 100, SpeciesHeight: 5.5, MinScale: 100, MaxScale: 100, MaxSlope: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != AssetTallTree {
		t.Fatalf("warnings = %v, want only the tall tree", res.Warnings)
	}
	if !errors.Is(res.Warnings[0].Err, ErrResourceNotFound) {
		t.Fatalf("warning error = %v", res.Warnings[0].Err)
	}
	k := s.Kernel()
	inst := res.Instances[0]
	if got := k.VertexCount(inst.Mesh); got != 3 {
		t.Fatalf("instance has %d vertices, want the imported triangle", got)
	}
}

func TestBumpCancelledLeavesMeshUntouched(t *testing.T) {
	s, k := newTestSession(t, nil)
	if err := s.NewTerrain(context.Background(), GenerateParams{Depth: 2, Corners: [4]float64{1, 1, 1, 1}}); err != nil {
		t.Fatal(err)
	}
	before := elevations(k, s.Terrain())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Bump(ctx, 1)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	for v, y := range elevations(k, s.Terrain()) {
		if y != before[v] {
			t.Fatalf("vertex %d moved", v)
		}
	}
}

func TestSolidifyCancelledBeforeExtrusion(t *testing.T) {
	s, k := newTestSession(t, nil)
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Solidify(ctx); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if s.Solid() || k.VertexCount(s.Terrain()) != 25 {
		t.Fatal("cancelled scan should leave the plane as it was")
	}

	var reports []float64
	s.progress = mesh.ProgressFunc(func(p float64, status string) {
		reports = append(reports, p)
	})
	if _, err := s.Solidify(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(reports) == 0 {
		t.Fatal("no progress reported")
	}
	for _, p := range reports {
		if p < 0 || p > 100 {
			t.Fatalf("progress %v out of range", p)
		}
	}
}

func TestSmoothVertexLimit(t *testing.T) {
	s, k := newTestSession(t, func(c *config.Config) { c.Limits.SmoothVertexLimit = 10 })
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	if err := s.Smooth(1); !errors.Is(err, ErrVertexLimitExceeded) {
		t.Fatalf("err = %v, want ErrVertexLimitExceeded", err)
	}
	if k.VertexCount(s.Terrain()) != 25 {
		t.Fatal("refused smoothing still changed the mesh")
	}
}

func TestCarvePreconditions(t *testing.T) {
	s, k := newTestSession(t, func(c *config.Config) {
		c.Caves.OffsetX = -5
		c.Caves.DepthMin, c.Caves.DepthMax = -5, -5
	})
	ctx := context.Background()
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Carve(ctx, 1, 1.5, 3); !errors.Is(err, ErrNotSolid) {
		t.Fatalf("open terrain: err = %v, want ErrNotSolid", err)
	}
	if _, err := s.Solidify(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWater(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Carve(ctx, 1, 1.5, 3); !errors.Is(err, ErrWaterNotSeparated) {
		t.Fatalf("unseparated water: err = %v, want ErrWaterNotSeparated", err)
	}
	if err := s.SeparateWater(); err != nil {
		t.Fatalf("SeparateWater: %v", err)
	}
	if !s.Water().Separated {
		t.Fatal("water not marked separated")
	}

	objects := len(k.Objects())
	before := s.Terrain()
	cave, err := s.Carve(ctx, 1, 1.5, 3)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if cave.Spheres != 3 || cave.Faces == 0 {
		t.Fatalf("cave = %+v", cave)
	}
	if s.Terrain() == before || k.Exists(before) {
		t.Fatal("carving should replace the terrain object")
	}
	if got := len(k.Objects()); got != objects {
		t.Fatalf("carve leaked objects: %d -> %d", objects, got)
	}

	// The uncarved box only has vertices on its six sides.
	const eps = 1e-6
	half := s.Config().Terrain.Size / 2
	base := s.Config().Terrain.BaseElevation
	inside := 0
	for v := 0; v < k.VertexCount(s.Terrain()); v++ {
		p := k.VertexPosition(s.Terrain(), v)
		if p.Y() < -eps && p.Y() > base+eps && math.Abs(p.X()) < half-eps && math.Abs(p.Z()) < half-eps {
			inside++
		}
	}
	if inside == 0 {
		t.Fatal("carved terrain has no cavity walls inside the volume")
	}
}

func TestWaterVolume(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	w, err := s.CreateWater(ctx, 2)
	if err != nil {
		t.Fatalf("CreateWater: %v", err)
	}
	base := s.Config().Terrain.BaseElevation
	jitter := s.Config().Water.SurfaceJitter
	for v := 0; v < k.VertexCount(w.Handle); v++ {
		y := k.VertexPosition(w.Handle, v).Y()
		if y != base && math.Abs(y-2) > jitter {
			t.Fatalf("water vertex %d at %v", v, y)
		}
	}
	if _, err := s.CreateWater(ctx, base-1); err == nil {
		t.Fatal("sea level below base: expected error")
	}
	if !k.Exists(w.Handle) || s.Water() == nil {
		t.Fatal("failed CreateWater should keep the previous water")
	}
	s.DeleteWater()
	if k.Exists(w.Handle) || s.Water() != nil {
		t.Fatal("DeleteWater left the water behind")
	}
}

func TestPlaceBuilding(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	h := s.Terrain()
	res, err := s.PlaceBuilding(ctx, mesh.Selection{mesh.Face(h, 5)}, BuildingParams{MinSize: 100, MaxSize: 100, Rotation: 45})
	if err != nil {
		t.Fatalf("PlaceBuilding: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != AssetCityBuilding {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	want := mgl64.Vec3{-2.5, 0, -2.5}
	if !res.Instance.Position.ApproxEqual(want) {
		t.Fatalf("building at %v, want face centre %v", res.Instance.Position, want)
	}

	if err := s.SetBuildingKind(AssetHouse); err != nil {
		t.Fatal(err)
	}
	res2, err := s.PlaceBuilding(ctx, mesh.Selection{mesh.Face(h, 10)}, BuildingParams{MinSize: 50, MaxSize: 80})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Instance.Position.Y() != 0.5 {
		t.Fatalf("house at y=%v, want 0.5", res2.Instance.Position.Y())
	}
	if k.Exists(res.Group) {
		t.Fatal("old building group should be replaced")
	}
	if got := len(k.Members(res2.Group)); got != 2 || s.Stats().Buildings != 2 {
		t.Fatalf("building group holds %d members", got)
	}
	if err := s.SetBuildingKind(AssetTallTree); err == nil {
		t.Fatal("trees are not buildings")
	}
}

func TestDeleteTerrainResetsState(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Solidify(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWater(ctx, 1); err != nil {
		t.Fatal(err)
	}
	s.DeleteTerrain()
	if s.Solid() || s.Water() != nil || s.Terrain() != mesh.NoHandle {
		t.Fatalf("state survived delete: %+v", s.Stats())
	}
	if err := s.Bump(ctx, 1); !errors.Is(err, ErrNoTerrain) {
		t.Fatalf("Bump without terrain: err = %v", err)
	}
	if _, err := s.Scatter(ctx, ScatterParams{}); !errors.Is(err, ErrNoTerrain) {
		t.Fatalf("Scatter without terrain: err = %v", err)
	}
	if len(k.Objects()) != 0 {
		t.Fatalf("objects left: %v", k.Objects())
	}
}

func TestRandomLowMode(t *testing.T) {
	s, k := newTestSession(t, nil)
	opts := DefaultRandomOptions()
	opts.LowSubdivs = true
	rep, err := s.Random(context.Background(), opts)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if rep.Depth != 3 || rep.Smooth != 1 || rep.Smoothed {
		t.Fatalf("low mode tiers = %+v", rep)
	}
	for _, c := range rep.Corners {
		if c < 0 || c > 8 || c != math.Trunc(c) {
			t.Fatalf("corner %v outside randint(0,8)", c)
		}
	}
	if rep.Volume == nil || !s.Solid() {
		t.Fatal("terrain should be solid")
	}
	v := rep.Volume
	if v.VertexCount != v.TopVertices+v.WallVertices+v.CapVertices {
		t.Fatalf("volume %+v breaks the vertex-count invariant", v)
	}
	if len(rep.Caves) > 1 {
		t.Fatalf("low mode carved %d caves", len(rep.Caves))
	}
	if rep.Water && !s.Water().Separated && len(rep.Caves) > 0 {
		t.Fatal("caves carved next to unseparated water")
	}
	if rep.Vertices != k.VertexCount(s.Terrain()) {
		t.Fatalf("report vertices %d, mesh %d", rep.Vertices, k.VertexCount(s.Terrain()))
	}
	if rep.Trees > 0 && len(rep.Warnings) == 0 {
		t.Fatal("missing tree assets should be reported")
	}
}

func TestRandomIsDeterministic(t *testing.T) {
	opts := RandomOptions{Mountains: true, Sea: true, Trees: true, LowSubdivs: true}
	run := func() *RandomReport {
		s, _ := newTestSession(t, nil)
		rep, err := s.Random(context.Background(), opts)
		if err != nil {
			t.Fatalf("Random: %v", err)
		}
		return rep
	}
	a, b := run(), run()
	if a.Corners != b.Corners || a.Mountains != b.Mountains || a.SeaLevel != b.SeaLevel || a.Trees != b.Trees {
		t.Fatalf("same seed, different terrain:\n%+v\n%+v", a, b)
	}
}

func TestRandomCancelled(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Random(ctx, DefaultRandomOptions()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestNewTerrainRespectsSmoothLimit(t *testing.T) {
	ctx := context.Background()
	s, k := newTestSession(t, func(c *config.Config) { c.Limits.SmoothVertexLimit = 50 })
	err := s.NewTerrain(ctx, GenerateParams{Depth: 3, Smooth: 1})
	if !errors.Is(err, ErrVertexLimitExceeded) {
		t.Fatalf("err = %v, want ErrVertexLimitExceeded", err)
	}
	if got := k.VertexCount(s.Terrain()); got != 81 {
		t.Fatalf("refused smoothing left %d vertices, want the unsmoothed 81", got)
	}

	s, k = newTestSession(t, func(c *config.Config) { c.Limits.SmoothVertexLimit = 50 })
	if err := s.NewTerrain(ctx, GenerateParams{Depth: 2, Smooth: 1}); err != nil {
		t.Fatalf("NewTerrain under the limit: %v", err)
	}
	if got := k.VertexCount(s.Terrain()); got <= 25 {
		t.Fatalf("smoothing under the limit left %d vertices", got)
	}
}

func TestSolidifyIgnoresVerticesAtBase(t *testing.T) {
	s, k := newTestSession(t, nil)
	ctx := context.Background()
	if err := s.NewPlane(4); err != nil {
		t.Fatal(err)
	}
	base := s.Config().Terrain.BaseElevation
	k.MoveVertex(s.Terrain(), 12, mgl64.Vec3{0, base, 0}, false)

	if _, err := s.Carve(ctx, 1, 1.5, 3); !errors.Is(err, ErrNotSolid) {
		t.Fatalf("open terrain: err = %v, want ErrNotSolid", err)
	}
	if s.Solid() {
		t.Fatal("open terrain reported solid")
	}
	if _, err := s.Solidify(ctx); err != nil {
		t.Fatalf("Solidify: %v", err)
	}
	if !s.Solid() {
		t.Fatal("terrain not solid after Solidify")
	}
	if _, err := s.Solidify(ctx); !errors.Is(err, ErrAlreadySolid) {
		t.Fatalf("second Solidify: err = %v, want ErrAlreadySolid", err)
	}
}

func TestScatterSkipsSteepFlanks(t *testing.T) {
	s, k := newTestSession(t, nil)
	if err := s.NewPlane(8); err != nil {
		t.Fatal(err)
	}
	h := s.Terrain()
	if err := s.Mountain(mesh.Selection{mesh.Face(h, 36)}, 3, 12); err != nil {
		t.Fatal(err)
	}

	const maxSlope = 0.2
	res, err := s.Scatter(context.Background(), ScatterParams{SpawnRate: 100, SpeciesHeight: 5.5, MinScale: 50, MaxScale: 80, MaxSlope: maxSlope})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	// Vertex (ix, iz) of the 9x9 plane sits at (-10+2.5*ix, -10+2.5*iz).
	placed := map[int]bool{}
	for _, inst := range res.Instances {
		ix := int(math.Round((inst.Position.X() + 10) / 2.5))
		iz := int(math.Round((inst.Position.Z() + 10) / 2.5))
		v := iz*9 + ix
		placed[v] = true
		if ny := k.VertexNormal(h, v).Y(); ny <= 1-maxSlope {
			t.Fatalf("tree on vertex %d with normal y %v", v, ny)
		}
	}
	eligible := 0
	for iz := 1; iz < 8; iz++ {
		for ix := 1; ix < 8; ix++ {
			v := iz*9 + ix
			if k.VertexNormal(h, v).Y() > 1-maxSlope {
				eligible++
				if !placed[v] {
					t.Fatalf("gentle vertex %d has no tree", v)
				}
			}
		}
	}
	if eligible == 49 || len(res.Instances) != eligible {
		t.Fatalf("%d trees, %d gentle vertices of 49", len(res.Instances), eligible)
	}
	for _, v := range k.FaceVertices(h, 36) {
		if placed[v] {
			t.Fatalf("tree placed on peak vertex %d", v)
		}
	}
	if !placed[1*9+1] {
		t.Fatal("flat far corner has no tree")
	}
}

func TestScatterCancelledOnBoundaryVertices(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if err := s.NewPlane(1); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Scatter(ctx, ScatterParams{SpawnRate: 100, SpeciesHeight: 5.5, MinScale: 50, MaxScale: 80, MaxSlope: 1})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if len(res.Instances) != 0 || s.Trees() != mesh.NoHandle {
		t.Fatalf("cancelled scatter placed %d trees", len(res.Instances))
	}
}

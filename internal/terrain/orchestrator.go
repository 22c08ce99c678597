package terrain

import (
	"context"
	"errors"
	"math"

	"github.com/talgya/landscaper/internal/mesh"
)

// RandomOptions toggles the optional stages of Random.
type RandomOptions struct {
	Trees      bool `json:"trees"`
	Sea        bool `json:"sea"`
	Mountains  bool `json:"mountains"`
	LowSubdivs bool `json:"low"` // Small grid, a single cave, no extra smoothing
	Solidify   bool `json:"solidify"`
	Caves      bool `json:"caves"`
	Trench     bool `json:"trench"`
	Detail     bool `json:"detail"` // Lay simplex detail over the fractal
}

// DefaultRandomOptions enables every stage except the low-detail mode and
// the simplex detail layer.
func DefaultRandomOptions() RandomOptions {
	return RandomOptions{
		Trees:     true,
		Sea:       true,
		Mountains: true,
		Solidify:  true,
		Caves:     true,
		Trench:    true,
	}
}

// RandomReport records the choices Random made.
type RandomReport struct {
	Depth     int
	Corners   [4]float64
	Smooth    int  // Subdivisions applied at generation
	Smoothed  bool // Whether the extra smoothing pass ran
	Mountains int
	Bump      float64
	Water     bool
	SeaLevel  float64
	Trench    bool
	Trees     int
	Volume    *Volume
	Caves     []Cave
	Warnings  []Warning
	Vertices  int
	Faces     int
}

// Random composes a complete randomized terrain.
func (s *Session) Random(ctx context.Context, opts RandomOptions) (*RandomReport, error) {
	rep := &RandomReport{}

	if opts.LowSubdivs {
		rep.Depth, rep.Smooth = 3, 1
	} else {
		rep.Depth = s.randint(3, 4)
	}
	for i := range rep.Corners {
		rep.Corners[i] = float64(s.randint(0, 8))
	}
	if !opts.LowSubdivs {
		rep.Smooth = s.randint(0, 2)
	}
	if err := s.NewTerrain(ctx, GenerateParams{
		Depth:   rep.Depth,
		Corners: rep.Corners,
		Smooth:  rep.Smooth,
		Detail:  opts.Detail,
	}); err != nil {
		return rep, err
	}

	k := s.kernel
	lowest, highest := s.elevationRange()

	if !opts.LowSubdivs {
		err := s.Smooth(1)
		switch {
		case errors.Is(err, ErrVertexLimitExceeded):
			s.log.Warn("skipping extra smoothing", "err", err)
		case err != nil:
			return rep, err
		default:
			rep.Smoothed = true
		}
	}

	if opts.Mountains {
		tries := []struct{ odds, rmin, rmax, hmin, hmax float64 }{
			{0.3, 1, 6, 0.5, 5},
			{0.5, 2, 7, 0.5, 3},
			{0.5, 2, 7, 0.5, 3},
			{0.5, 2, 7, 0.5, 3},
		}
		for _, t := range tries {
			if ctx.Err() != nil {
				return rep, cancelled(ctx)
			}
			if s.rng.Float64() <= t.odds {
				continue
			}
			s.selectRandomFace()
			if err := s.Mountain(k.CurrentSelection(), s.uniform(t.rmin, t.rmax), s.uniform(t.hmin, t.hmax)); err != nil {
				return rep, err
			}
			rep.Mountains++
		}
	}

	switch n := k.VertexCount(s.terrain); {
	case n < 2000:
		rep.Bump = s.uniform(0.05, 0.25)
	case n < 4000:
		rep.Bump = s.uniform(0.05, 0.1)
	case n < 5000:
		rep.Bump = s.uniform(0.02, 0.05)
	default:
		s.log.Debug("grid too dense to bump", "vertices", n)
	}
	if rep.Bump > 0 {
		if err := s.Bump(ctx, rep.Bump); err != nil {
			return rep, err
		}
	}

	if opts.Sea {
		water, err := s.CreateWater(ctx, s.uniform(lowest+2.5, highest-1.0))
		switch {
		case err != nil && ctx.Err() != nil:
			return rep, err
		case err != nil:
			s.log.Warn("skipping water", "err", err)
		default:
			rep.Water = true
			rep.SeaLevel = water.SeaLevel
		}
	}

	if opts.Trench && rep.Water && s.rng.Float64() > 0.3 {
		s.selectRandomFace()
		if err := s.Trench(k.CurrentSelection(), s.uniform(1, 5), s.uniform(0, 2)); err != nil {
			return rep, err
		}
		rep.Trench = true
	}

	if opts.Trees {
		res, err := s.Scatter(ctx, s.treeTier())
		if err != nil {
			return rep, err
		}
		rep.Trees = len(res.Instances)
		rep.Warnings = append(rep.Warnings, res.Warnings...)
	}

	if opts.Solidify {
		vol, err := s.Solidify(ctx)
		if err != nil {
			return rep, err
		}
		rep.Volume = vol
	}

	if opts.Caves {
		if err := s.randomCaves(ctx, opts, rep); err != nil {
			return rep, err
		}
	}

	rep.Vertices = k.VertexCount(s.terrain)
	rep.Faces = k.FaceCount(s.terrain)
	s.log.Info("random terrain complete",
		"depth", rep.Depth,
		"vertices", rep.Vertices,
		"mountains", rep.Mountains,
		"water", rep.Water,
		"trees", rep.Trees,
		"caves", len(rep.Caves),
	)
	return rep, nil
}

func (s *Session) randomCaves(ctx context.Context, opts RandomOptions, rep *RandomReport) error {
	if !s.solid {
		s.log.Debug("skipping caves on an open terrain")
		return nil
	}
	if s.water != nil {
		if err := s.SeparateWater(); err != nil {
			s.log.Warn("skipping caves, water could not be separated", "err", err)
			return nil
		}
	}
	count := s.randint(1, 4)
	if opts.LowSubdivs {
		count = 1
	}
	cc := s.cfg.Caves
	for i := 0; i < count; i++ {
		cave, err := s.Carve(ctx, cc.RadiusMin, cc.RadiusMax, cc.Spheres)
		switch {
		case errors.Is(err, ErrCancelled):
			return err
		case errors.Is(err, ErrDegenerateGeometry):
			s.log.Warn("cave attempt failed", "attempt", i, "err", err)
		case err != nil:
			return err
		default:
			rep.Caves = append(rep.Caves, *cave)
		}
	}
	return nil
}

// treeTier picks scatter parameters inversely to vertex density.
func (s *Session) treeTier() ScatterParams {
	p := ScatterParams{SpeciesHeight: 5.5, MaxSlope: 0.3}
	switch n := s.kernel.VertexCount(s.terrain); {
	case n < 1000:
		p.SpawnRate, p.MinScale, p.MaxScale = s.uniform(5, 11), 50, 80
	case n > 10000:
		p.SpawnRate, p.MinScale, p.MaxScale = s.uniform(1, 4), 15, 25
	case n > 3000:
		p.SpawnRate, p.MinScale, p.MaxScale = s.uniform(2, 5), 15, 30
	default:
		p.SpawnRate, p.MinScale, p.MaxScale = s.uniform(2, 7), 30, 40
	}
	return p
}

func (s *Session) selectRandomFace() {
	f := s.rng.Intn(s.kernel.FaceCount(s.terrain))
	s.kernel.Select(mesh.Selection{mesh.Face(s.terrain, f)})
}

func (s *Session) elevationRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for v := 0; v < s.kernel.VertexCount(s.terrain); v++ {
		y := s.kernel.VertexPosition(s.terrain, v).Y()
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	return lo, hi
}

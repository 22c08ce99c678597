// Diamond-square fractal generation.
package heightfield

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// MaxDepth bounds the recursion depth; 2^12+1 squared is already ~16.8M cells.
const MaxDepth = 12

// ErrDepth is returned for a recursion depth outside [1, MaxDepth].
var ErrDepth = errors.New("diamond-square depth out of range")

// LevelScale gives the perturbation variance used at a level. Level runs
// from depth (coarsest) down to 1 (finest).
type LevelScale func(level, depth int) float64

// ConstantScale perturbs every level by the same amount.
func ConstantScale(int, int) float64 { return 1 }

// LinearScale shrinks perturbation linearly with level: level/depth.
func LinearScale(level, depth int) float64 {
	return float64(level) / float64(depth)
}

// GeometricScale multiplies perturbation by roughness for every level below
// the coarsest.
func GeometricScale(roughness float64) LevelScale {
	return func(level, depth int) float64 {
		return math.Pow(roughness, float64(depth-level))
	}
}

// ParseLevelScale resolves a configured law name: constant, linear or geometric.
func ParseLevelScale(name string, roughness float64) (LevelScale, error) {
	switch strings.ToLower(name) {
	case "", "constant":
		return ConstantScale, nil
	case "linear":
		return LinearScale, nil
	case "geometric":
		if roughness <= 0 {
			return nil, fmt.Errorf("geometric level scale needs a positive roughness, got %g", roughness)
		}
		return GeometricScale(roughness), nil
	default:
		return nil, fmt.Errorf("unknown level scale %q", name)
	}
}

// Params holds diamond-square parameters.
type Params struct {
	Depth      int        // Recursion depth n; the grid is (2^n+1)²
	Corners    [4]float64 // (0,0), (w-1,0), (w-1,h-1), (0,h-1)
	LevelScale LevelScale // nil = ConstantScale
	Seed       int64      // Used when Rand is nil (0 = random)
	Rand       *rand.Rand
}

// DefaultParams returns a small, flat-cornered configuration.
func DefaultParams() Params {
	return Params{
		Depth:      4,
		LevelScale: ConstantScale,
	}
}

// Generate runs diamond-square. The context is polled once per row of
// blocks; on cancellation the partially filled grid is returned with the
// context error.
func Generate(ctx context.Context, p Params) (*Grid, error) {
	if p.Depth < 1 || p.Depth > MaxDepth {
		return nil, fmt.Errorf("depth %d: %w", p.Depth, ErrDepth)
	}
	scale := p.LevelScale
	if scale == nil {
		scale = ConstantScale
	}
	rng := p.Rand
	if rng == nil {
		seed := p.Seed
		if seed == 0 {
			seed = rand.Int63()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	n := p.Depth
	g := New(n)
	w, h := g.Width, g.Height
	g.Set(0, 0, p.Corners[0])
	g.Set(w-1, 0, p.Corners[1])
	g.Set(w-1, h-1, p.Corners[2])
	g.Set(0, h-1, p.Corners[3])

	for level := n; level >= 1; level-- {
		block := 1 << level
		half := block / 2
		amp := math.Sqrt(scale(level, n))

		// Square step: block centres.
		num := 1 << (n - level)
		for j := 0; j < num; j++ {
			if err := ctx.Err(); err != nil {
				return g, err
			}
			x := j * block
			for k := 0; k < num; k++ {
				y := k * block
				avg := 0.25 * (g.At(x, y) + g.At(x+block, y) + g.At(x, y+block) + g.At(x+block, y+block))
				g.Set(x+half, y+half, avg+amp*rng.Float64())
			}
		}

		// Diamond step: edge midpoints, averaging the 2-4 neighbours at
		// distance half.
		num = 1<<(n-level+1) + 1
		for j := 0; j < num; j++ {
			if err := ctx.Err(); err != nil {
				return g, err
			}
			x := j * half
			for k := 0; k < num; k++ {
				if (j+k)%2 == 0 {
					continue
				}
				y := k * half
				sum, count := 0.0, 0
				if x > 0 {
					sum += g.At(x-half, y)
					count++
				}
				if y > 0 {
					sum += g.At(x, y-half)
					count++
				}
				if x < w-1 {
					sum += g.At(x+half, y)
					count++
				}
				if y < h-1 {
					sum += g.At(x, y+half)
					count++
				}
				g.Set(x, y, sum/float64(count)+amp*rng.Float64())
			}
		}
	}
	return g, nil
}

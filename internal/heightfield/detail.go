package heightfield

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// DetailParams configures the simplex detail layer laid over a fractal grid.
type DetailParams struct {
	Seed        int64
	Amplitude   float64 // Peak displacement in elevation units
	Frequency   float64 // Base frequency in cycles per cell
	Octaves     int
	Persistence float64 // Amplitude falloff per octave
}

// DefaultDetail returns a gentle detail layer.
func DefaultDetail() DetailParams {
	return DetailParams{
		Amplitude:   0.4,
		Frequency:   0.15,
		Octaves:     3,
		Persistence: 0.5,
	}
}

// AddDetail adds octave simplex noise to every cell except the four
// corners, which stay as seeded.
func AddDetail(g *Grid, p DetailParams) {
	if p.Amplitude == 0 || p.Octaves <= 0 {
		return
	}
	noise := opensimplex.New(p.Seed)
	w, h := g.Width, g.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x == 0 || x == w-1) && (y == 0 || y == h-1) {
				continue
			}
			g.Add(x, y, p.Amplitude*octaveNoise(noise, float64(x), float64(y), p.Octaves, p.Frequency, p.Persistence))
		}
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Package config loads the landscaper YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/talgya/landscaper/internal/heightfield"
)

type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	Editor  EditorConfig  `yaml:"editor"`
	Water   WaterConfig   `yaml:"water"`
	Caves   CaveConfig    `yaml:"caves"`
	Scatter ScatterConfig `yaml:"scatter"`
	Assets  AssetConfig   `yaml:"assets"`
	Limits  LimitConfig   `yaml:"limits"`
	Journal JournalConfig `yaml:"journal"`
}

type TerrainConfig struct {
	Size          float64      `yaml:"size"`
	BaseElevation float64      `yaml:"base_elevation"`
	MergeEpsilon  float64      `yaml:"merge_epsilon"`
	LevelScale    string       `yaml:"level_scale"`
	Roughness     float64      `yaml:"roughness"`
	Detail        DetailConfig `yaml:"detail"`
}

type DetailConfig struct {
	Amplitude   float64 `yaml:"amplitude"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
}

type EditorConfig struct {
	FlattenFactor      float64 `yaml:"flatten_factor"`
	FlattenFacesRadius float64 `yaml:"flatten_faces_radius"`
	MountainCoreHeight float64 `yaml:"mountain_core_height"`
	MountainCoreRatio  float64 `yaml:"mountain_core_ratio"`
}

type WaterConfig struct {
	Footprint       float64 `yaml:"footprint"`
	Subdivisions    int     `yaml:"subdivisions"`
	SurfaceJitter   float64 `yaml:"surface_jitter"`
	SeaMargin       float64 `yaml:"sea_margin"`
	NoWaterSeaLevel float64 `yaml:"no_water_sea_level"`
}

type CaveConfig struct {
	RadiusMin       float64 `yaml:"radius_min"`
	RadiusMax       float64 `yaml:"radius_max"`
	Spheres         int     `yaml:"spheres"`
	OffsetX         float64 `yaml:"offset_x"`
	DepthMin        float64 `yaml:"depth_min"`
	DepthMax        float64 `yaml:"depth_max"`
	ReducePercent   float64 `yaml:"reduce_percent"`
	SmoothDivisions int     `yaml:"smooth_divisions"`
}

type ScatterConfig struct {
	Jitter float64 `yaml:"jitter"`
}

type AssetConfig struct {
	Dir           string  `yaml:"dir"`
	SmallTree     string  `yaml:"small_tree"`
	TallTree      string  `yaml:"tall_tree"`
	City          string  `yaml:"city"`
	House         string  `yaml:"house"`
	TreeScale     float64 `yaml:"tree_scale"`
	BuildingScale float64 `yaml:"building_scale"`
}

type LimitConfig struct {
	SmoothVertexLimit int `yaml:"smooth_vertex_limit"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Terrain: TerrainConfig{
			Size:          20,
			BaseElevation: -10,
			MergeEpsilon:  0.001,
			LevelScale:    "constant",
			Roughness:     0.5,
			Detail: DetailConfig{
				Amplitude:   0.4,
				Frequency:   0.15,
				Octaves:     3,
				Persistence: 0.5,
			},
		},
		Editor: EditorConfig{
			FlattenFactor:      0.8,
			FlattenFacesRadius: 2,
			MountainCoreHeight: 1,
			MountainCoreRatio:  0.5,
		},
		Water: WaterConfig{
			Footprint:       19.9,
			Subdivisions:    9,
			SurfaceJitter:   0.2,
			SeaMargin:       0.3,
			NoWaterSeaLevel: -99,
		},
		Caves: CaveConfig{
			RadiusMin:       2.5,
			RadiusMax:       3.5,
			Spheres:         20,
			OffsetX:         -20,
			DepthMin:        -12,
			DepthMax:        -5,
			ReducePercent:   50,
			SmoothDivisions: 2,
		},
		Scatter: ScatterConfig{
			Jitter: 0.3,
		},
		Assets: AssetConfig{
			Dir:           "assets",
			SmallTree:     "tree.obj",
			TallTree:      "tree2.obj",
			City:          "city.obj",
			House:         "house.obj",
			TreeScale:     0.3,
			BuildingScale: 1,
		},
		Limits: LimitConfig{
			SmoothVertexLimit: 100000,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	t := c.Terrain
	if t.Size <= 0 {
		return fmt.Errorf("terrain.size must be positive")
	}
	if t.BaseElevation >= 0 {
		return fmt.Errorf("terrain.base_elevation must be below zero")
	}
	if t.MergeEpsilon <= 0 {
		return fmt.Errorf("terrain.merge_epsilon must be positive")
	}
	if _, err := heightfield.ParseLevelScale(t.LevelScale, t.Roughness); err != nil {
		return fmt.Errorf("terrain.level_scale invalid: %w", err)
	}
	if t.Detail.Octaves < 0 {
		return fmt.Errorf("terrain.detail.octaves cannot be negative")
	}
	if f := c.Editor.FlattenFactor; f < 0 || f >= 1 {
		return fmt.Errorf("editor.flatten_factor must be in [0,1)")
	}
	if c.Editor.FlattenFacesRadius < 0 {
		return fmt.Errorf("editor.flatten_faces_radius cannot be negative")
	}
	if r := c.Editor.MountainCoreRatio; r <= 0 || r > 1 {
		return fmt.Errorf("editor.mountain_core_ratio must be in (0,1]")
	}
	w := c.Water
	if w.Footprint <= 0 || w.Subdivisions <= 0 {
		return fmt.Errorf("water footprint and subdivisions must be positive")
	}
	if w.SurfaceJitter < 0 || w.SeaMargin < 0 {
		return fmt.Errorf("water.surface_jitter and water.sea_margin cannot be negative")
	}
	if w.NoWaterSeaLevel >= t.BaseElevation {
		return fmt.Errorf("water.no_water_sea_level must lie below terrain.base_elevation")
	}
	cv := c.Caves
	if cv.RadiusMin <= 0 || cv.RadiusMin > cv.RadiusMax {
		return fmt.Errorf("caves radius range [%g,%g] invalid", cv.RadiusMin, cv.RadiusMax)
	}
	if cv.Spheres < 1 {
		return fmt.Errorf("caves.spheres must be at least 1")
	}
	if cv.DepthMin > cv.DepthMax {
		return fmt.Errorf("caves.depth_min cannot exceed caves.depth_max")
	}
	if cv.ReducePercent < 0 || cv.ReducePercent >= 100 {
		return fmt.Errorf("caves.reduce_percent must be in [0,100)")
	}
	if cv.SmoothDivisions < 0 {
		return fmt.Errorf("caves.smooth_divisions cannot be negative")
	}
	if c.Scatter.Jitter < 0 {
		return fmt.Errorf("scatter.jitter cannot be negative")
	}
	if c.Assets.TreeScale <= 0 || c.Assets.BuildingScale <= 0 {
		return fmt.Errorf("asset scales must be positive")
	}
	if c.Limits.SmoothVertexLimit <= 0 {
		return fmt.Errorf("limits.smooth_vertex_limit must be positive")
	}
	return nil
}

// AssetPath joins an asset file name onto the configured asset directory.
func (a AssetConfig) AssetPath(name string) string {
	if a.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Dir, name)
}

// DetailParams converts the detail section into generator parameters.
func (t TerrainConfig) DetailParams(seed int64) heightfield.DetailParams {
	return heightfield.DetailParams{
		Seed:        seed,
		Amplitude:   t.Detail.Amplitude,
		Frequency:   t.Detail.Frequency,
		Octaves:     t.Detail.Octaves,
		Persistence: t.Detail.Persistence,
	}
}

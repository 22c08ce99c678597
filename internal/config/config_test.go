package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults returned error: %v", err)
	}
	if cfg.Terrain.BaseElevation != -10 || cfg.Terrain.Size != 20 {
		t.Fatalf("terrain defaults = %+v", cfg.Terrain)
	}
	if cfg.Water.NoWaterSeaLevel != -99 || cfg.Water.SeaMargin != 0.3 {
		t.Fatalf("water defaults = %+v", cfg.Water)
	}
}

func TestValidateRejectsInvalidConfigurations(t *testing.T) {
	tests := map[string]func(*Config){
		"zero size":          func(c *Config) { c.Terrain.Size = 0 },
		"zero epsilon":       func(c *Config) { c.Terrain.MergeEpsilon = 0 },
		"base at zero":       func(c *Config) { c.Terrain.BaseElevation = 0 },
		"unknown law":        func(c *Config) { c.Terrain.LevelScale = "spline" },
		"flatten factor one": func(c *Config) { c.Editor.FlattenFactor = 1 },
		"radius range":       func(c *Config) { c.Caves.RadiusMin = 4 },
		"no spheres":         func(c *Config) { c.Caves.Spheres = 0 },
		"reduce everything":  func(c *Config) { c.Caves.ReducePercent = 100 },
		"sea above base":     func(c *Config) { c.Water.NoWaterSeaLevel = 0 },
		"zero vertex limit":  func(c *Config) { c.Limits.SmoothVertexLimit = 0 },
		"negative jitter":    func(c *Config) { c.Scatter.Jitter = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadOverlaysYAMLOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "landscaper.yaml")
	data := []byte(`
terrain:
  base_elevation: -12
  level_scale: geometric
  roughness: 0.6
scatter:
  jitter: 0.1
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Terrain.BaseElevation != -12 || cfg.Terrain.LevelScale != "geometric" {
		t.Fatalf("terrain = %+v", cfg.Terrain)
	}
	if cfg.Scatter.Jitter != 0.1 {
		t.Fatalf("jitter = %v, want 0.1", cfg.Scatter.Jitter)
	}
	if cfg.Terrain.Size != 20 || cfg.Limits.SmoothVertexLimit != 100000 {
		t.Fatalf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Editor.FlattenFactor != 0.8 {
		t.Fatalf("flatten factor = %v", cfg.Editor.FlattenFactor)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file: expected error")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("terrain: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("malformed yaml: expected error")
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != Default() {
		t.Fatalf("written defaults differ: %+v", cfg)
	}
}

func TestAssetPath(t *testing.T) {
	a := AssetConfig{Dir: "assets"}
	if got := a.AssetPath("tree.obj"); got != filepath.Join("assets", "tree.obj") {
		t.Fatalf("AssetPath = %q", got)
	}
	if got := a.AssetPath("/abs/tree.obj"); got != "/abs/tree.obj" {
		t.Fatalf("absolute path rewritten to %q", got)
	}
}

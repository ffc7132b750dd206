// core/scene_loader_test.go
package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/model"
)

func TestLoadSceneConfig_OverridesDefaults(t *testing.T) {
	jsonData := `
{
  "seed": 9,
  "ray_count": 40,
  "layers": { "count": 4, "spacing": 25, "top_index": 1.0, "bottom_index": 1.1 },
  "sun": { "x": 300, "y": 200 },
  "obstacles": { "cloud_count": 0 },
  "view": { "x": 50, "zoom": 2 }
}`
	cfg, err := LoadSceneConfig(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadSceneConfig error: %v", err)
	}

	if cfg.Seed != 9 || cfg.RayCount != 40 {
		t.Fatalf("seed/ray_count = %d/%d", cfg.Seed, cfg.RayCount)
	}
	if cfg.Layers != (model.LayerConfig{Count: 4, Spacing: 25, TopIndex: 1.0, BottomIndex: 1.1}) {
		t.Fatalf("layers = %+v", cfg.Layers)
	}
	if cfg.Sun != model.Pt(300, 200) {
		t.Fatalf("sun = %v", cfg.Sun)
	}
	if cfg.Observer != model.DefaultObserverPosition() {
		t.Fatalf("observer should keep its default, got %v", cfg.Observer)
	}
	if cfg.Obstacles.CloudCount != 0 || cfg.Obstacles.TerrainCount != DefaultObstacleConfig().TerrainCount {
		t.Fatalf("obstacles = %+v", cfg.Obstacles)
	}
	if cfg.ViewX != 50 || cfg.Zoom != 2 {
		t.Fatalf("view = %v @ %v", cfg.ViewX, cfg.Zoom)
	}
}

func TestLoadSceneConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"sunn": {"x": 1, "y": 2}}`,
		"bad json":       `{"seed": `,
		"negative rays":  `{"ray_count": -1}`,
		"bad layers":     `{"layers": {"count": 0, "spacing": 10, "top_index": 1, "bottom_index": 1}}`,
		"negative cloud": `{"obstacles": {"cloud_count": -3}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSceneConfig(strings.NewReader(data)); err == nil {
				t.Fatalf("expected an error for %s", data)
			}
		})
	}

	_, err := LoadSceneConfig(strings.NewReader(`{"layers": {"count": 2, "spacing": -1, "top_index": 1, "bottom_index": 1}}`))
	if !errors.Is(err, ErrInvalidLayerConfig) {
		t.Fatalf("error = %v, want ErrInvalidLayerConfig", err)
	}
}

func TestNewEngineFromScene(t *testing.T) {
	cfg := DefaultSceneConfig()
	cfg.RayCount = 20
	cfg.Sun = model.Pt(2000, 100)
	cfg.Zoom = 3

	e, err := NewEngineFromScene(cfg)
	if err != nil {
		t.Fatalf("NewEngineFromScene: %v", err)
	}
	defer e.Close()

	if e.Sun() != model.Pt(model.CanvasWidth, 100) {
		t.Fatalf("sun = %v, want clamped x", e.Sun())
	}
	if _, zoom := e.View(); zoom != 3 {
		t.Fatalf("zoom = %v", zoom)
	}
	if f := e.RenderFrame(); len(f.Rays) != 20 {
		t.Fatalf("frame traced %d rays, want 20", len(f.Rays))
	}
}

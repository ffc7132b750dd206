// core/scene_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/signalsfoundry/refraction-simulator/model"
)

// SceneConfig is the JSON scene description accepted by the binaries.
// Every field is optional; zero values fall back to the defaults.
type SceneConfig struct {
	Seed      int64
	RayCount  int
	Layers    model.LayerConfig
	Sun       model.Point
	Observer  model.Point
	Obstacles ObstacleConfig
	ViewX     float64
	Zoom      float64
}

// internal JSON shapes, unexported so the file format can evolve.
type sceneJSON struct {
	Seed      *int64             `json:"seed"`
	RayCount  *int               `json:"ray_count"`
	Layers    *model.LayerConfig `json:"layers"`
	Sun       *pointJSON         `json:"sun"`
	Observer  *pointJSON         `json:"observer"`
	Obstacles *obstaclesJSON     `json:"obstacles"`
	View      *viewJSON          `json:"view"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type obstaclesJSON struct {
	TerrainCount *int `json:"terrain_count"`
	CloudCount   *int `json:"cloud_count"`
}

type viewJSON struct {
	X    float64 `json:"x"`
	Zoom float64 `json:"zoom"`
}

// DefaultSceneConfig is the scene used when no file is given.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Seed:      1,
		RayCount:  DefaultRayCount,
		Layers:    model.DefaultLayerConfig(),
		Sun:       model.DefaultSunPosition(),
		Observer:  model.DefaultObserverPosition(),
		Obstacles: DefaultObstacleConfig(),
		Zoom:      1,
	}
}

// LoadSceneConfig decodes a scene from r on top of DefaultSceneConfig.
// Unknown fields are rejected so typos do not silently fall back to defaults.
func LoadSceneConfig(r io.Reader) (SceneConfig, error) {
	cfg := DefaultSceneConfig()
	if r == nil {
		return cfg, fmt.Errorf("scene reader is nil")
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var raw sceneJSON
	if err := dec.Decode(&raw); err != nil {
		return cfg, fmt.Errorf("decode scene json: %w", err)
	}

	if raw.Seed != nil {
		cfg.Seed = *raw.Seed
	}
	if raw.RayCount != nil {
		if *raw.RayCount < 0 {
			return cfg, fmt.Errorf("ray_count must be non-negative, got %d", *raw.RayCount)
		}
		cfg.RayCount = *raw.RayCount
	}
	if raw.Layers != nil {
		if err := ValidateLayerConfig(*raw.Layers); err != nil {
			return cfg, fmt.Errorf("layers: %w", err)
		}
		cfg.Layers = *raw.Layers
	}
	if raw.Sun != nil {
		cfg.Sun = model.Pt(raw.Sun.X, raw.Sun.Y)
		if err := ValidatePosition(cfg.Sun); err != nil {
			return cfg, fmt.Errorf("sun: %w", err)
		}
	}
	if raw.Observer != nil {
		cfg.Observer = model.Pt(raw.Observer.X, raw.Observer.Y)
		if err := ValidatePosition(cfg.Observer); err != nil {
			return cfg, fmt.Errorf("observer: %w", err)
		}
	}
	if raw.Obstacles != nil {
		if raw.Obstacles.TerrainCount != nil {
			cfg.Obstacles.TerrainCount = *raw.Obstacles.TerrainCount
		}
		if raw.Obstacles.CloudCount != nil {
			cfg.Obstacles.CloudCount = *raw.Obstacles.CloudCount
		}
		if cfg.Obstacles.TerrainCount < 0 || cfg.Obstacles.CloudCount < 0 {
			return cfg, fmt.Errorf("obstacle counts must be non-negative")
		}
	}
	if raw.View != nil {
		cfg.ViewX = raw.View.X
		if raw.View.Zoom != 0 {
			cfg.Zoom = raw.View.Zoom
		}
		if !finite(cfg.ViewX, cfg.Zoom) {
			return cfg, ErrInvalidView
		}
	}
	return cfg, nil
}

// NewEngineFromScene builds an engine for cfg. Extra options are applied
// after the scene's own.
func NewEngineFromScene(cfg SceneConfig, opts ...EngineOption) (*SimulationEngine, error) {
	base := []EngineOption{
		WithRand(rand.New(rand.NewSource(cfg.Seed))),
		WithLayerConfig(cfg.Layers),
		WithObstacleConfig(cfg.Obstacles),
		WithRayCount(cfg.RayCount),
	}
	e, err := NewSimulationEngine(nil, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := e.SetSource(cfg.Sun); err != nil {
		return nil, fmt.Errorf("sun: %w", err)
	}
	if err := e.SetObserver(cfg.Observer); err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	if err := e.SetView(cfg.ViewX, cfg.Zoom); err != nil {
		return nil, err
	}
	return e, nil
}

//go:build perf || perf_large

package perf

import (
	"context"
	"math/rand"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/control"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	sim "github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/protobuf/types/known/emptypb"
)

type perfConfig struct {
	Rays     int
	Layers   int
	Terrain  int
	Clouds   int
	Zoom     float64
	SunMoves int
}

func newEngine(b *testing.B, cfg perfConfig) *core.SimulationEngine {
	b.Helper()
	layers := model.DefaultLayerConfig()
	layers.Count = cfg.Layers
	engine, err := core.NewSimulationEngine(nil,
		core.WithRand(rand.New(rand.NewSource(1))),
		core.WithRayCount(cfg.Rays),
		core.WithLayerConfig(layers),
		core.WithObstacleConfig(core.ObstacleConfig{TerrainCount: cfg.Terrain, CloudCount: cfg.Clouds}),
	)
	if err != nil {
		b.Fatalf("NewSimulationEngine: %v", err)
	}
	if cfg.Zoom > 0 {
		if err := engine.SetView(0, cfg.Zoom); err != nil {
			b.Fatalf("SetView: %v", err)
		}
	}
	return engine
}

func benchmarkRenderFrame(b *testing.B, cfg perfConfig) {
	engine := newEngine(b, cfg)
	defer engine.Close()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		engine.RenderFrame()
	}
}

func benchmarkSunSweep(b *testing.B, cfg perfConfig) {
	engine := newEngine(b, cfg)
	defer engine.Close()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for j := 0; j < cfg.SunMoves; j++ {
			x := float64(j) * model.CanvasWidth / float64(cfg.SunMoves)
			if err := engine.SetSource(model.Pt(x, 450)); err != nil {
				b.Fatalf("SetSource: %v", err)
			}
			engine.RenderFrame()
		}
	}
}

func benchmarkControlRenderFrame(b *testing.B, cfg perfConfig) {
	engine := newEngine(b, cfg)
	defer engine.Close()
	state := sim.NewSimulationState(engine, logging.Noop())
	svc := control.NewService(state, logging.Noop())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	// Most requests are dropped by the 30 fps limiter; this measures the
	// control-path overhead around it.
	for i := 0; i < b.N; i++ {
		if _, err := svc.RenderFrame(ctx, &emptypb.Empty{}); err != nil {
			b.Fatalf("RenderFrame: %v", err)
		}
	}
}

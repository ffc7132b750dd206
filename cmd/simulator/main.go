package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/internal/render"
	sim "github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"github.com/signalsfoundry/refraction-simulator/model"
	"github.com/signalsfoundry/refraction-simulator/timectrl"
)

// Config holds the headless simulator's flags.
type Config struct {
	ScenePath   string
	Duration    time.Duration
	Accelerated bool
	// Sweep moves the sun this many pixels to the right on every frame.
	Sweep    float64
	Out      string
	RayCount int
	Seed     int64
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ScenePath, "scene", "", "path to a JSON scene file (defaults to the built-in scene)")
	flag.DurationVar(&cfg.Duration, "duration", 2*time.Second, "simulated run length")
	flag.BoolVar(&cfg.Accelerated, "accelerated", true, "run frames back to back instead of at 30 fps wall clock")
	flag.Float64Var(&cfg.Sweep, "sweep", 0, "pixels to move the sun right on each frame")
	flag.StringVar(&cfg.Out, "out", "", "write a PNG of the last frame to this path")
	flag.IntVar(&cfg.RayCount, "rays", 0, "rays per frame (overrides the scene)")
	flag.Int64Var(&cfg.Seed, "seed", 0, "obstacle RNG seed (overrides the scene)")
	flag.Parse()

	log := logging.NewFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func loadScene(cfg Config) (core.SceneConfig, error) {
	scene := core.DefaultSceneConfig()
	if cfg.ScenePath != "" {
		f, err := os.Open(cfg.ScenePath)
		if err != nil {
			return scene, fmt.Errorf("open scene %q: %w", cfg.ScenePath, err)
		}
		defer f.Close()
		if scene, err = core.LoadSceneConfig(f); err != nil {
			return scene, fmt.Errorf("load scene %q: %w", cfg.ScenePath, err)
		}
	}
	if cfg.RayCount > 0 {
		scene.RayCount = cfg.RayCount
	}
	if cfg.Seed != 0 {
		scene.Seed = cfg.Seed
	}
	return scene, nil
}

// run drives the engine for cfg.Duration and returns the last traced frame.
func run(ctx context.Context, cfg Config, log logging.Logger) (*core.Frame, error) {
	scene, err := loadScene(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := core.NewEngineFromScene(scene, core.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), timectrl.DefaultFrameInterval, mode)
	state := sim.NewSimulationState(engine, log, sim.WithClock(tc))

	var last *core.Frame
	state.AttachTimeController(ctx, tc, func(f *core.Frame) {
		last = f
		logFrame(ctx, log, f)
		if cfg.Sweep != 0 {
			sun := f.Scene.Sun
			if _, err := state.SetSource(ctx, model.Pt(sun.X+cfg.Sweep, sun.Y)); err != nil {
				log.Warn(ctx, "sweep failed", logging.Err(err))
			}
		}
	})

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", cfg.Duration),
		logging.String("mode", mode.String()),
		logging.Int("rays", engine.RayCount()),
		logging.Int("obstacles", engine.Obstacles().Len()),
	)
	<-tc.Start(ctx, cfg.Duration)

	if last == nil {
		return nil, sim.ErrNoFrame
	}
	log.Info(ctx, "simulation complete",
		logging.Uint64("frames", engine.FrameCount()),
		logging.Uint64("hit_resets", engine.ResetCount()),
	)

	if cfg.Out != "" {
		if err := render.New(render.DefaultOptions()).SavePNG(cfg.Out, last); err != nil {
			return last, err
		}
		log.Info(ctx, "wrote frame", logging.String("path", cfg.Out), logging.Frame(last.Index))
	}
	return last, nil
}

func logFrame(ctx context.Context, log logging.Logger, f *core.Frame) {
	fields := []logging.Field{
		logging.Frame(f.Index),
		logging.Int("lit", f.Stats.Lit),
		logging.Int("shadowed", f.Stats.Shadowed),
		logging.Int("hits", f.Stats.HitCount),
	}
	if f.Apparent == nil {
		log.Debug(ctx, "frame traced", fields...)
		return
	}
	fields = append(fields,
		logging.Float64("apparent_x", f.Apparent.Position.X),
		logging.Float64("apparent_y", f.Apparent.Position.Y),
		logging.Float64("true_elevation_deg", f.Stats.Hit.TrueElevationDeg),
		logging.Float64("lift_deg", f.Stats.Hit.Lift()),
	)
	log.Info(ctx, "apparent source", fields...)
}

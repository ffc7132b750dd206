package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/timectrl"
)

// TestRunWritesLastFrame runs a short accelerated simulation end to end.
func TestRunWritesLastFrame(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	cfg := Config{
		Duration:    5 * timectrl.DefaultFrameInterval,
		Accelerated: true,
		Out:         out,
		RayCount:    40,
		Seed:        11,
	}

	last, err := run(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if last.Index != 5 {
		t.Fatalf("last frame index = %d, want 5", last.Index)
	}
	if last.Stats.Rays != 40 {
		t.Fatalf("rays per frame = %d, want 40", last.Stats.Rays)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat %s: %v", out, err)
	}
	if info.Size() == 0 {
		t.Fatalf("PNG %s is empty", out)
	}
}

func TestRunSweepMovesSun(t *testing.T) {
	cfg := Config{
		Duration:    3 * timectrl.DefaultFrameInterval,
		Accelerated: true,
		Sweep:       10,
	}
	last, err := run(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	// Frames see the sun before each sweep: 650, 660, 670.
	if got, want := last.Scene.Sun.X, 670.0; got != want {
		t.Fatalf("sun x on last frame = %v, want %v", got, want)
	}
}

func TestLoadSceneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := os.WriteFile(path, []byte(`{"seed": 4, "ray_count": 12}`), 0o644); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	scene, err := loadScene(Config{ScenePath: path, Seed: 9})
	if err != nil {
		t.Fatalf("loadScene error: %v", err)
	}
	if scene.RayCount != 12 || scene.Seed != 9 {
		t.Fatalf("scene = rays %d seed %d, want rays 12 seed 9", scene.RayCount, scene.Seed)
	}

	if _, err := loadScene(Config{ScenePath: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("loadScene(missing) error = nil, want error")
	}
}

func TestRunCancelledBeforeFirstFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{Duration: time.Second, Accelerated: true}
	if _, err := run(ctx, cfg, logging.Noop()); err == nil {
		t.Fatalf("run with cancelled context error = nil, want ErrNoFrame")
	}
}

package state

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/observability"
	"github.com/signalsfoundry/refraction-simulator/model"
	"github.com/signalsfoundry/refraction-simulator/timectrl"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type stubMetricsRecorder struct {
	frames  []observability.FrameSample
	dropped int
	resets  int
}

func (r *stubMetricsRecorder) ObserveFrame(s observability.FrameSample) { r.frames = append(r.frames, s) }
func (r *stubMetricsRecorder) IncFramesDropped()                       { r.dropped++ }
func (r *stubMetricsRecorder) IncHitResets()                           { r.resets++ }

func TestRequestFrameThrottles(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
	recorder := &stubMetricsRecorder{}
	s, _ := newStateForTest(t, WithClock(clock), WithMetricsRecorder(recorder))
	ctx := context.Background()

	first, ran := s.RequestFrame(ctx)
	if !ran || first == nil || first.Index != 1 {
		t.Fatalf("first RequestFrame = %v, %v", first, ran)
	}

	clock.now = clock.now.Add(5 * time.Millisecond)
	again, ran := s.RequestFrame(ctx)
	if ran {
		t.Fatalf("frame 5ms after the last one should be dropped")
	}
	if again != first {
		t.Fatalf("dropped request should return the previous frame")
	}

	clock.now = clock.now.Add(timectrl.DefaultFrameInterval)
	if f, ran := s.RequestFrame(ctx); !ran || f.Index != 2 {
		t.Fatalf("frame after the interval = %v, %v", f, ran)
	}

	if len(recorder.frames) != 2 || recorder.dropped != 1 {
		t.Fatalf("recorded %d frames / %d dropped, want 2 / 1", len(recorder.frames), recorder.dropped)
	}
	if recorder.frames[1].Hits != 2 {
		t.Fatalf("second frame reported %d hits, want 2", recorder.frames[1].Hits)
	}
	if snap := s.Snapshot(); snap.Dropped != 1 || snap.LastFrame != 2 {
		t.Fatalf("snapshot dropped=%d last=%d", snap.Dropped, snap.LastFrame)
	}
}

func TestSetSourceResetsHitsAndCountsReset(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	s, engine := newStateForTest(t, WithMetricsRecorder(recorder))
	ctx := context.Background()

	s.RenderFrame(ctx)
	s.RenderFrame(ctx)
	if len(engine.Hits()) != 2 {
		t.Fatalf("setup: %d hits", len(engine.Hits()))
	}

	sun, err := s.SetSource(ctx, model.Pt(9999, 100))
	if err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if sun != model.Pt(model.CanvasWidth, 100) {
		t.Fatalf("SetSource returned %v, want clamped position", sun)
	}
	if got := s.Snapshot().HitCount; got != 0 {
		t.Fatalf("hits after SetSource = %d", got)
	}
	if recorder.resets != 1 {
		t.Fatalf("recorded %d resets, want 1", recorder.resets)
	}

	if _, err := s.SetObserver(ctx, model.Pt(math.NaN(), 0)); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("SetObserver(NaN) error = %v, want ErrInvalidPosition", err)
	}
}

func TestConfigureLayersValidates(t *testing.T) {
	s, engine := newStateForTest(t)
	ctx := context.Background()

	err := s.ConfigureLayers(ctx, model.LayerConfig{Count: 0, Spacing: 50, TopIndex: 1, BottomIndex: 1.3})
	if !errors.Is(err, ErrInvalidLayerConfig) {
		t.Fatalf("ConfigureLayers(count=0) error = %v, want ErrInvalidLayerConfig", err)
	}
	if err := s.ConfigureLayers(ctx, model.DefaultLayerConfig()); err != nil {
		t.Fatalf("ConfigureLayers: %v", err)
	}
	if engine.Medium().Len() != 10 {
		t.Fatalf("medium has %d layers, want 10", engine.Medium().Len())
	}
}

func TestApparentSourceUnavailable(t *testing.T) {
	s, _ := newStateForTest(t)
	if _, _, err := s.ApparentSource(); !errors.Is(err, ErrNoApparentSource) {
		t.Fatalf("ApparentSource error = %v, want ErrNoApparentSource", err)
	}
	if _, err := s.LastFrame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("LastFrame error = %v, want ErrNoFrame", err)
	}
}

func TestMoveMoonAndView(t *testing.T) {
	s, _ := newStateForTest(t)
	ctx := context.Background()

	moon, err := s.MoveMoon(ctx, model.Pt(100, 200))
	if err != nil {
		t.Fatalf("MoveMoon: %v", err)
	}
	if moon != model.Pt(100, 200) {
		t.Fatalf("moon = %v", moon)
	}

	zoom, err := s.SetView(ctx, 50, 0.1)
	if err != nil {
		t.Fatalf("SetView: %v", err)
	}
	if zoom != 0.5 {
		t.Fatalf("zoom = %v, want clamped 0.5", zoom)
	}
	s.ResetView(ctx)
	if snap := s.Snapshot(); snap.ViewX != 0 || snap.Zoom != 1 || !snap.HasMoon || snap.Moon != moon {
		t.Fatalf("snapshot after ResetView = %+v", snap)
	}
}

func TestAttachTimeControllerRunsFrames(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newStateForTest(t)
	tc := timectrl.NewTimeController(start, timectrl.DefaultFrameInterval, timectrl.Accelerated)

	var frames int
	s.AttachTimeController(context.Background(), tc, func(f *core.Frame) { frames++ })
	<-tc.Start(context.Background(), 5*timectrl.DefaultFrameInterval)

	if frames != 5 {
		t.Fatalf("traced %d frames, want 5", frames)
	}
}

func TestControllerClockSharedWithRequests(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, timectrl.DefaultFrameInterval, timectrl.Accelerated)
	recorder := &stubMetricsRecorder{}
	s, _ := newStateForTest(t, WithClock(tc), WithMetricsRecorder(recorder))
	ctx := context.Background()

	if _, ran := s.RequestFrame(ctx); !ran {
		t.Fatalf("first request before any tick should run")
	}

	var loopFrames, clientRan int
	s.AttachTimeController(ctx, tc, func(*core.Frame) { loopFrames++ })
	// A client asking for a frame right after every tick shares the tick's
	// budget instead of pushing the limiter onto another timeline.
	tc.AddListener(func(time.Time) {
		if _, ran := s.RequestFrame(ctx); ran {
			clientRan++
		}
	})
	<-tc.Start(ctx, 5*timectrl.DefaultFrameInterval)

	if loopFrames != 5 {
		t.Fatalf("loop traced %d frames, want 5", loopFrames)
	}
	if clientRan != 0 {
		t.Fatalf("client rendered %d extra frames inside the tick budget", clientRan)
	}
	if got := s.Snapshot().Frames; got != 6 {
		t.Fatalf("Frames = %d, want 6", got)
	}
	if recorder.dropped != 5 {
		t.Fatalf("dropped = %d, want 5", recorder.dropped)
	}
}

package state

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/model"
)

// TestFrameLoopAndControlConcurrency runs frames alongside concurrent
// control-surface writes to verify we stay race-free and that every write
// leaves the hits consistent with the new geometry.
func TestFrameLoopAndControlConcurrency(t *testing.T) {
	s, _ := newStateForTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			s.RenderFrame(ctx)
		}
	}()

	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 50; i++ {
			p := model.Pt(rng.Float64()*model.CanvasWidth, rng.Float64()*model.GroundY)
			if _, err := s.SetSource(ctx, p); err != nil {
				t.Errorf("SetSource: %v", err)
				return
			}
			if i%10 == 0 {
				s.ResetHits(ctx)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Snapshot()
			_, _, _ = s.ApparentSource()
			if _, err := s.MoveMoon(ctx, model.Pt(float64(i*10), 300)); err != nil {
				t.Errorf("MoveMoon: %v", err)
				return
			}
		}
	}()

	wg.Wait()

	snap := s.Snapshot()
	if snap.HitCount > 10 {
		t.Fatalf("aggregator exceeded its cap: %d", snap.HitCount)
	}
	if snap.Frames != 20 {
		t.Fatalf("traced %d frames, want 20", snap.Frames)
	}
}

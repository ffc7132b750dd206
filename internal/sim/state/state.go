// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/internal/observability"
	"github.com/signalsfoundry/refraction-simulator/kb"
	"github.com/signalsfoundry/refraction-simulator/model"
	"github.com/signalsfoundry/refraction-simulator/timectrl"
)

// Re-export engine sentinel errors so callers can depend on state.*
// instead of core.* directly if they want to.
var (
	// ErrInvalidLayerConfig indicates a layer configuration failed validation.
	ErrInvalidLayerConfig = core.ErrInvalidLayerConfig
	// ErrInvalidPosition indicates a non-finite position.
	ErrInvalidPosition = core.ErrInvalidPosition
	// ErrInvalidView indicates an unusable pan/zoom request.
	ErrInvalidView = core.ErrInvalidView
	// ErrBodyNotFound indicates a body is missing from the KB.
	ErrBodyNotFound = kb.ErrBodyNotFound
	// ErrNoApparentSource indicates fewer than two usable observer hits.
	ErrNoApparentSource = errors.New("apparent source not available")
	// ErrNoFrame indicates no frame has been traced yet.
	ErrNoFrame = errors.New("no frame traced yet")
)

// FrameMetricsRecorder receives frame-loop measurements.
type FrameMetricsRecorder interface {
	ObserveFrame(observability.FrameSample)
	IncFramesDropped()
	IncHitResets()
}

// SimulationState serialises every access to a SimulationEngine. The engine
// itself is single-threaded; the control surface and the frame loop both go
// through SimulationState so that position writes and trace passes never
// interleave.
type SimulationState struct {
	// mu guards the engine and lastFrame. Engine callbacks fired through the
	// KB run on the writer's goroutine, i.e. while mu is held.
	mu sync.Mutex

	engine    *core.SimulationEngine
	lastFrame *core.Frame

	limiter *timectrl.FrameLimiter
	clock   timectrl.Clock

	// log is an optional structured logger for state-level events.
	log logging.Logger

	// metrics is an optional recorder for Prometheus-friendly measurements.
	metrics FrameMetricsRecorder
}

// Snapshot is a consistent view of the scene parameters.
type Snapshot struct {
	Sun        model.Point
	Observer   model.Point
	Moon       model.Point
	HasMoon    bool
	Layers     model.LayerConfig
	ViewX      float64
	Zoom       float64
	RayCount   int
	HitCount   int
	Frames     uint64
	HitResets  uint64
	LastFrame  uint64
	Dropped    uint64
	Obstacles  int
	LayerCount int
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// SimulationStateOption customises SimulationState construction.
type SimulationStateOption func(*SimulationState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m FrameMetricsRecorder) SimulationStateOption {
	return func(s *SimulationState) {
		s.metrics = m
	}
}

// WithFrameLimiter replaces the default 30 fps limiter.
func WithFrameLimiter(l *timectrl.FrameLimiter) SimulationStateOption {
	return func(s *SimulationState) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithClock sets the time source used for frame throttling.
func WithClock(c timectrl.Clock) SimulationStateOption {
	return func(s *SimulationState) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSimulationState wraps engine.
func NewSimulationState(engine *core.SimulationEngine, log logging.Logger, opts ...SimulationStateOption) *SimulationState {
	if log == nil {
		log = logging.Noop()
	}
	s := &SimulationState{
		engine:  engine,
		limiter: timectrl.NewFrameLimiter(timectrl.DefaultFrameInterval),
		clock:   wallClock{},
		log:     log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// loggerFor prefers the per-request logger installed by the gRPC interceptors.
func (s *SimulationState) loggerFor(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// WithLock executes fn with exclusive access to the engine. Callers must not
// invoke other SimulationState methods from inside fn.
func (s *SimulationState) WithLock(fn func(*core.SimulationEngine) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackResetsLocked(func() error { return fn(s.engine) })
}

// trackResetsLocked runs fn and reports any hit invalidations it caused.
func (s *SimulationState) trackResetsLocked(fn func() error) error {
	before := s.engine.ResetCount()
	err := fn()
	if s.metrics != nil {
		for i := before; i < s.engine.ResetCount(); i++ {
			s.metrics.IncHitResets()
		}
	}
	return err
}

// SetSource moves the sun; the recorded hits are invalidated.
func (s *SimulationState) SetSource(ctx context.Context, p model.Point) (model.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.trackResetsLocked(func() error { return s.engine.SetSource(p) }); err != nil {
		return model.Point{}, err
	}
	sun := s.engine.Sun()
	s.loggerFor(ctx).Info(ctx, "sun moved",
		logging.Point("sun", sun),
	)
	return sun, nil
}

// SetObserver moves the observer; the recorded hits are invalidated.
func (s *SimulationState) SetObserver(ctx context.Context, p model.Point) (model.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.trackResetsLocked(func() error { return s.engine.SetObserver(p) }); err != nil {
		return model.Point{}, err
	}
	obs := s.engine.Observer()
	s.loggerFor(ctx).Info(ctx, "observer moved",
		logging.Point("observer", obs),
	)
	return obs, nil
}

// ConfigureLayers validates cfg and rebuilds the layered medium.
func (s *SimulationState) ConfigureLayers(ctx context.Context, cfg model.LayerConfig) error {
	if err := core.ValidateLayerConfig(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackResetsLocked(func() error {
		s.engine.ConfigureLayers(cfg)
		return nil
	})
}

// MoveMoon drags the moon obstacle and returns its clamped position.
func (s *SimulationState) MoveMoon(ctx context.Context, p model.Point) (model.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.MoveMoon(p); err != nil {
		return model.Point{}, err
	}
	moon, ok := s.engine.Bodies().GetBody(model.MoonID)
	if !ok {
		return model.Point{}, fmt.Errorf("%w: %q", ErrBodyNotFound, model.MoonID)
	}
	return moon.Position, nil
}

// SetView pans and zooms; it returns the clamped zoom.
func (s *SimulationState) SetView(ctx context.Context, viewX, zoom float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetView(viewX, zoom); err != nil {
		return 0, err
	}
	_, z := s.engine.View()
	return z, nil
}

// ResetView restores the default pan and zoom.
func (s *SimulationState) ResetView(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ResetView()
}

// ResetHits clears the observer hits.
func (s *SimulationState) ResetHits(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.trackResetsLocked(func() error {
		s.engine.ResetHits()
		return nil
	})
}

// RequestFrame traces a frame unless one ran less than the limiter's interval
// ago. Dropped requests return the previous frame (possibly nil) and false.
func (s *SimulationState) RequestFrame(ctx context.Context) (*core.Frame, bool) {
	return s.RequestFrameAt(ctx, s.clock.Now())
}

// RequestFrameAt is RequestFrame with an explicit timestamp; the time
// controller passes its tick time.
func (s *SimulationState) RequestFrameAt(ctx context.Context, now time.Time) (*core.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.limiter.Allow(now) {
		if s.metrics != nil {
			s.metrics.IncFramesDropped()
		}
		return s.lastFrame, false
	}
	return s.renderLocked(ctx), true
}

// RenderFrame traces a frame immediately, bypassing the limiter.
func (s *SimulationState) RenderFrame(ctx context.Context) *core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(ctx)
}

func (s *SimulationState) renderLocked(ctx context.Context) *core.Frame {
	ctx, span := observability.StartFrameSpan(ctx, s.engine.RayCount())

	start := time.Now()
	var frame *core.Frame
	_ = s.trackResetsLocked(func() error {
		frame = s.engine.RenderFrame()
		return nil
	})
	elapsed := time.Since(start)

	sample := observability.FrameSample{
		Index:     frame.Index,
		Rays:      frame.Stats.Rays,
		Lit:       frame.Stats.Lit,
		Shadowed:  frame.Stats.Shadowed,
		Discarded: frame.Stats.Discarded,
		Hits:      frame.Stats.HitCount,
		Apparent:  frame.Apparent != nil,
		Duration:  elapsed,
	}
	observability.EndFrameSpan(span, sample)
	if s.metrics != nil {
		s.metrics.ObserveFrame(sample)
	}

	if frame.Apparent != nil {
		s.log.Debug(ctx, "apparent source",
			logging.Frame(frame.Index),
			logging.Point("apparent", frame.Apparent.Position),
			logging.Float64("lift_deg", frame.Stats.Hit.Lift()),
			logging.Duration("elapsed", elapsed),
		)
	}

	s.lastFrame = frame
	return frame
}

// LastFrame returns the most recent frame.
func (s *SimulationState) LastFrame() (*core.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFrame == nil {
		return nil, ErrNoFrame
	}
	return s.lastFrame, nil
}

// ApparentSource reconstructs the apparent sun from the current hits.
func (s *SimulationState) ApparentSource() (model.ApparentSource, core.HitStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.engine.Hits()
	stats := core.ComputeHitStatistics(hits, s.engine.Observer(), s.engine.Sun())
	src, ok := core.ApparentSourceOf(hits)
	if !ok {
		return model.ApparentSource{}, stats, ErrNoApparentSource
	}
	return src, stats, nil
}

// Snapshot returns the current scene parameters.
func (s *SimulationState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewX, zoom := s.engine.View()
	snap := Snapshot{
		Sun:        s.engine.Sun(),
		Observer:   s.engine.Observer(),
		Layers:     s.engine.LayerConfig(),
		ViewX:      viewX,
		Zoom:       zoom,
		RayCount:   s.engine.RayCount(),
		HitCount:   len(s.engine.Hits()),
		Frames:     s.engine.FrameCount(),
		HitResets:  s.engine.ResetCount(),
		Dropped:    s.limiter.Dropped(),
		Obstacles:  s.engine.Obstacles().Len(),
		LayerCount: s.engine.Medium().Len(),
	}
	if moon, ok := s.engine.Bodies().GetBody(model.MoonID); ok {
		snap.Moon = moon.Position
		snap.HasMoon = true
	}
	if s.lastFrame != nil {
		snap.LastFrame = s.lastFrame.Index
	}
	return snap
}

// AttachTimeController drives RequestFrameAt from every controller tick.
// listener, when non-nil, receives each frame that was actually traced.
func (s *SimulationState) AttachTimeController(ctx context.Context, tc *timectrl.TimeController, listener func(*core.Frame)) {
	tc.AddListener(func(t time.Time) {
		frame, ran := s.RequestFrameAt(ctx, t)
		if ran && listener != nil {
			listener(frame)
		}
	})
}

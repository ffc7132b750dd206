package core

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/kb"
	"github.com/signalsfoundry/refraction-simulator/model"
)

const (
	// DefaultRayCount is the number of rays traced per frame.
	DefaultRayCount = 100
	// ReflectionEvery selects which rays record reflections (every Nth ray).
	ReflectionEvery = 5

	MinZoom = 0.5
	MaxZoom = 15.0

	// sunGroundClearance keeps a dragged sun this far above the ground.
	sunGroundClearance = 10.0
)

// SceneSnapshot is a read-only copy of the scene a frame was traced in.
type SceneSnapshot struct {
	Sun      model.Point
	Observer model.Point
	Layers   []model.RefractiveLayer
	Terrain  []Terrain
	Clouds   []Cloud
	// MoonIndex is the index of the moon in Clouds, or -1.
	MoonIndex int
	ViewX     float64
	Zoom      float64
}

// FrameStats summarises one frame.
type FrameStats struct {
	Rays      int
	Lit       int
	Shadowed  int
	Discarded int
	Steps     int
	NewHits   int
	HitCount  int
	Hit       HitStatistics
}

// Frame is the output of one full trace pass.
type Frame struct {
	Index       uint64
	Scene       SceneSnapshot
	Visible     model.GroundRange
	Rays        []TraceResult
	Hits        []model.ObserverHit
	Apparent    *model.ApparentSource
	ViewVectors []ViewVector
	Stats       FrameStats
}

// SimulationEngine owns the scene and runs frames: one frame traces RayCount
// rays across the visible ground span and feeds observer hits into the
// aggregator.
//
// The engine is single-threaded. Callers sharing it between goroutines must
// serialise access (see internal/sim/state).
type SimulationEngine struct {
	bodies      *kb.KnowledgeBase
	unsubscribe func()

	tracer   *Tracer
	layerCfg model.LayerConfig
	medium   *LayeredMedium
	field    *ObstacleField
	hits     *HitAggregator
	rayCount int

	viewX float64
	zoom  float64

	// lastSun/lastObserver are the positions the current hits were traced
	// with; a mismatch at frame start invalidates the hits.
	lastSun      model.Point
	lastObserver model.Point
	traced       bool

	frames         uint64
	resets         uint64
	frameListeners []func(*Frame)
	log            logging.Logger

	rng          *rand.Rand
	obstacleCfg  ObstacleConfig
	tracerConfig TracerConfig
}

// EngineOption customises SimulationEngine construction.
type EngineOption func(*SimulationEngine)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) EngineOption {
	return func(e *SimulationEngine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRand injects the random source used for obstacle generation and hit
// eviction. Tests pass a seeded source for deterministic geometry.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *SimulationEngine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithLayerConfig sets the initial layer configuration.
func WithLayerConfig(cfg model.LayerConfig) EngineOption {
	return func(e *SimulationEngine) { e.layerCfg = cfg }
}

// WithObstacleConfig sets how many obstacles are generated.
func WithObstacleConfig(cfg ObstacleConfig) EngineOption {
	return func(e *SimulationEngine) { e.obstacleCfg = cfg }
}

// WithObstacleField uses a prebuilt obstacle field instead of generating one.
func WithObstacleField(f *ObstacleField) EngineOption {
	return func(e *SimulationEngine) { e.field = f }
}

// WithRayCount sets the number of rays per frame.
func WithRayCount(n int) EngineOption {
	return func(e *SimulationEngine) { e.rayCount = n }
}

// WithTracerConfig overrides the march geometry.
func WithTracerConfig(cfg TracerConfig) EngineOption {
	return func(e *SimulationEngine) { e.tracerConfig = cfg }
}

// NewSimulationEngine builds an engine around bodies, registering the sun,
// observer and moon in it if they are missing. A nil KB gets a private one.
func NewSimulationEngine(bodies *kb.KnowledgeBase, opts ...EngineOption) (*SimulationEngine, error) {
	if bodies == nil {
		bodies = kb.NewKnowledgeBase()
	}
	e := &SimulationEngine{
		bodies:       bodies,
		layerCfg:     model.DefaultLayerConfig(),
		rayCount:     DefaultRayCount,
		zoom:         1,
		log:          logging.Noop(),
		obstacleCfg:  DefaultObstacleConfig(),
		tracerConfig: DefaultTracerConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(1))
	}

	for _, b := range []model.Body{
		{ID: model.SunID, Name: "Sun", Kind: model.BodyKindSun, Position: model.DefaultSunPosition()},
		{ID: model.ObserverID, Name: "Observer", Kind: model.BodyKindObserver, Position: model.DefaultObserverPosition()},
	} {
		if err := bodies.AddBody(b); err != nil && !errors.Is(err, kb.ErrBodyExists) {
			return nil, err
		}
	}

	if e.field == nil {
		e.field = GenerateObstacleField(e.rng, e.obstacleCfg, bodies.Position(model.SunID).Y)
	}
	if e.field.Moon != nil {
		moon := model.Body{ID: model.MoonID, Name: "Moon", Kind: model.BodyKindMoon, Position: model.Pt(e.field.Moon.X, e.field.Moon.Y)}
		if err := bodies.AddBody(moon); err != nil {
			if !errors.Is(err, kb.ErrBodyExists) {
				return nil, err
			}
			e.field.MoveMoon(bodies.Position(model.MoonID))
		}
	}

	e.tracer = NewTracer(e.tracerConfig)
	e.medium = NewLayeredMedium(e.layerCfg, e.tracer.Config().GroundY)
	e.hits = NewHitAggregator(e.rng)
	e.unsubscribe = bodies.Subscribe(e.onBodyEvent)

	return e, nil
}

// Close detaches the engine from its KB.
func (e *SimulationEngine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

func (e *SimulationEngine) onBodyEvent(ev kb.Event) {
	if ev.Type != kb.EventBodyMoved {
		return
	}
	switch ev.Body.Kind {
	case model.BodyKindSun, model.BodyKindObserver:
		if ev.Previous != ev.Body.Position {
			e.resetHits("position_changed", logging.String("body", ev.Body.ID))
			// Already invalidated; the next frame must not count it again.
			e.lastSun, e.lastObserver = e.Sun(), e.Observer()
		}
	case model.BodyKindMoon:
		e.field.MoveMoon(ev.Body.Position)
	}
}

func (e *SimulationEngine) resetHits(reason string, fields ...logging.Field) {
	if e.hits.Len() > 0 {
		e.log.Debug(context.Background(), "observer hits invalidated",
			append([]logging.Field{logging.String("reason", reason), logging.Int("discarded", e.hits.Len())}, fields...)...)
	}
	e.hits.Reset()
	e.resets++
}

// Bodies exposes the engine's body store.
func (e *SimulationEngine) Bodies() *kb.KnowledgeBase { return e.bodies }

// Sun returns the light source position.
func (e *SimulationEngine) Sun() model.Point { return e.bodies.Position(model.SunID) }

// Observer returns the observer position.
func (e *SimulationEngine) Observer() model.Point { return e.bodies.Position(model.ObserverID) }

// SetSource moves the sun, clamped to the canvas and kept above the ground.
// Any move clears the recorded observer hits.
func (e *SimulationEngine) SetSource(p model.Point) error {
	if err := ValidatePosition(p); err != nil {
		return err
	}
	cfg := e.tracer.Config()
	p = model.Pt(clamp(p.X, 0, cfg.CanvasWidth), clamp(p.Y, 0, cfg.GroundY-sunGroundClearance))
	return e.bodies.UpdateBodyPosition(model.SunID, p)
}

// SetObserver moves the observer, clamped to the thin band just above the
// ground. Any move clears the recorded observer hits.
func (e *SimulationEngine) SetObserver(p model.Point) error {
	if err := ValidatePosition(p); err != nil {
		return err
	}
	cfg := e.tracer.Config()
	p = model.Pt(clamp(p.X, 0, cfg.CanvasWidth), clamp(p.Y, cfg.GroundY-model.ObserverHeight, cfg.GroundY))
	return e.bodies.UpdateBodyPosition(model.ObserverID, p)
}

// MoveMoon drags the moon obstacle. Hits are kept: the moon only changes
// which future rays are occluded.
func (e *SimulationEngine) MoveMoon(p model.Point) error {
	if err := ValidatePosition(p); err != nil {
		return err
	}
	if !e.field.MoveMoon(p) {
		return nil
	}
	return e.bodies.UpdateBodyPosition(model.MoonID, model.Pt(e.field.Moon.X, e.field.Moon.Y))
}

// ConfigureLayers rebuilds the layered medium wholesale and clears the hits.
// Malformed configs degrade to a uniform medium.
func (e *SimulationEngine) ConfigureLayers(cfg model.LayerConfig) {
	e.layerCfg = cfg
	e.medium = NewLayeredMedium(cfg, e.tracer.Config().GroundY)
	e.resetHits("layers_reconfigured")
	e.log.Info(context.Background(), "layered medium rebuilt",
		logging.Int("layers", e.medium.Len()),
		logging.Float64("spacing", cfg.Spacing),
		logging.Float64("top_index", cfg.TopIndex),
		logging.Float64("bottom_index", cfg.BottomIndex),
	)
}

// LayerConfig returns the configuration the current medium was built from.
func (e *SimulationEngine) LayerConfig() model.LayerConfig { return e.layerCfg }

// Medium returns the current layered medium.
func (e *SimulationEngine) Medium() *LayeredMedium { return e.medium }

// Obstacles returns the obstacle field.
func (e *SimulationEngine) Obstacles() *ObstacleField { return e.field }

// Tracer returns the tracer at the current zoom.
func (e *SimulationEngine) Tracer() *Tracer { return e.tracer }

// SetRayCount changes the number of rays per frame.
func (e *SimulationEngine) SetRayCount(n int) {
	if n < 0 {
		n = 0
	}
	e.rayCount = n
}

// RayCount returns the number of rays per frame.
func (e *SimulationEngine) RayCount() int { return e.rayCount }

// SetView pans and zooms. Zoom is clamped to [MinZoom, MaxZoom] and also
// scales the march step.
func (e *SimulationEngine) SetView(viewX, zoom float64) error {
	if !finite(viewX, zoom) {
		return ErrInvalidView
	}
	e.viewX = viewX
	e.zoom = clamp(zoom, MinZoom, MaxZoom)
	e.tracer = e.tracer.WithStepScale(e.zoom)
	return nil
}

// ResetView returns to the unpanned, unzoomed view.
func (e *SimulationEngine) ResetView() {
	_ = e.SetView(0, 1)
}

// View returns the current pan offset and zoom.
func (e *SimulationEngine) View() (viewX, zoom float64) { return e.viewX, e.zoom }

// ResetHits clears the observer hits.
func (e *SimulationEngine) ResetHits() { e.resetHits("requested") }

// Hits returns the recorded observer hits.
func (e *SimulationEngine) Hits() []model.ObserverHit { return e.hits.Hits() }

// ApparentSource reconstructs the apparent sun from the recorded hits.
func (e *SimulationEngine) ApparentSource() (model.ApparentSource, bool) {
	return e.hits.ApparentSource()
}

// FrameCount returns the number of frames traced so far.
func (e *SimulationEngine) FrameCount() uint64 { return e.frames }

// ResetCount returns how many times the hits were invalidated.
func (e *SimulationEngine) ResetCount() uint64 { return e.resets }

// RegisterFrameListener adds a callback invoked after every frame.
func (e *SimulationEngine) RegisterFrameListener(fn func(*Frame)) {
	e.frameListeners = append(e.frameListeners, fn)
}

// VisibleRange converts a pan offset and zoom into the span of ground that
// receives rays, clamped to the earth.
func VisibleRange(viewX, zoom float64) model.GroundRange {
	if !(zoom > 0) {
		zoom = 1
	}
	left := viewX - 10
	right := viewX + (model.EarthWidth+40)/zoom
	return model.GroundRange{
		Left:  clamp(left, 0, model.EarthWidth),
		Right: clamp(right, 0, model.EarthWidth),
	}
}

// RenderFrame runs one full trace pass.
func (e *SimulationEngine) RenderFrame() *Frame {
	sun := e.Sun()
	observer := e.Observer()
	if e.traced && (sun != e.lastSun || observer != e.lastObserver) {
		e.resetHits("stale_geometry")
	}
	e.lastSun, e.lastObserver, e.traced = sun, observer, true

	shelves := e.field.Shelves()
	visible := VisibleRange(e.viewX, e.zoom)
	targets := GroundTargets(visible, e.rayCount)

	e.frames++
	frame := &Frame{
		Index:   e.frames,
		Scene:   e.snapshot(sun, observer),
		Visible: visible,
		Rays:    make([]TraceResult, 0, len(targets)),
	}

	for i, x := range targets {
		res := e.tracer.Trace(sun, x, e.medium, shelves, observer, i%ReflectionEvery == 0)
		switch {
		case res.Discarded:
			frame.Stats.Discarded++
		case res.Shadowed:
			frame.Stats.Shadowed++
		default:
			frame.Stats.Lit++
		}
		if n := len(res.Path); n > 0 {
			frame.Stats.Steps += n - 1
		}
		if res.Hit != nil {
			e.hits.Record(*res.Hit)
			frame.Stats.NewHits++
		}
		frame.Rays = append(frame.Rays, res)
	}
	frame.Stats.Rays = len(frame.Rays)

	frame.Hits = e.hits.Hits()
	frame.Stats.HitCount = len(frame.Hits)
	if apparent, ok := e.hits.ApparentSource(); ok {
		frame.Apparent = &apparent
		frame.ViewVectors = e.hits.Extensions(apparent.Spread)
	}
	frame.Stats.Hit = ComputeHitStatistics(frame.Hits, observer, sun)

	fields := []logging.Field{
		logging.Frame(frame.Index),
		logging.Int("rays", frame.Stats.Rays),
		logging.Int("shadowed", frame.Stats.Shadowed),
		logging.Int("hits", frame.Stats.HitCount),
	}
	if frame.Apparent != nil {
		fields = append(fields,
			logging.Point("apparent", frame.Apparent.Position),
		)
	}
	e.log.Debug(context.Background(), "frame traced", fields...)

	for _, fn := range e.frameListeners {
		fn(frame)
	}
	return frame
}

// Run traces n frames back to back.
func (e *SimulationEngine) Run(n int) *Frame {
	var last *Frame
	for i := 0; i < n; i++ {
		last = e.RenderFrame()
	}
	return last
}

func (e *SimulationEngine) snapshot(sun, observer model.Point) SceneSnapshot {
	snap := SceneSnapshot{
		Sun:       sun,
		Observer:  observer,
		Layers:    e.medium.Layers(),
		Terrain:   make([]Terrain, 0, len(e.field.Terrain)),
		Clouds:    make([]Cloud, 0, len(e.field.Clouds)),
		MoonIndex: -1,
		ViewX:     e.viewX,
		Zoom:      e.zoom,
	}
	for _, t := range e.field.Terrain {
		snap.Terrain = append(snap.Terrain, *t)
	}
	for i, c := range e.field.Clouds {
		if c == e.field.Moon {
			snap.MoonIndex = i
		}
		snap.Clouds = append(snap.Clouds, *c)
	}
	return snap
}

// AngularErrorDegrees is the angle between where the observer sees the
// apparent sun and where the true sun is.
func AngularErrorDegrees(observer, sun model.Point, apparent model.ApparentSource) float64 {
	d := BearingDegrees(observer, apparent.Position) - BearingDegrees(observer, sun)
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return math.Abs(d)
}

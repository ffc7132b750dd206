package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ray outcome label values.
const (
	RayOutcomeLit       = "lit"
	RayOutcomeShadowed  = "shadowed"
	RayOutcomeDiscarded = "discarded"
)

// FrameSample is what the frame loop reports after each traced frame. The
// same sample feeds the metrics collector and the frame span.
type FrameSample struct {
	Index     uint64
	Rays      int
	Lit       int
	Shadowed  int
	Discarded int
	Hits      int
	// Apparent is set when the hits resolved an apparent source.
	Apparent bool
	Duration time.Duration
}

func (c *SimCollector) registerFrameMetrics(reg prometheus.Registerer) error {
	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refraction_frames_total",
		Help: "Number of frames traced.",
	}), "refraction_frames_total")
	if err != nil {
		return err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refraction_frames_dropped_total",
		Help: "Frame requests refused by the frame-rate limiter.",
	}), "refraction_frames_dropped_total")
	if err != nil {
		return err
	}

	rays, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refraction_rays_total",
		Help: "Rays traced, labeled by outcome (lit, shadowed, discarded).",
	}, []string{"outcome"}), "refraction_rays_total")
	if err != nil {
		return err
	}

	hits, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "refraction_observer_hits",
		Help: "Observer hits currently held by the aggregator.",
	}), "refraction_observer_hits")
	if err != nil {
		return err
	}

	resets, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refraction_hit_resets_total",
		Help: "Times the observer hits were invalidated.",
	}), "refraction_hit_resets_total")
	if err != nil {
		return err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "refraction_frame_duration_seconds",
		Help:    "Wall-clock time spent tracing one frame.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "refraction_frame_duration_seconds")
	if err != nil {
		return err
	}

	c.FramesTotal = frames
	c.FramesDropped = dropped
	c.Rays = rays
	c.ObserverHits = hits
	c.HitResets = resets
	c.FrameDuration = duration
	return nil
}

// ObserveFrame records one traced frame.
func (c *SimCollector) ObserveFrame(s FrameSample) {
	if c == nil {
		return
	}
	if c.FramesTotal != nil {
		c.FramesTotal.Inc()
	}
	if c.Rays != nil {
		c.Rays.WithLabelValues(RayOutcomeLit).Add(float64(s.Lit))
		c.Rays.WithLabelValues(RayOutcomeShadowed).Add(float64(s.Shadowed))
		c.Rays.WithLabelValues(RayOutcomeDiscarded).Add(float64(s.Discarded))
	}
	if c.ObserverHits != nil {
		c.ObserverHits.Set(float64(s.Hits))
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(s.Duration.Seconds())
	}
}

// IncFramesDropped counts a frame refused by the limiter.
func (c *SimCollector) IncFramesDropped() {
	if c == nil || c.FramesDropped == nil {
		return
	}
	c.FramesDropped.Inc()
}

// IncHitResets counts an invalidation of the observer hits and zeroes the
// hit gauge.
func (c *SimCollector) IncHitResets() {
	if c == nil {
		return
	}
	if c.HitResets != nil {
		c.HitResets.Inc()
	}
	if c.ObserverHits != nil {
		c.ObserverHits.Set(0)
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

package core

import (
	"math"

	"github.com/signalsfoundry/refraction-simulator/model"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// DefaultBaseStep is the march step length at zoom 1.
	DefaultBaseStep = 2.0
	// IndexEpsilon is the smallest index change treated as a boundary crossing.
	IndexEpsilon = 0.001
	// ReflectionThreshold is the minimum reflection strength worth recording.
	ReflectionThreshold = 0.0001
)

// upwardNormal is the boundary normal used for incidence angles: every
// boundary is horizontal and faces the sky (-Y).
const upwardNormal = -math.Pi / 2

// TracerConfig holds the fixed geometry a Tracer marches through.
type TracerConfig struct {
	GroundY        float64
	CanvasWidth    float64
	ObserverRadius float64
	BaseStep       float64
	// StepScale divides BaseStep; the presentation layer passes its zoom so
	// zoomed-in views march in finer steps.
	StepScale float64
}

// DefaultTracerConfig returns the demo geometry at zoom 1.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		GroundY:        model.GroundY,
		CanvasWidth:    model.CanvasWidth,
		ObserverRadius: model.ObserverRadius,
		BaseStep:       DefaultBaseStep,
		StepScale:      1,
	}
}

// PathSegment is a run of marched points drawn with one style.
type PathSegment struct {
	Points   []model.Point
	Shadowed bool
}

// Reflection marks a boundary crossing where a reflected ray should be
// drawn. It does not alter the continuing ray.
type Reflection struct {
	At       model.Point
	Heading  float64
	Strength float64
}

// BoundaryCrossing records the optics evaluated at a layer boundary.
// Reflectance is informational: it does not attenuate the ray.
type BoundaryCrossing struct {
	At          model.Point
	FromIndex   float64
	ToIndex     float64
	Incident    float64
	Reflectance float64
	HeadingIn   float64
	HeadingOut  float64
}

// TerrainContact records where a ray was absorbed by terrain together with
// the incident/refracted angle pair computed at the surface. The angles are
// diagnostics only.
type TerrainContact struct {
	At        model.Point
	Incident  float64
	Refracted float64
}

// TraceResult is everything one ray march produces.
type TraceResult struct {
	TargetX     float64
	Path        []model.Point
	Segments    []PathSegment
	Hit         *model.ObserverHit
	Reflections []Reflection
	Crossings   []BoundaryCrossing
	Contact     *TerrainContact
	Shadowed    bool
	// Discarded is set for rays whose initial heading points upward; they
	// have no path and no hit.
	Discarded bool
}

// Tracer marches individual rays through a layered medium.
type Tracer struct {
	cfg TracerConfig
}

// NewTracer constructs a Tracer, filling zero-valued config fields with defaults.
func NewTracer(cfg TracerConfig) *Tracer {
	def := DefaultTracerConfig()
	if cfg.GroundY == 0 {
		cfg.GroundY = def.GroundY
	}
	if cfg.CanvasWidth <= 0 {
		cfg.CanvasWidth = def.CanvasWidth
	}
	if cfg.ObserverRadius <= 0 {
		cfg.ObserverRadius = def.ObserverRadius
	}
	if cfg.BaseStep <= 0 {
		cfg.BaseStep = def.BaseStep
	}
	if cfg.StepScale <= 0 || !finite(cfg.StepScale) {
		cfg.StepScale = def.StepScale
	}
	return &Tracer{cfg: cfg}
}

// Config returns the tracer's configuration.
func (t *Tracer) Config() TracerConfig { return t.cfg }

// WithStepScale returns a copy of the tracer marching at a different scale.
func (t *Tracer) WithStepScale(scale float64) *Tracer {
	cfg := t.cfg
	cfg.StepScale = scale
	return NewTracer(cfg)
}

// StepLength is the distance covered by one march step.
func (t *Tracer) StepLength() float64 {
	return t.cfg.BaseStep / t.cfg.StepScale
}

// inBounds reports whether the march may continue from p.
func (t *Tracer) inBounds(p model.Point) bool {
	return p.Y < t.cfg.GroundY && p.Y >= 0 && p.X >= 0 && p.X <= t.cfg.CanvasWidth
}

// pathBuilder accumulates segments while marching.
type pathBuilder struct {
	segments []PathSegment
	current  PathSegment
}

func (b *pathBuilder) start(p model.Point, shadowed bool) {
	b.current = PathSegment{Points: []model.Point{p}, Shadowed: shadowed}
}

func (b *pathBuilder) add(p model.Point) {
	n := len(b.current.Points)
	if n > 0 && b.current.Points[n-1] == p {
		return
	}
	b.current.Points = append(b.current.Points, p)
}

func (b *pathBuilder) close() {
	if len(b.current.Points) > 1 {
		b.segments = append(b.segments, b.current)
	}
	b.current = PathSegment{}
}

// Trace marches one ray from source towards (targetX, ground). The ray bends
// at every layer boundary of medium, is absorbed by the first obstacle it
// enters and, if its final step starts inside the observer's capture disc,
// yields an ObserverHit.
//
// emitReflection selects whether boundary reflections are recorded for this
// ray; callers use it to thin out reflection drawing.
func (t *Tracer) Trace(
	source model.Point,
	targetX float64,
	medium *LayeredMedium,
	obstacles *ShelfIndex,
	observer model.Point,
	emitReflection bool,
) TraceResult {
	res := TraceResult{TargetX: targetX}

	heading := math.Atan2(t.cfg.GroundY-source.Y, targetX-source.X)
	if heading < 0 || !finite(heading, source.X, source.Y) {
		res.Discarded = true
		return res
	}

	step := t.StepLength()
	pos := source
	res.Path = append(res.Path, pos)

	var path pathBuilder
	path.start(pos, false)

	index := medium.IndexAt(pos.Y)
	shadowed := false

	for t.inBounds(pos) {
		next := advance(pos, heading, step)

		nextIndex := medium.IndexAt(next.Y)
		if math.Abs(nextIndex-index) > IndexEpsilon {
			path.close()
			if !shadowed {
				incident := heading - upwardNormal
				crossing := BoundaryCrossing{
					At:          pos,
					FromIndex:   index,
					ToIndex:     nextIndex,
					Incident:    incident,
					Reflectance: FresnelReflectance(index, nextIndex, math.Abs(math.Cos(incident))),
					HeadingIn:   heading,
				}

				if strength := reflectionStrength(incident); strength > ReflectionThreshold && emitReflection {
					res.Reflections = append(res.Reflections, Reflection{
						At:       pos,
						Heading:  -heading,
						Strength: strength,
					})
				}

				heading = RefractedHeading(index, nextIndex, incident, heading)
				index = nextIndex

				crossing.HeadingOut = heading
				res.Crossings = append(res.Crossings, crossing)
			}
			path.start(pos, shadowed)
		}

		if !shadowed {
			if stop, obstacle, ok := obstacles.firstOcclusion(pos, next); ok {
				path.add(stop)
				path.close()
				if obstacle.Kind() == ObstacleTerrain {
					res.Contact = terrainContact(medium, pos, stop)
				}
				shadowed = true
				res.Shadowed = true
				path.start(pos, true)
			}
		}

		pos = next
		path.add(pos)
		res.Path = append(res.Path, pos)
	}
	path.close()
	res.Segments = path.segments

	// A ray that never left its source has no final step to test.
	if len(res.Path) > 1 {
		res.Hit = t.observerHit(pos, heading, step, observer)
	}
	return res
}

// observerHit tests the final step against the observer disc. Only the
// distance from the step's start point is compared with the radius.
func (t *Tracer) observerHit(end model.Point, heading, step float64, observer model.Point) *model.ObserverHit {
	start := advance(end, heading, -step)
	if Distance(start, observer) >= t.cfg.ObserverRadius {
		return nil
	}

	d := r2.Sub(end, start)
	length := r2.Norm(d)
	if length == 0 || !finite(length) {
		return nil
	}
	return &model.ObserverHit{
		X:       end.X,
		Y:       end.Y,
		NormalX: -d.X / length,
		NormalY: -d.Y / length,
	}
}

// firstOcclusion walks every shelf the step's end has reached, highest
// first, testing clouds before terrain on each shelf.
func (s *ShelfIndex) firstOcclusion(start, end model.Point) (model.Point, Obstacle, bool) {
	if s == nil {
		return model.Point{}, nil, false
	}
	for _, sh := range s.shelves {
		if end.Y < sh.y {
			// Shelves are ascending; no deeper shelf has been reached either.
			break
		}
		for _, c := range sh.clouds {
			if stop, ok := c.Occlude(start, end); ok {
				return stop, c, true
			}
		}
		for _, tr := range sh.terrain {
			if stop, ok := tr.Occlude(start, end); ok {
				return stop, tr, true
			}
		}
	}
	return model.Point{}, nil, false
}

// terrainContact evaluates the surface angles at a terrain hit, treating the
// ground as a flat surface below air of index 1. Out-of-domain inputs leave
// the refracted angle equal to the incident one.
func terrainContact(medium *LayeredMedium, from, hit model.Point) *TerrainContact {
	contact := &TerrainContact{At: hit}

	dist := math.Hypot(from.X-hit.X, from.Y-hit.Y)
	if dist == 0 {
		return contact
	}
	cosIncident := (from.Y - hit.Y) / dist
	if cosIncident < -1 || cosIncident > 1 {
		return contact
	}
	contact.Incident = math.Acos(cosIncident)
	contact.Refracted = contact.Incident

	n1 := medium.IndexAt(hit.Y)
	const n2 = 1.0
	if sinT := n1 / n2 * math.Sin(contact.Incident); math.Abs(sinT) <= 1 {
		contact.Refracted = math.Asin(sinT)
	}
	return contact
}

// GroundTargets spreads rayCount target x-coordinates evenly across visible,
// starting at its left edge.
func GroundTargets(visible model.GroundRange, rayCount int) []float64 {
	if rayCount <= 0 {
		return nil
	}
	spacing := visible.Width() / float64(rayCount)
	targets := make([]float64, rayCount)
	for i := range targets {
		targets[i] = visible.Left + float64(i)*spacing
	}
	return targets
}

package core

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/signalsfoundry/refraction-simulator/model"
)

// ObstacleKind distinguishes the obstacle variants.
type ObstacleKind int

const (
	ObstacleTerrain ObstacleKind = iota
	ObstacleCloud
)

func (k ObstacleKind) String() string {
	switch k {
	case ObstacleTerrain:
		return "terrain"
	case ObstacleCloud:
		return "cloud"
	default:
		return fmt.Sprintf("ObstacleKind(%d)", int(k))
	}
}

// Obstacle is a shape that can absorb a marching ray.
//
// Both variants use deliberately coarse tests; they decide per ray step, not
// by exact segment/shape intersection.
type Obstacle interface {
	Kind() ObstacleKind
	// Shelf is the Y coordinate a ray must reach before this obstacle is
	// considered at all.
	Shelf() float64
	// Intersect tests one ray step from start to end.
	Intersect(start, end model.Point) (model.Point, bool)
	// Occlude reports where the visible path stops when the step from start
	// to end is absorbed by the obstacle.
	Occlude(start, end model.Point) (model.Point, bool)
}

// Terrain is a triangular mountain standing on the ground line.
type Terrain struct {
	X       float64
	Width   float64
	Height  float64
	GroundY float64
}

func (t *Terrain) Kind() ObstacleKind { return ObstacleTerrain }

// Shelf returns the Y coordinate of the apex.
func (t *Terrain) Shelf() float64 { return t.GroundY - t.Height }

// Apex returns the peak of the triangle.
func (t *Terrain) Apex() model.Point {
	return model.Pt(t.X+t.Width/2, t.GroundY-t.Height)
}

// Spans reports whether x lies within the base of the triangle.
func (t *Terrain) Spans(x float64) bool {
	return x >= t.X && x <= t.X+t.Width
}

// EdgeY returns the Y of the triangle's surface at x (left flank up to the
// apex, right flank after it).
func (t *Terrain) EdgeY(x float64) float64 {
	apex := t.Apex()
	if x <= apex.X {
		leftSlope := (apex.Y - t.GroundY) / (apex.X - t.X)
		return t.GroundY + leftSlope*(x-t.X)
	}
	rightSlope := (apex.Y - t.GroundY) / (apex.X - (t.X + t.Width))
	return t.GroundY + rightSlope*(x-(t.X+t.Width))
}

// Intersect returns the surface point below the step's end when the end has
// penetrated the triangle.
func (t *Terrain) Intersect(_, end model.Point) (model.Point, bool) {
	if !t.Spans(end.X) || t.Width == 0 {
		return model.Point{}, false
	}
	edge := t.EdgeY(end.X)
	if end.Y >= edge {
		return model.Pt(end.X, edge), true
	}
	return model.Point{}, false
}

// Occlude is Intersect: the path ends on the mountain surface.
func (t *Terrain) Occlude(start, end model.Point) (model.Point, bool) {
	return t.Intersect(start, end)
}

// Cloud is an axis-aligned (rounded when drawn) rectangle.
type Cloud struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (c *Cloud) Kind() ObstacleKind { return ObstacleCloud }

// Shelf returns the top edge of the cloud.
func (c *Cloud) Shelf() float64 { return c.Y }

// Contains reports whether p lies inside the rectangle, edges included.
func (c *Cloud) Contains(p model.Point) bool {
	return p.X >= c.X && p.X <= c.X+c.Width &&
		p.Y >= c.Y && p.Y <= c.Y+c.Height
}

// Intersect returns start when start already lies inside the cloud.
func (c *Cloud) Intersect(start, _ model.Point) (model.Point, bool) {
	if c.Contains(start) {
		return start, true
	}
	return model.Point{}, false
}

// Occlude fires when the step enters the cloud; the visible path stops at the
// step's start.
func (c *Cloud) Occlude(start, end model.Point) (model.Point, bool) {
	if c.Contains(end) {
		return start, true
	}
	return model.Point{}, false
}

// ObstacleConfig controls random obstacle generation.
type ObstacleConfig struct {
	TerrainCount int     `json:"terrain_count"`
	CloudCount   int     `json:"cloud_count"`
	GroundY      float64 `json:"-"`
	EarthWidth   float64 `json:"-"`
}

// DefaultObstacleConfig matches the demo's population of 38 mountains and 32 clouds.
func DefaultObstacleConfig() ObstacleConfig {
	return ObstacleConfig{
		TerrainCount: 38,
		CloudCount:   32,
		GroundY:      model.GroundY,
		EarthWidth:   model.EarthWidth,
	}
}

// ObstacleField owns every obstacle of a scene. Clouds are always tested
// before terrain sharing the same shelf.
type ObstacleField struct {
	Terrain []*Terrain
	Clouds  []*Cloud
	// Moon is the user-draggable cloud; it is also a member of Clouds.
	Moon *Cloud
}

// GenerateObstacleField samples terrain and cloud shapes from rng. The first
// cloud is turned into the moon: a sun-sized square 50 px below sunY.
func GenerateObstacleField(rng *rand.Rand, cfg ObstacleConfig, sunY float64) *ObstacleField {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if cfg.GroundY == 0 {
		cfg.GroundY = model.GroundY
	}
	if cfg.EarthWidth == 0 {
		cfg.EarthWidth = model.EarthWidth
	}

	field := &ObstacleField{
		Terrain: make([]*Terrain, 0, cfg.TerrainCount),
		Clouds:  make([]*Cloud, 0, cfg.CloudCount),
	}

	for i := 0; i < cfg.TerrainCount; i++ {
		height := 1.2 + rng.Float64()*3
		width := 3 + height*3
		field.Terrain = append(field.Terrain, &Terrain{
			X:       rng.Float64() * (cfg.EarthWidth - width),
			Width:   width,
			Height:  height,
			GroundY: cfg.GroundY,
		})
	}

	for i := 0; i < cfg.CloudCount; i++ {
		width := 5 + rng.Float64()*15
		height := 0.5 + rng.Float64()*0.5
		field.Clouds = append(field.Clouds, &Cloud{
			X:      rng.Float64() * (cfg.EarthWidth - width),
			Y:      cfg.GroundY - (2 + rng.Float64()*2),
			Width:  width,
			Height: height,
		})
	}

	if len(field.Clouds) > 0 {
		moon := field.Clouds[0]
		moon.Width = model.SunRadius * 2
		moon.Height = model.SunRadius * 2
		moon.X = 400
		moon.Y = sunY + 50
		field.Moon = moon
	}

	return field
}

// MoveMoon repositions the moon, clamped so it stays on the canvas and above
// the ground.
func (f *ObstacleField) MoveMoon(p model.Point) bool {
	if f == nil || f.Moon == nil {
		return false
	}
	f.Moon.X = clamp(p.X, 0, model.CanvasWidth-f.Moon.Width)
	f.Moon.Y = clamp(p.Y, 0, model.GroundY-f.Moon.Height)
	return true
}

// Len returns the number of obstacles.
func (f *ObstacleField) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Terrain) + len(f.Clouds)
}

// shelf groups the obstacles whose shelves share one Y value.
type shelf struct {
	y       float64
	clouds  []*Cloud
	terrain []*Terrain
}

// ShelfIndex is the per-frame ordering of obstacle shelves, ascending by Y
// (highest in the sky first).
type ShelfIndex struct {
	shelves []shelf
}

// Shelves builds the ascending shelf ordering. It is recomputed every frame
// because the moon may have moved.
func (f *ObstacleField) Shelves() *ShelfIndex {
	idx := &ShelfIndex{}
	if f == nil {
		return idx
	}

	byY := make(map[float64]*shelf)
	get := func(y float64) *shelf {
		s, ok := byY[y]
		if !ok {
			s = &shelf{y: y}
			byY[y] = s
		}
		return s
	}
	for _, c := range f.Clouds {
		s := get(c.Shelf())
		s.clouds = append(s.clouds, c)
	}
	for _, t := range f.Terrain {
		s := get(t.Shelf())
		s.terrain = append(s.terrain, t)
	}

	idx.shelves = make([]shelf, 0, len(byY))
	for _, s := range byY {
		idx.shelves = append(idx.shelves, *s)
	}
	sort.Slice(idx.shelves, func(a, b int) bool { return idx.shelves[a].y < idx.shelves[b].y })
	return idx
}

// Ys returns the sorted shelf heights.
func (s *ShelfIndex) Ys() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.shelves))
	for i, sh := range s.shelves {
		out[i] = sh.y
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return max(lo, min(hi, v))
}

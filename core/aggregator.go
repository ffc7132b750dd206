package core

import (
	"math"
	"math/rand"
	"sort"

	"github.com/signalsfoundry/refraction-simulator/model"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MaxObserverHits bounds the number of hits kept between resets.
	MaxObserverHits = 10
	// SpreadExtension lengthens drawn view vectors past the apparent source.
	SpreadExtension = 1.3
)

// HitAggregator keeps a bounded, x-ordered sample of observer hits and
// reconstructs the apparent source from its two extremal members.
//
// When the cap is exceeded one interior hit is evicted uniformly at random,
// so the leftmost and rightmost hits always survive.
//
// HitAggregator is not safe for concurrent use; the engine serialises access.
type HitAggregator struct {
	hits []model.ObserverHit
	rng  *rand.Rand
}

// NewHitAggregator constructs an aggregator drawing evictions from rng.
func NewHitAggregator(rng *rand.Rand) *HitAggregator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &HitAggregator{
		hits: make([]model.ObserverHit, 0, MaxObserverHits+1),
		rng:  rng,
	}
}

// Record inserts hit keeping the sequence sorted by X, then enforces the cap.
func (a *HitAggregator) Record(hit model.ObserverHit) {
	i := sort.Search(len(a.hits), func(i int) bool { return a.hits[i].X > hit.X })
	a.hits = append(a.hits, model.ObserverHit{})
	copy(a.hits[i+1:], a.hits[i:])
	a.hits[i] = hit

	if len(a.hits) > MaxObserverHits {
		victim := 1 + a.rng.Intn(len(a.hits)-2)
		a.hits = append(a.hits[:victim], a.hits[victim+1:]...)
	}
}

// Reset discards every recorded hit.
func (a *HitAggregator) Reset() {
	a.hits = a.hits[:0]
}

// Len returns the number of recorded hits.
func (a *HitAggregator) Len() int { return len(a.hits) }

// Hits returns a copy of the recorded hits, ascending by X.
func (a *HitAggregator) Hits() []model.ObserverHit {
	return append([]model.ObserverHit(nil), a.hits...)
}

// ApparentSource intersects the back-direction lines of the leftmost and
// rightmost hits. It reports false with fewer than two hits or when the two
// lines have the same slope.
func (a *HitAggregator) ApparentSource() (model.ApparentSource, bool) {
	return ApparentSourceOf(a.hits)
}

// Extensions returns the recorded hits extended by spread along their
// back-directions.
func (a *HitAggregator) Extensions(spread float64) []ViewVector {
	return ViewVectors(a.hits, spread)
}

// ApparentSourceOf computes the apparent source for hits already sorted by X.
func ApparentSourceOf(hits []model.ObserverHit) (model.ApparentSource, bool) {
	if len(hits) < 2 {
		return model.ApparentSource{}, false
	}
	v1 := hits[0]
	v2 := hits[len(hits)-1]

	m1 := v1.NormalY / v1.NormalX
	m2 := v2.NormalY / v2.NormalX
	if !finite(m1, m2) || m1 == m2 {
		return model.ApparentSource{}, false
	}

	x := (m1*v1.X - m2*v2.X + v2.Y - v1.Y) / (m1 - m2)
	y := m1*(x-v1.X) + v1.Y
	if !finite(x, y) {
		return model.ApparentSource{}, false
	}

	pos := model.Pt(x, y)
	return model.ApparentSource{
		Position: pos,
		Spread:   Distance(pos, v1.Position()) * SpreadExtension,
	}, true
}

// ViewVector is a hit extended along its back-direction for drawing.
type ViewVector struct {
	From model.Point
	To   model.Point
}

// ViewVectors extends every hit by spread along its back-direction.
func ViewVectors(hits []model.ObserverHit, spread float64) []ViewVector {
	if spread <= 0 || math.IsNaN(spread) {
		return nil
	}
	out := make([]ViewVector, 0, len(hits))
	for _, h := range hits {
		from := h.Position()
		out = append(out, ViewVector{
			From: from,
			To:   r2.Add(from, r2.Scale(spread, h.Normal())),
		})
	}
	return out
}

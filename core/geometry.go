package core

import (
	"math"

	"github.com/signalsfoundry/refraction-simulator/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// headingVector returns the unit vector for a travel angle. Angles follow the
// canvas convention: Y grows downward, so a heading of π/2 points straight down.
func headingVector(heading float64) model.Point {
	return model.Pt(math.Cos(heading), math.Sin(heading))
}

// advance moves p by length along heading.
func advance(p model.Point, heading, length float64) model.Point {
	return r2.Add(p, r2.Scale(length, headingVector(heading)))
}

// Distance returns the straight-line distance between two points.
func Distance(a, b model.Point) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// ElevationDegrees returns the elevation of target as seen from observer, in
// degrees above the local horizon. 0° = horizon, 90° = overhead.
func ElevationDegrees(observer, target model.Point) float64 {
	v := r2.Sub(target, observer)
	if r2.Norm(v) == 0 {
		return 90
	}
	// Up is -Y on the canvas.
	return math.Atan2(-v.Y, math.Abs(v.X)) * 180.0 / math.Pi
}

// BearingDegrees returns the direction of target from observer measured from
// the +X axis towards up, in degrees within (-180, 180].
func BearingDegrees(observer, target model.Point) float64 {
	v := r2.Sub(target, observer)
	b := math.Atan2(-v.Y, v.X) * 180.0 / math.Pi
	// atan2(-0, x<0) is -180.
	if b <= -180 {
		b += 360
	}
	return b
}

// finite reports whether every argument is a finite number.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

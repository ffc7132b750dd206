package model

import "gonum.org/v1/gonum/spatial/r2"

// Point is a position in world coordinates (simulation pixels, 1 px = 10 km).
// It aliases gonum's planar vector so r2.Add, r2.Sub, r2.Norm etc. apply directly.
type Point = r2.Vec

// Pt is shorthand for constructing a Point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

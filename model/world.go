package model

// World dimensions shared by the engine, the renderer and the control surface.
// Positive Y points down: the ground line sits near the bottom of the canvas.
const (
	CanvasWidth    = 1300.0
	CanvasHeight   = 1000.0
	EarthHeight    = 50.0
	EarthWidth     = 1200.0 // 12000 km
	SunRadius      = 5.0
	ObserverRadius = 5.0
	ObserverHeight = 2.0

	// KmPerPixel converts world units to kilometres for labels and logs.
	KmPerPixel = 10.0
)

// GroundY is the world Y coordinate of the ground surface.
const GroundY = CanvasHeight - EarthHeight

// DefaultSunPosition places the sun over the canvas centre, 5000 km up.
func DefaultSunPosition() Point {
	return Pt(CanvasWidth/2, GroundY-500)
}

// DefaultObserverPosition places the observer over the canvas centre, just above ground.
func DefaultObserverPosition() Point {
	return Pt(CanvasWidth/2, GroundY-ObserverHeight)
}

// GroundRange is a horizontal span of the ground plane.
type GroundRange struct {
	Left  float64
	Right float64
}

// Width returns Right-Left.
func (g GroundRange) Width() float64 { return g.Right - g.Left }

package model

// ObserverHit records a ray that terminated inside the observer's capture
// disc. NormalX/NormalY is the unit vector pointing back along the ray's final
// direction of travel, i.e. towards where the light appears to come from.
type ObserverHit struct {
	X       float64
	Y       float64
	NormalX float64
	NormalY float64
}

// Position returns the hit location as a Point.
func (h ObserverHit) Position() Point { return Pt(h.X, h.Y) }

// Normal returns the back-direction as a Point.
func (h ObserverHit) Normal() Point { return Pt(h.NormalX, h.NormalY) }

// ApparentSource is the reconstructed position the sun appears to occupy.
// Spread is the extrapolation length used when drawing view vectors.
type ApparentSource struct {
	Position Point
	Spread   float64
}

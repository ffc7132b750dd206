package core

import "math"

// FresnelReflectance returns the unpolarised Fresnel reflectance for light
// passing from index n1 into index n2 with the given incident cosine. Total
// internal reflection yields exactly 1.
func FresnelReflectance(n1, n2, cosI float64) float64 {
	if n2 == 0 {
		return 1.0
	}
	r := n1 / n2
	sinT2 := r * r * (1.0 - cosI*cosI)
	if sinT2 >= 1.0 {
		return 1.0
	}

	cosT := math.Sqrt(1.0 - sinT2)
	rsDen := n1*cosI + n2*cosT
	rpDen := n1*cosT + n2*cosI
	if rsDen == 0 || rpDen == 0 {
		// Grazing incidence from both sides: everything is reflected.
		return 1.0
	}
	rs := (n1*cosI - n2*cosT) / rsDen
	rp := (n1*cosT - n2*cosI) / rpDen

	return (rs*rs + rp*rp) / 2.0
}

// RefractedHeading applies Snell's law at a horizontal boundary. incident is
// the angle between the ray and the upward normal; heading is the current
// travel angle (straight down is π/2). When no transmitted angle exists the
// current heading is returned unchanged.
func RefractedHeading(n1, n2, incident, heading float64) float64 {
	if n2 == 0 {
		return heading
	}
	sinT := n1 * math.Sin(incident) / n2
	if math.IsNaN(sinT) || math.Abs(sinT) > 1 {
		return heading
	}
	return math.Pi/2 - math.Asin(sinT)
}

// reflectionStrength is the cheap stand-in for reflectance used to decide
// whether a reflected ray is worth drawing.
func reflectionStrength(incident float64) float64 {
	return math.Abs(math.Sin(incident))
}

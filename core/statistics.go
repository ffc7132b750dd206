package core

import (
	"math"

	"github.com/signalsfoundry/refraction-simulator/model"
	"gonum.org/v1/gonum/stat"
)

// HitStatistics summarises the arrival directions of observer hits.
type HitStatistics struct {
	Count int
	// MeanElevationDeg and StdDevElevationDeg describe the elevation of the
	// back-directions above the horizon, in degrees.
	MeanElevationDeg   float64
	StdDevElevationDeg float64
	// TrueElevationDeg is the sun's geometric elevation from the observer.
	TrueElevationDeg float64
	// ApparentElevationDeg is the elevation of the reconstructed apparent
	// source; only meaningful when HasApparent is set.
	ApparentElevationDeg float64
	HasApparent          bool
}

// Lift is how far refraction raised the apparent sun above the true one.
func (s HitStatistics) Lift() float64 {
	if !s.HasApparent {
		return 0
	}
	return s.ApparentElevationDeg - s.TrueElevationDeg
}

// ComputeHitStatistics derives arrival-angle statistics for hits as seen from
// observer looking at the true sun.
func ComputeHitStatistics(hits []model.ObserverHit, observer, sun model.Point) HitStatistics {
	st := HitStatistics{
		Count:            len(hits),
		TrueElevationDeg: ElevationDegrees(observer, sun),
	}
	if len(hits) == 0 {
		return st
	}

	elevations := make([]float64, 0, len(hits))
	for _, h := range hits {
		// NormalY < 0 points up the canvas.
		elevations = append(elevations, math.Atan2(-h.NormalY, math.Abs(h.NormalX))*180/math.Pi)
	}
	if len(elevations) == 1 {
		st.MeanElevationDeg = elevations[0]
	} else {
		st.MeanElevationDeg, st.StdDevElevationDeg = stat.MeanStdDev(elevations, nil)
	}

	if apparent, ok := ApparentSourceOf(hits); ok {
		st.ApparentElevationDeg = ElevationDegrees(observer, apparent.Position)
		st.HasApparent = true
	}
	return st
}

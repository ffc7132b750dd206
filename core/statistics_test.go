package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/model"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestComputeHitStatistics(t *testing.T) {
	s := math.Sqrt2 / 2
	observer := model.Pt(150, 948)
	sun := model.Pt(150, 448)
	hits := []model.ObserverHit{
		{X: 100, Y: 950, NormalX: s, NormalY: -s},
		{X: 150, Y: 950, NormalX: 0, NormalY: -1},
		{X: 200, Y: 950, NormalX: -s, NormalY: -s},
	}

	st := ComputeHitStatistics(hits, observer, sun)
	if st.Count != 3 {
		t.Fatalf("Count = %d", st.Count)
	}
	if !scalar.EqualWithinAbs(st.MeanElevationDeg, 60, 1e-9) {
		t.Fatalf("mean elevation = %v, want 60", st.MeanElevationDeg)
	}
	if !scalar.EqualWithinAbs(st.StdDevElevationDeg, math.Sqrt(675), 1e-9) {
		t.Fatalf("elevation stddev = %v, want %v", st.StdDevElevationDeg, math.Sqrt(675))
	}
	if !scalar.EqualWithinAbs(st.TrueElevationDeg, 90, 1e-9) {
		t.Fatalf("true elevation = %v, want 90", st.TrueElevationDeg)
	}
	if !st.HasApparent {
		t.Fatalf("expected an apparent source")
	}
}

func TestComputeHitStatistics_Empty(t *testing.T) {
	st := ComputeHitStatistics(nil, model.DefaultObserverPosition(), model.DefaultSunPosition())
	if st.Count != 0 || st.HasApparent || st.Lift() != 0 {
		t.Fatalf("unexpected statistics for no hits: %+v", st)
	}
}

func TestElevationAndBearing(t *testing.T) {
	o := model.Pt(0, 0)
	if got := ElevationDegrees(o, model.Pt(10, -10)); !scalar.EqualWithinAbs(got, 45, 1e-9) {
		t.Fatalf("ElevationDegrees = %v, want 45", got)
	}
	if got := ElevationDegrees(o, o); got != 90 {
		t.Fatalf("ElevationDegrees at the observer = %v, want 90", got)
	}
	if got := BearingDegrees(o, model.Pt(-10, 0)); !scalar.EqualWithinAbs(got, 180, 1e-9) {
		t.Fatalf("BearingDegrees = %v, want 180", got)
	}
}

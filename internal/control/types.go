package control

import (
	"fmt"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/protobuf/types/known/structpb"
)

// FrameSummary is the wire view of a traced frame.
type FrameSummary struct {
	Frame     uint64
	Dropped   bool
	Rays      int
	Lit       int
	Shadowed  int
	Discarded int
	Hits      int
	Apparent  *model.ApparentSource

	MeanElevationDeg   float64
	StdDevElevationDeg float64
	TrueElevationDeg   float64
	LiftDeg            float64
}

// ApparentReport is the wire view of the apparent-source reconstruction.
type ApparentReport struct {
	Source               model.ApparentSource
	TrueElevationDeg     float64
	ApparentElevationDeg float64
	LiftDeg              float64
	Hits                 int
}

// SceneReport is the wire view of the scene parameters.
type SceneReport struct {
	Sun      model.Point
	Observer model.Point
	Moon     *model.Point
	Layers   model.LayerConfig
	ViewX    float64
	Zoom     float64
	RayCount int
	Hits     int
	Frames   uint64
}

// SummarizeFrame converts an engine frame.
func SummarizeFrame(f *core.Frame, dropped bool) FrameSummary {
	if f == nil {
		return FrameSummary{Dropped: dropped}
	}
	return FrameSummary{
		Frame:              f.Index,
		Dropped:            dropped,
		Rays:               f.Stats.Rays,
		Lit:                f.Stats.Lit,
		Shadowed:           f.Stats.Shadowed,
		Discarded:          f.Stats.Discarded,
		Hits:               f.Stats.HitCount,
		Apparent:           f.Apparent,
		MeanElevationDeg:   f.Stats.Hit.MeanElevationDeg,
		StdDevElevationDeg: f.Stats.Hit.StdDevElevationDeg,
		TrueElevationDeg:   f.Stats.Hit.TrueElevationDeg,
		LiftDeg:            f.Stats.Hit.Lift(),
	}
}

// ToStruct encodes the summary.
func (s FrameSummary) ToStruct() (*structpb.Struct, error) {
	m := map[string]interface{}{
		"frame":                float64(s.Frame),
		"dropped":              s.Dropped,
		"rays":                 s.Rays,
		"lit":                  s.Lit,
		"shadowed":             s.Shadowed,
		"discarded":            s.Discarded,
		"hits":                 s.Hits,
		"mean_elevation_deg":   s.MeanElevationDeg,
		"stddev_elevation_deg": s.StdDevElevationDeg,
		"true_elevation_deg":   s.TrueElevationDeg,
		"lift_deg":             s.LiftDeg,
	}
	if s.Apparent != nil {
		m["apparent"] = map[string]interface{}{
			"x":      s.Apparent.Position.X,
			"y":      s.Apparent.Position.Y,
			"spread": s.Apparent.Spread,
		}
	}
	return structpb.NewStruct(m)
}

// FrameSummaryFromStruct decodes a summary produced by ToStruct.
func FrameSummaryFromStruct(st *structpb.Struct) (FrameSummary, error) {
	if st == nil {
		return FrameSummary{}, fmt.Errorf("%w: empty frame summary", ErrInvalidRequest)
	}
	f := st.GetFields()
	s := FrameSummary{
		Frame:              uint64(f["frame"].GetNumberValue()),
		Dropped:            f["dropped"].GetBoolValue(),
		Rays:               int(f["rays"].GetNumberValue()),
		Lit:                int(f["lit"].GetNumberValue()),
		Shadowed:           int(f["shadowed"].GetNumberValue()),
		Discarded:          int(f["discarded"].GetNumberValue()),
		Hits:               int(f["hits"].GetNumberValue()),
		MeanElevationDeg:   f["mean_elevation_deg"].GetNumberValue(),
		StdDevElevationDeg: f["stddev_elevation_deg"].GetNumberValue(),
		TrueElevationDeg:   f["true_elevation_deg"].GetNumberValue(),
		LiftDeg:            f["lift_deg"].GetNumberValue(),
	}
	if app := f["apparent"].GetStructValue(); app != nil {
		af := app.GetFields()
		s.Apparent = &model.ApparentSource{
			Position: model.Pt(af["x"].GetNumberValue(), af["y"].GetNumberValue()),
			Spread:   af["spread"].GetNumberValue(),
		}
	}
	return s, nil
}

// ToStruct encodes the report.
func (r ApparentReport) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"x":                      r.Source.Position.X,
		"y":                      r.Source.Position.Y,
		"spread":                 r.Source.Spread,
		"true_elevation_deg":     r.TrueElevationDeg,
		"apparent_elevation_deg": r.ApparentElevationDeg,
		"lift_deg":               r.LiftDeg,
		"hits":                   r.Hits,
	})
}

// ApparentReportFromStruct decodes a report produced by ToStruct.
func ApparentReportFromStruct(st *structpb.Struct) (ApparentReport, error) {
	if st == nil {
		return ApparentReport{}, fmt.Errorf("%w: empty apparent-source report", ErrInvalidRequest)
	}
	f := st.GetFields()
	return ApparentReport{
		Source: model.ApparentSource{
			Position: model.Pt(f["x"].GetNumberValue(), f["y"].GetNumberValue()),
			Spread:   f["spread"].GetNumberValue(),
		},
		TrueElevationDeg:     f["true_elevation_deg"].GetNumberValue(),
		ApparentElevationDeg: f["apparent_elevation_deg"].GetNumberValue(),
		LiftDeg:              f["lift_deg"].GetNumberValue(),
		Hits:                 int(f["hits"].GetNumberValue()),
	}, nil
}

// SceneReportFromSnapshot converts a state snapshot.
func SceneReportFromSnapshot(snap state.Snapshot) SceneReport {
	r := SceneReport{
		Sun:      snap.Sun,
		Observer: snap.Observer,
		Layers:   snap.Layers,
		ViewX:    snap.ViewX,
		Zoom:     snap.Zoom,
		RayCount: snap.RayCount,
		Hits:     snap.HitCount,
		Frames:   snap.Frames,
	}
	if snap.HasMoon {
		moon := snap.Moon
		r.Moon = &moon
	}
	return r
}

// ToStruct encodes the report.
func (r SceneReport) ToStruct() (*structpb.Struct, error) {
	m := map[string]interface{}{
		"sun":      pointMap(r.Sun),
		"observer": pointMap(r.Observer),
		"layers": map[string]interface{}{
			"count":        r.Layers.Count,
			"spacing":      r.Layers.Spacing,
			"top_index":    r.Layers.TopIndex,
			"bottom_index": r.Layers.BottomIndex,
		},
		"view_x":    r.ViewX,
		"zoom":      r.Zoom,
		"ray_count": r.RayCount,
		"hits":      r.Hits,
		"frames":    float64(r.Frames),
	}
	if r.Moon != nil {
		m["moon"] = pointMap(*r.Moon)
	}
	return structpb.NewStruct(m)
}

// SceneReportFromStruct decodes a report produced by ToStruct.
func SceneReportFromStruct(st *structpb.Struct) (SceneReport, error) {
	if st == nil {
		return SceneReport{}, fmt.Errorf("%w: empty scene report", ErrInvalidRequest)
	}
	f := st.GetFields()
	layers := f["layers"].GetStructValue().GetFields()
	r := SceneReport{
		Sun:      pointFromStruct(f["sun"].GetStructValue()),
		Observer: pointFromStruct(f["observer"].GetStructValue()),
		Layers: model.LayerConfig{
			Count:       int(layers["count"].GetNumberValue()),
			Spacing:     layers["spacing"].GetNumberValue(),
			TopIndex:    layers["top_index"].GetNumberValue(),
			BottomIndex: layers["bottom_index"].GetNumberValue(),
		},
		ViewX:    f["view_x"].GetNumberValue(),
		Zoom:     f["zoom"].GetNumberValue(),
		RayCount: int(f["ray_count"].GetNumberValue()),
		Hits:     int(f["hits"].GetNumberValue()),
		Frames:   uint64(f["frames"].GetNumberValue()),
	}
	if moon := f["moon"].GetStructValue(); moon != nil {
		p := pointFromStruct(moon)
		r.Moon = &p
	}
	return r, nil
}

func pointMap(p model.Point) map[string]interface{} {
	return map[string]interface{}{"x": p.X, "y": p.Y}
}

func pointStruct(p model.Point) (*structpb.Struct, error) {
	return structpb.NewStruct(pointMap(p))
}

func pointFromStruct(st *structpb.Struct) model.Point {
	f := st.GetFields()
	return model.Pt(f["x"].GetNumberValue(), f["y"].GetNumberValue())
}

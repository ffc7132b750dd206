package control

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	sim "github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service implements ControlServer on top of a SimulationState.
type Service struct {
	state *sim.SimulationState
	log   logging.Logger
}

var _ ControlServer = (*Service)(nil)

// NewService binds a control service to state.
func NewService(state *sim.SimulationState, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{state: state, log: log}
}

func (s *Service) ensureReady() error {
	if s == nil || s.state == nil {
		return ToStatusError(ErrNotReady)
	}
	return nil
}

// SetSource moves the sun and echoes its clamped position.
func (s *Service) SetSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	p, err := ValidatePointRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startBodySpan(ctx, "SetSource", model.SunID, p)
	sun, err := s.state.SetSource(ctx, p)
	endBodySpan(span, p, sun, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return respondPoint(sun)
}

// SetObserver moves the observer and echoes its clamped position.
func (s *Service) SetObserver(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	p, err := ValidatePointRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startBodySpan(ctx, "SetObserver", model.ObserverID, p)
	obs, err := s.state.SetObserver(ctx, p)
	endBodySpan(span, p, obs, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return respondPoint(obs)
}

// ConfigureLayers rebuilds the layered medium.
func (s *Service) ConfigureLayers(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	cfg, err := ValidateLayerRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startLayersSpan(ctx, cfg)
	err = s.state.ConfigureLayers(ctx, cfg)
	endSpan(span, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// MoveMoon drags the moon obstacle and echoes its clamped position.
func (s *Service) MoveMoon(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	p, err := ValidatePointRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startBodySpan(ctx, "MoveMoon", model.MoonID, p)
	moon, err := s.state.MoveMoon(ctx, p)
	endBodySpan(span, p, moon, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return respondPoint(moon)
}

// SetView pans and zooms. The response carries the clamped zoom and the
// visible ground range.
func (s *Service) SetView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	viewX, zoom, err := ValidateViewRequest(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	zoom, err = s.state.SetView(ctx, viewX, zoom)
	if err != nil {
		return nil, ToStatusError(err)
	}
	snap := s.state.Snapshot()
	visible := core.VisibleRange(snap.ViewX, snap.Zoom)
	st, err := structpb.NewStruct(map[string]interface{}{
		"view_x":        snap.ViewX,
		"zoom":          zoom,
		"visible_left":  visible.Left,
		"visible_right": visible.Right,
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

// ResetView restores the default pan and zoom.
func (s *Service) ResetView(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ResetView(ctx)
	return &emptypb.Empty{}, nil
}

// RenderFrame requests a frame through the state's frame limiter. When the
// request is dropped the previous frame is summarised with dropped=true.
func (s *Service) RenderFrame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	frame, ran := s.state.RequestFrame(ctx)
	if !ran {
		s.log.Debug(ctx, "frame request dropped by limiter")
	}
	if !ran && frame == nil {
		return nil, ToStatusError(fmt.Errorf("%w: frame request dropped before first frame", sim.ErrNoFrame))
	}
	st, err := SummarizeFrame(frame, !ran).ToStruct()
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

// GetApparentSource reconstructs the apparent sun from the recorded hits.
func (s *Service) GetApparentSource(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	src, stats, err := s.state.ApparentSource()
	if err != nil {
		return nil, ToStatusError(err)
	}
	st, err := ApparentReport{
		Source:               src,
		TrueElevationDeg:     stats.TrueElevationDeg,
		ApparentElevationDeg: stats.ApparentElevationDeg,
		LiftDeg:              stats.Lift(),
		Hits:                 stats.Count,
	}.ToStruct()
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

// ResetHits clears the recorded observer hits.
func (s *Service) ResetHits(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ResetHits(ctx)
	return &emptypb.Empty{}, nil
}

// GetScene returns the current scene parameters.
func (s *Service) GetScene(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	st, err := SceneReportFromSnapshot(s.state.Snapshot()).ToStruct()
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

func respondPoint(p model.Point) (*structpb.Struct, error) {
	st, err := pointStruct(p)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

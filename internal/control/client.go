package control

import (
	"context"

	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed wrapper over the SimulationControl service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invokePoint(ctx context.Context, method string, p model.Point, opts ...grpc.CallOption) (model.Point, error) {
	req, err := pointStruct(p)
	if err != nil {
		return model.Point{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return model.Point{}, err
	}
	return pointFromStruct(out), nil
}

// SetSource moves the sun and returns its clamped position.
func (c *Client) SetSource(ctx context.Context, p model.Point, opts ...grpc.CallOption) (model.Point, error) {
	return c.invokePoint(ctx, "SetSource", p, opts...)
}

// SetObserver moves the observer and returns its clamped position.
func (c *Client) SetObserver(ctx context.Context, p model.Point, opts ...grpc.CallOption) (model.Point, error) {
	return c.invokePoint(ctx, "SetObserver", p, opts...)
}

// MoveMoon drags the moon and returns its clamped position.
func (c *Client) MoveMoon(ctx context.Context, p model.Point, opts ...grpc.CallOption) (model.Point, error) {
	return c.invokePoint(ctx, "MoveMoon", p, opts...)
}

// ConfigureLayers rebuilds the server's layered medium.
func (c *Client) ConfigureLayers(ctx context.Context, cfg model.LayerConfig, opts ...grpc.CallOption) error {
	req, err := structpb.NewStruct(map[string]interface{}{
		"count":        cfg.Count,
		"spacing":      cfg.Spacing,
		"top_index":    cfg.TopIndex,
		"bottom_index": cfg.BottomIndex,
	})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, FullMethod("ConfigureLayers"), req, new(emptypb.Empty), opts...)
}

// SetView pans and zooms; it returns the clamped zoom and the visible range.
func (c *Client) SetView(ctx context.Context, viewX, zoom float64, opts ...grpc.CallOption) (float64, model.GroundRange, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"view_x": viewX, "zoom": zoom})
	if err != nil {
		return 0, model.GroundRange{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod("SetView"), req, out, opts...); err != nil {
		return 0, model.GroundRange{}, err
	}
	f := out.GetFields()
	return f["zoom"].GetNumberValue(), model.GroundRange{
		Left:  f["visible_left"].GetNumberValue(),
		Right: f["visible_right"].GetNumberValue(),
	}, nil
}

// ResetView restores the default pan and zoom.
func (c *Client) ResetView(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, FullMethod("ResetView"), new(emptypb.Empty), new(emptypb.Empty), opts...)
}

// ResetHits clears the recorded observer hits.
func (c *Client) ResetHits(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, FullMethod("ResetHits"), new(emptypb.Empty), new(emptypb.Empty), opts...)
}

// RenderFrame asks the server to trace a frame.
func (c *Client) RenderFrame(ctx context.Context, opts ...grpc.CallOption) (FrameSummary, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod("RenderFrame"), new(emptypb.Empty), out, opts...); err != nil {
		return FrameSummary{}, err
	}
	return FrameSummaryFromStruct(out)
}

// GetApparentSource fetches the reconstructed apparent sun.
func (c *Client) GetApparentSource(ctx context.Context, opts ...grpc.CallOption) (ApparentReport, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod("GetApparentSource"), new(emptypb.Empty), out, opts...); err != nil {
		return ApparentReport{}, err
	}
	return ApparentReportFromStruct(out)
}

// GetScene fetches the scene parameters.
func (c *Client) GetScene(ctx context.Context, opts ...grpc.CallOption) (SceneReport, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod("GetScene"), new(emptypb.Empty), out, opts...); err != nil {
		return SceneReport{}, err
	}
	return SceneReportFromStruct(out)
}

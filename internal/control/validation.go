package control

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/protobuf/types/known/structpb"
)

// numberField returns a required, finite numeric field of req.
func numberField(req *structpb.Struct, key string) (float64, error) {
	if req == nil {
		return 0, fmt.Errorf("%w: request body is required", ErrInvalidRequest)
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
	if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidRequest, key)
	}
	return n.NumberValue, nil
}

// optionalNumberField is numberField with a fallback for absent keys.
func optionalNumberField(req *structpb.Struct, key string, def float64) (float64, error) {
	if _, ok := req.GetFields()[key]; !ok {
		return def, nil
	}
	return numberField(req, key)
}

// intField returns a required integral field of req.
func intField(req *structpb.Struct, key string) (int, error) {
	f, err := numberField(req, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidRequest, key, f)
	}
	return int(f), nil
}

// ValidatePointRequest extracts {x, y} from req.
func ValidatePointRequest(req *structpb.Struct) (model.Point, error) {
	x, err := numberField(req, "x")
	if err != nil {
		return model.Point{}, err
	}
	y, err := numberField(req, "y")
	if err != nil {
		return model.Point{}, err
	}
	return model.Pt(x, y), nil
}

// ValidateLayerRequest extracts a layer configuration from req. Range checks
// are left to the state layer.
func ValidateLayerRequest(req *structpb.Struct) (model.LayerConfig, error) {
	count, err := intField(req, "count")
	if err != nil {
		return model.LayerConfig{}, err
	}
	spacing, err := numberField(req, "spacing")
	if err != nil {
		return model.LayerConfig{}, err
	}
	top, err := numberField(req, "top_index")
	if err != nil {
		return model.LayerConfig{}, err
	}
	bottom, err := numberField(req, "bottom_index")
	if err != nil {
		return model.LayerConfig{}, err
	}
	return model.LayerConfig{Count: count, Spacing: spacing, TopIndex: top, BottomIndex: bottom}, nil
}

// ValidateViewRequest extracts {view_x, zoom}; zoom defaults to 1.
func ValidateViewRequest(req *structpb.Struct) (viewX, zoom float64, err error) {
	if viewX, err = numberField(req, "view_x"); err != nil {
		return 0, 0, err
	}
	if zoom, err = optionalNumberField(req, "zoom", 1); err != nil {
		return 0, 0, err
	}
	if zoom <= 0 {
		return 0, 0, fmt.Errorf("%w: zoom must be positive, got %v", ErrInvalidRequest, zoom)
	}
	return viewX, zoom, nil
}

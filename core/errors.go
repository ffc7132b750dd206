package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/refraction-simulator/model"
)

var (
	// ErrInvalidLayerConfig indicates a layer configuration failed validation.
	ErrInvalidLayerConfig = errors.New("invalid layer config")
	// ErrInvalidPosition indicates a non-finite or otherwise unusable position.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrInvalidView indicates an unusable pan/zoom request.
	ErrInvalidView = errors.New("invalid view")
)

// ValidateLayerConfig checks the ranges the interactive controls enforce.
// The engine itself accepts any config and degrades an empty one to a
// uniform medium; callers at the edges use this to reject bad input early.
func ValidateLayerConfig(cfg model.LayerConfig) error {
	if cfg.Count < 1 {
		return fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidLayerConfig, cfg.Count)
	}
	if !(cfg.Spacing > 0) || math.IsInf(cfg.Spacing, 0) {
		return fmt.Errorf("%w: spacing must be > 0, got %v", ErrInvalidLayerConfig, cfg.Spacing)
	}
	if !(cfg.TopIndex > 0) || math.IsInf(cfg.TopIndex, 0) {
		return fmt.Errorf("%w: top index must be > 0, got %v", ErrInvalidLayerConfig, cfg.TopIndex)
	}
	if !(cfg.BottomIndex > 0) || math.IsInf(cfg.BottomIndex, 0) {
		return fmt.Errorf("%w: bottom index must be > 0, got %v", ErrInvalidLayerConfig, cfg.BottomIndex)
	}
	return nil
}

// ValidatePosition rejects non-finite coordinates.
func ValidatePosition(p model.Point) error {
	if !finite(p.X, p.Y) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, p.X, p.Y)
	}
	return nil
}

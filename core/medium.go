package core

import (
	"sort"

	"github.com/signalsfoundry/refraction-simulator/model"
)

// DefaultRefractiveIndex is returned by an empty medium.
const DefaultRefractiveIndex = 1.0

// LayeredMedium is an ordered set of horizontal refractive-index boundaries.
// Layers are kept sorted by descending Y, so index 0 is the boundary closest
// to the ground and the last element is the topmost one.
//
// A LayeredMedium is never mutated after construction; reconfiguration
// builds a new one.
type LayeredMedium struct {
	layers []model.RefractiveLayer
}

// NewLayeredMedium builds cfg.Count boundaries spaced cfg.Spacing apart above
// groundY. Indices are interpolated linearly from BottomIndex (lowest
// boundary) to TopIndex (highest boundary). Count <= 0 yields an empty medium
// whose lookups return DefaultRefractiveIndex.
func NewLayeredMedium(cfg model.LayerConfig, groundY float64) *LayeredMedium {
	if cfg.Count <= 0 {
		return &LayeredMedium{}
	}

	layers := make([]model.RefractiveLayer, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		t := 0.0
		if cfg.Count > 1 {
			t = float64(i) / float64(cfg.Count-1)
		}
		layers = append(layers, model.RefractiveLayer{
			Y:     groundY - float64(i+1)*cfg.Spacing,
			Index: cfg.BottomIndex + (cfg.TopIndex-cfg.BottomIndex)*t,
		})
	}
	sort.SliceStable(layers, func(a, b int) bool { return layers[a].Y > layers[b].Y })

	return &LayeredMedium{layers: layers}
}

// NewLayeredMediumFromLayers wraps an explicit set of boundaries. The input is
// copied and re-sorted by descending Y.
func NewLayeredMediumFromLayers(layers []model.RefractiveLayer) *LayeredMedium {
	cp := append([]model.RefractiveLayer(nil), layers...)
	sort.SliceStable(cp, func(a, b int) bool { return cp[a].Y > cp[b].Y })
	return &LayeredMedium{layers: cp}
}

// Layers returns a copy of the boundaries, lowest (largest Y) first.
func (m *LayeredMedium) Layers() []model.RefractiveLayer {
	if m == nil {
		return nil
	}
	return append([]model.RefractiveLayer(nil), m.layers...)
}

// Len returns the number of boundaries.
func (m *LayeredMedium) Len() int {
	if m == nil {
		return 0
	}
	return len(m.layers)
}

// IndexAt returns the refractive index in effect at height y. The index
// changes abruptly at each boundary: inside a band the index of the band's
// upper boundary applies.
func (m *LayeredMedium) IndexAt(y float64) float64 {
	if m == nil || len(m.layers) == 0 {
		return DefaultRefractiveIndex
	}

	upper := m.layers[len(m.layers)-1]
	lower := m.layers[0]

	if y <= upper.Y {
		return upper.Index
	}
	if y >= lower.Y {
		return lower.Index
	}

	for i := 0; i < len(m.layers)-1; i++ {
		if y >= m.layers[i+1].Y && y <= m.layers[i].Y {
			return m.layers[i+1].Index
		}
	}

	return DefaultRefractiveIndex
}

package model

// RefractiveLayer is one horizontal band boundary of the layered medium.
type RefractiveLayer struct {
	Y     float64
	Index float64
}

// LayerConfig describes how the layered medium is built: Count evenly spaced
// boundaries above the ground, with indices interpolated linearly between
// BottomIndex (closest to ground) and TopIndex.
type LayerConfig struct {
	Count       int     `json:"count"`
	Spacing     float64 `json:"spacing"`
	TopIndex    float64 `json:"top_index"`
	BottomIndex float64 `json:"bottom_index"`
}

// DefaultLayerConfig mirrors the initial slider values of the interactive demo.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		Count:       10,
		Spacing:     50,
		TopIndex:    1.0,
		BottomIndex: 1.3,
	}
}

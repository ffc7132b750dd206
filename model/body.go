package model

// BodyKind indicates what a movable scene body represents.
type BodyKind int

const (
	BodyKindUnknown BodyKind = iota
	BodyKindSun
	BodyKindObserver
	BodyKindMoon
)

func (k BodyKind) String() string {
	switch k {
	case BodyKindSun:
		return "sun"
	case BodyKindObserver:
		return "observer"
	case BodyKindMoon:
		return "moon"
	default:
		return "unknown"
	}
}

// Well-known body IDs registered by the engine.
const (
	SunID      = "sun"
	ObserverID = "observer"
	MoonID     = "moon"
)

// Body is a draggable element of the scene: the light source, the observer
// or the moon obstacle.
type Body struct {
	ID       string
	Name     string
	Kind     BodyKind
	Position Point
}

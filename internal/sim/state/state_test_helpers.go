package state

import (
	"math/rand"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/model"
)

// newStateForTest builds a state around an engine in a uniform medium whose
// default geometry yields exactly one observer hit per frame.
func newStateForTest(t *testing.T, opts ...SimulationStateOption) (*SimulationState, *core.SimulationEngine) {
	t.Helper()
	engine, err := core.NewSimulationEngine(nil,
		core.WithRand(rand.New(rand.NewSource(2))),
		core.WithLayerConfig(model.LayerConfig{Count: 0}),
		core.WithObstacleConfig(core.ObstacleConfig{CloudCount: 1}),
	)
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	return NewSimulationState(engine, logging.Noop(), opts...), engine
}

package control

import (
	"errors"

	sim "github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotReady is returned when the service has no simulation bound.
	ErrNotReady = errors.New("simulation not initialised")
	// ErrInvalidRequest is a package-level sentinel used for request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, sim.ErrBodyNotFound),
		errors.Is(err, sim.ErrNoApparentSource),
		errors.Is(err, sim.ErrNoFrame):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, sim.ErrInvalidLayerConfig),
		errors.Is(err, sim.ErrInvalidPosition),
		errors.Is(err, sim.ErrInvalidView):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

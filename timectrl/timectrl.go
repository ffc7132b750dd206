package timectrl

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval caps the frame rate at 30 frames per second.
const DefaultFrameInterval = time.Second / 30

// Clock is the time source used by the frame loop. Tests substitute a
// controlled clock.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated steps by Tick as fast as the listeners allow.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController drives the frame clock and notifies registered listeners
// on every tick.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = DefaultFrameInterval
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current controller time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps the controller to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Start runs the controller for the specified duration (forever when zero)
// in a separate goroutine. It returns a channel that is closed when the
// controller finishes or ctx is cancelled.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		listeners := append([]func(time.Time){}, tc.listeners...)
		tc.mu.Unlock()

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(simTime)
			}
		}
	}()
	return done
}

// FrameLimiter drops frames requested faster than MinInterval. Dropped
// frames are not queued.
type FrameLimiter struct {
	mu          sync.Mutex
	MinInterval time.Duration
	last        time.Time
	started     bool
	dropped     uint64
}

// NewFrameLimiter constructs a limiter; a non-positive interval means
// DefaultFrameInterval.
func NewFrameLimiter(minInterval time.Duration) *FrameLimiter {
	if minInterval <= 0 {
		minInterval = DefaultFrameInterval
	}
	return &FrameLimiter{MinInterval: minInterval}
}

// Allow reports whether a frame may run at now, and records it as the last
// frame when it may.
func (l *FrameLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started && now.Sub(l.last) < l.MinInterval {
		l.dropped++
		return false
	}
	l.last = now
	l.started = true
	return true
}

// Dropped returns how many frames were refused.
func (l *FrameLimiter) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Reset forgets the last frame so the next request is always allowed.
func (l *FrameLimiter) Reset() {
	l.mu.Lock()
	l.started = false
	l.mu.Unlock()
}

package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/refraction-simulator/model"
)

var (
	// ErrBodyExists indicates a body with the same ID is already registered.
	ErrBodyExists = errors.New("body already exists")
	// ErrBodyNotFound indicates a requested body was not found.
	ErrBodyNotFound = errors.New("body not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyMoved
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Body     model.Body
	Previous model.Point
}

// KnowledgeBase is an in-memory, thread-safe store for the movable bodies of
// a scene (sun, observer, moon).
type KnowledgeBase struct {
	mu sync.RWMutex

	bodies map[string]*model.Body

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies: make(map[string]*model.Body),
		subs:   make(map[int]func(Event)),
	}
}

// AddBody registers a new body. It returns ErrBodyExists if the ID is taken.
func (kb *KnowledgeBase) AddBody(b model.Body) error {
	kb.mu.Lock()
	if _, exists := kb.bodies[b.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.ID)
	}
	stored := b
	kb.bodies[b.ID] = &stored
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, Body: b, Previous: b.Position})
	return nil
}

// GetBody returns a copy of the body with the given ID.
func (kb *KnowledgeBase) GetBody(id string) (model.Body, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	b, ok := kb.bodies[id]
	if !ok {
		return model.Body{}, false
	}
	return *b, true
}

// Position returns the position of a body, or the zero point if missing.
func (kb *KnowledgeBase) Position(id string) model.Point {
	b, _ := kb.GetBody(id)
	return b.Position
}

// ListBodies returns a snapshot of all bodies sorted by ID.
func (kb *KnowledgeBase) ListBodies() []model.Body {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Body, 0, len(kb.bodies))
	for _, b := range kb.bodies {
		res = append(res, *b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// UpdateBodyPosition moves a body and notifies subscribers. Subscribers are
// called synchronously on the caller's goroutine after the KB lock is
// released, so they observe the write before UpdateBodyPosition returns.
func (kb *KnowledgeBase) UpdateBodyPosition(id string, pos model.Point) error {
	kb.mu.Lock()
	b, ok := kb.bodies[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	prev := b.Position
	b.Position = pos
	event := Event{
		Type:     EventBodyMoved,
		Body:     *b, // copy for safety
		Previous: prev,
	}
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) snapshotSubsLocked() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	return subs
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		if sub != nil {
			sub(e)
		}
	}
}

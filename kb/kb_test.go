package kb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/refraction-simulator/model"
)

func TestAddAndGetBody(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddBody(model.Body{ID: model.SunID, Name: "Sun", Kind: model.BodyKindSun}); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}
	got, ok := store.GetBody(model.SunID)
	if !ok || got.Name != "Sun" {
		t.Fatalf("GetBody returned %#v, want name Sun", got)
	}
}

func TestAddBodyDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddBody(model.Body{ID: "b1"}); err != nil {
		t.Fatalf("first AddBody error: %v", err)
	}
	err := store.AddBody(model.Body{ID: "b1"})
	if !errors.Is(err, ErrBodyExists) {
		t.Fatalf("duplicate AddBody error = %v, want ErrBodyExists", err)
	}
}

func TestUpdateUnknownBody(t *testing.T) {
	store := NewKnowledgeBase()
	err := store.UpdateBodyPosition("missing", model.Pt(1, 2))
	if !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("UpdateBodyPosition error = %v, want ErrBodyNotFound", err)
	}
}

func TestListBodiesSorted(t *testing.T) {
	store := NewKnowledgeBase()
	for _, id := range []string{"c", "a", "b"} {
		if err := store.AddBody(model.Body{ID: id}); err != nil {
			t.Fatalf("AddBody error: %v", err)
		}
	}
	got := store.ListBodies()
	if len(got) != 3 {
		t.Fatalf("ListBodies len=%d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].ID != want {
			t.Fatalf("ListBodies[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestUpdateBodyPositionAndSubscribe(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddBody(model.Body{ID: "p1", Position: model.Pt(5, 5)}); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) { got = append(got, e) })

	if err := store.UpdateBodyPosition("p1", model.Pt(1, 2)); err != nil {
		t.Fatalf("UpdateBodyPosition error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	if got[0].Type != EventBodyMoved || got[0].Body.Position != model.Pt(1, 2) || got[0].Previous != model.Pt(5, 5) {
		t.Fatalf("unexpected event %+v", got[0])
	}

	unsubscribe()
	if err := store.UpdateBodyPosition("p1", model.Pt(3, 4)); err != nil {
		t.Fatalf("UpdateBodyPosition error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("received %d events after unsubscribe, want 1", len(got))
	}
	if pos := store.Position("p1"); pos != model.Pt(3, 4) {
		t.Fatalf("Position = %v, want (3,4)", pos)
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddBody(model.Body{ID: "p1"}); err != nil {
		t.Fatalf("AddBody error: %v", err)
	}

	counts := make([]int, 3)
	unsubs := make([]func(), 3)
	for i := range counts {
		i := i
		unsubs[i] = store.Subscribe(func(Event) { counts[i]++ })
	}
	unsubs[0]()
	unsubs[0]() // idempotent

	for i := range 2 {
		if err := store.UpdateBodyPosition("p1", model.Pt(float64(i), 0)); err != nil {
			t.Fatalf("UpdateBodyPosition error: %v", err)
		}
	}
	if fmt.Sprint(counts) != "[0 2 2]" {
		t.Fatalf("subscriber counts = %v, want [0 2 2]", counts)
	}
}

package adreward

import "testing"

func TestSessions_AcquireReusesInFlightSession(t *testing.T) {
	reg := NewSessions()

	first := reg.Acquire(42, 3)
	second := reg.Acquire(42, 99)
	if first != second {
		t.Fatal("Acquire started a second session for the same identity")
	}
	if _, _, target, _ := second.Snapshot(); target != 3 {
		t.Errorf("target = %d, want the value fixed at session start", target)
	}

	other := reg.Acquire(7, 3)
	if other == first {
		t.Error("distinct identities share a session")
	}
}

func TestSessions_PeekAndDrop(t *testing.T) {
	reg := NewSessions()

	if _, ok := reg.Peek(42); ok {
		t.Error("Peek reported a session before any watch started")
	}

	reg.Acquire(42, 1)
	sess, ok := reg.Peek(42)
	if !ok || sess == nil {
		t.Fatal("Peek missed the in-flight session")
	}

	reg.Drop(42)
	if _, ok := reg.Peek(42); ok {
		t.Error("session survived Drop")
	}
}

package roomcache

import "testing"

type fakeListener struct{ id string }

func (f fakeListener) ListenerID() string { return f.id }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	a := fakeListener{id: "a"}
	b := fakeListener{id: "b"}
	r.Register("room1", a, "es")
	r.Register("room1", b, "fr")

	es := r.ListenersForLanguage("room1", "es")
	if len(es) != 1 || es[0].ListenerID() != "a" {
		t.Fatalf("expected only listener a for es, got %+v", es)
	}

	none := r.ListenersForLanguage("room2", "es")
	if len(none) != 0 {
		t.Fatalf("expected no listeners in unknown room")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	a := fakeListener{id: "a"}
	r.Register("room1", a, "es")
	r.Unregister("room1", a)

	if got := r.ListenersForLanguage("room1", "es"); len(got) != 0 {
		t.Fatalf("expected listener removed, got %+v", got)
	}
}

func TestRegistryReregisterMovesListenerBetweenLanguages(t *testing.T) {
	r := NewRegistry()
	a := fakeListener{id: "a"}
	r.Register("room1", a, "es")
	r.Register("room1", a, "fr")

	if got := r.ListenersForLanguage("room1", "es"); len(got) != 0 {
		t.Fatalf("expected listener moved out of es, got %+v", got)
	}
	fr := r.ListenersForLanguage("room1", "fr")
	if len(fr) != 1 || fr[0].ListenerID() != "a" {
		t.Fatalf("expected exactly one fr entry for a, got %+v", fr)
	}
}

func TestRegistryTargetLanguages(t *testing.T) {
	r := NewRegistry()
	r.Register("room1", fakeListener{id: "a"}, "es")
	r.Register("room1", fakeListener{id: "b"}, "fr")
	r.Register("room1", fakeListener{id: "c"}, "es")

	langs := r.TargetLanguages("room1")
	if len(langs) != 2 {
		t.Fatalf("expected 2 distinct languages, got %v", langs)
	}
	seen := map[string]bool{}
	for _, l := range langs {
		seen[l] = true
	}
	if !seen["es"] || !seen["fr"] {
		t.Fatalf("expected es and fr, got %v", langs)
	}

	if got := r.TargetLanguages("empty-room"); len(got) != 0 {
		t.Fatalf("expected no languages for unknown room, got %v", got)
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	a := fakeListener{id: "a"}
	r.Register("room1", a, "es")

	snapshot := r.ListenersForLanguage("room1", "es")
	r.Register("room1", fakeListener{id: "c"}, "es")

	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot unaffected by later registration, got %d entries", len(snapshot))
	}
}

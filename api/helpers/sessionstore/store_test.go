package sessionstore

import (
	"testing"

	"github.com/bluetuith-org/gatt-exchange/api/bluetooth"
)

func TestRecordLastNameWins(t *testing.T) {
	s := NewSessionStore()

	s.Record(bluetooth.Advertisement{ID: "X", Name: "first"})
	s.Record(bluetooth.Advertisement{ID: "Y"})
	s.Record(bluetooth.Advertisement{ID: "X", Name: "second"})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	if name, ok := s.Name("X"); !ok || name != "second" {
		t.Errorf("Name(X) = %q, %v", name, ok)
	}
	if name, ok := s.Name("Y"); !ok || name != "" {
		t.Errorf("Name(Y) = %q, %v", name, ok)
	}
	if _, ok := s.Name("Z"); ok {
		t.Errorf("Name(Z) should not exist")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewSessionStore()
	s.Record(bluetooth.Advertisement{ID: "X", Name: "probe"})

	snapshot := s.Snapshot()
	snapshot["Y"] = "injected"

	if s.Len() != 1 {
		t.Errorf("modifying a snapshot changed the store")
	}

	s.Reset()
	if s.Len() != 0 || len(s.Snapshot()) != 0 {
		t.Errorf("Reset() did not clear the store")
	}
	if snapshot["X"] != "probe" {
		t.Errorf("Reset() changed an earlier snapshot")
	}
}

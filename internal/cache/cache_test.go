package cache

import (
	"context"
	"testing"
	"time"

	"github.com/example/ride-tracker/internal/models"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok, err := m.Load(ctx, "ride-42"); ok || err != nil {
		t.Fatalf("expected absent entry, ok=%v err=%v", ok, err)
	}

	st := CachedState{
		Snapshot:          models.RideSnapshot{RideID: "ride-42", Status: models.StatusOngoing},
		LastAppliedStatus: models.StatusOngoing,
		SavedAt:           time.Now(),
	}
	if err := m.Save(ctx, "ride-42", st); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, ok, err := m.Load(ctx, "ride-42")
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if got.Snapshot.Status != models.StatusOngoing || got.LastAppliedStatus != models.StatusOngoing {
		t.Fatalf("state mangled: %+v", got)
	}
}

func TestMemoryOverwriteAndClear(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Save(ctx, "ride-42", CachedState{LastAppliedStatus: models.StatusAccepted})
	_ = m.Save(ctx, "ride-42", CachedState{LastAppliedStatus: models.StatusOngoing})

	got, _, _ := m.Load(ctx, "ride-42")
	if got.LastAppliedStatus != models.StatusOngoing {
		t.Fatalf("later save must win, got %v", got.LastAppliedStatus)
	}

	if err := m.Clear(ctx, "ride-42"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, _ := m.Load(ctx, "ride-42"); ok {
		t.Fatalf("entry survived clear")
	}
}

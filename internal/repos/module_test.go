package repos

import (
	"context"
	"testing"
	"time"

	"github.com/pathwise/pathwise-backend/internal/types"
)

func TestTransitionStatusGuardedUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewModuleRepo(db, testLogger())
	module := seedModule(t, db, types.ModuleStatusNotStarted)
	ctx := context.Background()

	moved, err := repo.TransitionStatus(ctx, nil, module.ID,
		[]string{types.ModuleStatusNotStarted}, types.ModuleStatusQueued, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !moved {
		t.Fatal("expected transition not_started -> queued")
	}

	// Same transition again: the guard no longer matches.
	moved, err = repo.TransitionStatus(ctx, nil, module.ID,
		[]string{types.ModuleStatusNotStarted}, types.ModuleStatusQueued, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if moved {
		t.Fatal("guard must refuse a second identical transition")
	}

	got, err := repo.GetByID(ctx, nil, module.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.GenerationStatus != types.ModuleStatusQueued {
		t.Fatalf("status = %q, want queued", got.GenerationStatus)
	}
}

func TestTransitionStatusRefusesSkippingStates(t *testing.T) {
	db := newTestDB(t)
	repo := NewModuleRepo(db, testLogger())
	module := seedModule(t, db, types.ModuleStatusNotStarted)
	ctx := context.Background()

	// completed requires in_progress; a not_started module must not jump.
	moved, err := repo.TransitionStatus(ctx, nil, module.ID,
		[]string{types.ModuleStatusInProgress}, types.ModuleStatusCompleted, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if moved {
		t.Fatal("transition must not skip in_progress")
	}
}

func TestTransitionStatusTerminalStatesStay(t *testing.T) {
	db := newTestDB(t)
	repo := NewModuleRepo(db, testLogger())
	module := seedModule(t, db, types.ModuleStatusCompleted)
	ctx := context.Background()

	moved, err := repo.TransitionStatus(ctx, nil, module.ID,
		[]string{types.ModuleStatusQueued, types.ModuleStatusInProgress}, types.ModuleStatusFailed, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if moved {
		t.Fatal("a completed module must not move to failed")
	}
}

func TestTransitionStatusAppliesExtraFields(t *testing.T) {
	db := newTestDB(t)
	repo := NewModuleRepo(db, testLogger())
	module := seedModule(t, db, types.ModuleStatusQueued)
	ctx := context.Background()

	now := time.Now()
	moved, err := repo.TransitionStatus(ctx, nil, module.ID,
		[]string{types.ModuleStatusQueued}, types.ModuleStatusInProgress,
		map[string]interface{}{"generation_started_at": now, "idempotency_key": "key-1"})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !moved {
		t.Fatal("expected transition queued -> in_progress")
	}

	got, err := repo.GetByID(ctx, nil, module.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.GenerationStartedAt == nil {
		t.Fatal("generation_started_at not applied")
	}
	if got.IdempotencyKey != "key-1" {
		t.Fatalf("idempotency_key = %q", got.IdempotencyKey)
	}
}

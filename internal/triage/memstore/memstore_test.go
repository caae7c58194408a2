package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/docbox/internal/triage"
)

func vector(id, source, owner string, state triage.LifecycleState) *triage.StateVector {
	now := time.Now().UTC()
	return &triage.StateVector{
		ID:              id,
		SourceMessageID: source,
		OriginID:        "inbox-a",
		Intent:          triage.IntentOther,
		RiskScore:       0.2,
		OwnerRole:       owner,
		Lifecycle:       state,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	v := vector("v1", "src-1", "nurse", triage.LifecycleNeedsReply)
	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.Get(ctx, "v1")
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if got.SourceMessageID != "src-1" {
		t.Errorf("SourceMessageID = %q", got.SourceMessageID)
	}

	// Returned value is a copy; mutating it must not affect the store.
	got.OwnerRole = "mutated"
	again, _, _ := s.Get(ctx, "v1")
	if again.OwnerRole != "nurse" {
		t.Errorf("store mutated through returned copy: %q", again.OwnerRole)
	}
}

func TestCreate_DuplicateSource(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, vector("v1", "src-1", "nurse", triage.LifecycleNeedsReply)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, vector("v2", "src-1", "nurse", triage.LifecycleNeedsReply))
	if !errors.Is(err, triage.ErrDuplicateSource) {
		t.Errorf("err = %v, want ErrDuplicateSource", err)
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil || ok {
		t.Errorf("Get missing = %v, %v; want false, nil", ok, err)
	}
}

func TestListOpen(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for _, v := range []*triage.StateVector{
		vector("v1", "s1", "nurse", triage.LifecycleNeedsReply),
		vector("v2", "s2", "billing", triage.LifecycleWaiting),
		vector("v3", "s3", "nurse", triage.LifecycleResolved),
		vector("v4", "s4", "nurse", triage.LifecycleOverdue),
	} {
		if err := s.Create(ctx, v); err != nil {
			t.Fatalf("Create %s: %v", v.ID, err)
		}
	}

	all, err := s.ListOpen(ctx, "")
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("open = %d, want 3 (resolved excluded)", len(all))
	}

	nurses, err := s.ListOpen(ctx, "nurse")
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(nurses) != 2 {
		t.Errorf("nurse-filtered = %d, want 2", len(nurses))
	}

	// Filter also matches origin id.
	byOrigin, err := s.ListOpen(ctx, "inbox-a")
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(byOrigin) != 3 {
		t.Errorf("origin-filtered = %d, want 3", len(byOrigin))
	}
}

func TestUpdateLifecycle(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, vector("v1", "s1", "nurse", triage.LifecycleNeedsReply)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	v, ok, err := s.UpdateLifecycle(ctx, "v1", triage.LifecycleOverdue, "lead_doctor")
	if err != nil || !ok {
		t.Fatalf("UpdateLifecycle: %v %v", ok, err)
	}
	if v.Lifecycle != triage.LifecycleOverdue || v.OwnerRole != "lead_doctor" {
		t.Errorf("got %v/%q", v.Lifecycle, v.OwnerRole)
	}

	// Empty owner keeps the existing assignment.
	v, ok, err = s.UpdateLifecycle(ctx, "v1", triage.LifecycleResolved, "")
	if err != nil || !ok {
		t.Fatalf("UpdateLifecycle: %v %v", ok, err)
	}
	if v.OwnerRole != "lead_doctor" {
		t.Errorf("OwnerRole = %q, want unchanged lead_doctor", v.OwnerRole)
	}

	_, ok, err = s.UpdateLifecycle(ctx, "nope", triage.LifecycleOverdue, "")
	if err != nil || ok {
		t.Errorf("unknown id = %v, %v; want false, nil", ok, err)
	}
}

func TestEventsAndOverrides(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.AppendEvent(ctx, &triage.MessageEvent{ID: "e1", VectorID: "v1", EventType: triage.EventEscalated}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := s.AppendEvent(ctx, &triage.MessageEvent{ID: "e2", VectorID: "v2", EventType: triage.EventCorrected}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	events := s.Events("v1")
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("Events(v1) = %+v", events)
	}

	key := triage.SenderKey("a@b.com")
	if _, ok, _ := s.GetOverride(ctx, key); ok {
		t.Error("override present before set")
	}
	if err := s.SetOverride(ctx, key, triage.ZoneStat); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := s.SetOverride(ctx, key, triage.ZoneLater); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	zone, ok, err := s.GetOverride(ctx, key)
	if err != nil || !ok {
		t.Fatalf("GetOverride: %v %v", ok, err)
	}
	if zone != triage.ZoneLater {
		t.Errorf("zone = %v, want last write", zone)
	}
}

package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/docbox/internal/triage"
	"github.com/linnemanlabs/docbox/internal/triage/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("DOCBOX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DOCBOX_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	s, err := pgstore.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// testVector builds a vector with unique ids so runs against a shared
// database never collide on the primary key or the source uniqueness
// constraint.
func testVector(owner string, state triage.LifecycleState) *triage.StateVector {
	now := time.Now().Truncate(time.Microsecond).UTC()
	return &triage.StateVector{
		ID:              ulid.Make().String(),
		SourceMessageID: "src-" + ulid.Make().String(),
		OriginID:        "origin-" + ulid.Make().String(),
		Intent:          triage.IntentClinical,
		RiskScore:       0.8,
		Context:         triage.ContextBlob{Subject: "Lab results", Sender: "lab@quest.com"},
		Summary:         "Panel ready for review",
		OwnerRole:       owner,
		Lifecycle:       state,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	deadline := time.Now().Add(12 * time.Hour).Truncate(time.Microsecond).UTC()
	v := testVector("nurse", triage.LifecycleNeedsReply)
	v.DeadlineAt = &deadline
	v.Context.Extra = map[string]any{"thread_id": "t-42"}

	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}

	assertEqual(t, "SourceMessageID", v.SourceMessageID, got.SourceMessageID)
	assertEqual(t, "OriginID", v.OriginID, got.OriginID)
	assertEqual(t, "Intent", string(v.Intent), string(got.Intent))
	assertEqual(t, "RiskScore", v.RiskScore, got.RiskScore)
	assertEqual(t, "Summary", v.Summary, got.Summary)
	assertEqual(t, "OwnerRole", v.OwnerRole, got.OwnerRole)
	assertEqual(t, "Lifecycle", string(v.Lifecycle), string(got.Lifecycle))
	if got.DeadlineAt == nil || !got.DeadlineAt.Equal(deadline) {
		t.Errorf("DeadlineAt = %v, want %v", got.DeadlineAt, deadline)
	}
	if !got.CreatedAt.Equal(v.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, v.CreatedAt)
	}

	// JSONB round-trip preserves named fields and overflow keys.
	assertEqual(t, "Context.Subject", "Lab results", got.Context.Subject)
	assertEqual(t, "Context.Sender", "lab@quest.com", got.Context.Sender)
	if got.Context.Extra["thread_id"] != "t-42" {
		t.Errorf("Context.Extra = %v, want thread_id preserved", got.Context.Extra)
	}
}

func TestCreateDuplicateSource(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	v := testVector("nurse", triage.LifecycleNeedsReply)
	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := testVector("nurse", triage.LifecycleNeedsReply)
	dup.SourceMessageID = v.SourceMessageID
	err := s.Create(ctx, dup)
	if !errors.Is(err, triage.ErrDuplicateSource) {
		t.Errorf("Create duplicate source err = %v, want ErrDuplicateSource", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get(context.Background(), "nonexistent-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true for nonexistent id")
	}
}

func TestListOpenFiltering(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// Unique owner role and origin per run so filtered reads see only this
	// test's rows even on a shared database.
	role := "role-" + ulid.Make().String()
	origin := "origin-" + ulid.Make().String()

	open := testVector(role, triage.LifecycleNeedsReply)
	waiting := testVector(role, triage.LifecycleWaiting)
	resolved := testVector(role, triage.LifecycleResolved)
	byOrigin := testVector("other-role", triage.LifecycleOverdue)
	byOrigin.OriginID = origin

	for _, v := range []*triage.StateVector{open, waiting, resolved, byOrigin} {
		if err := s.Create(ctx, v); err != nil {
			t.Fatalf("Create %s: %v", v.ID, err)
		}
	}

	byRole, err := s.ListOpen(ctx, role)
	if err != nil {
		t.Fatalf("ListOpen by role: %v", err)
	}
	if len(byRole) != 2 {
		t.Errorf("role-filtered = %d, want 2 (resolved excluded)", len(byRole))
	}
	for _, v := range byRole {
		if v.ID == resolved.ID {
			t.Error("resolved vector surfaced in open listing")
		}
	}

	byOriginList, err := s.ListOpen(ctx, origin)
	if err != nil {
		t.Fatalf("ListOpen by origin: %v", err)
	}
	if len(byOriginList) != 1 || byOriginList[0].ID != byOrigin.ID {
		t.Errorf("origin-filtered = %+v, want just %s", byOriginList, byOrigin.ID)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	v := testVector("nurse", triage.LifecycleNeedsReply)
	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.UpdateLifecycle(ctx, v.ID, triage.LifecycleOverdue, "lead_doctor")
	if err != nil {
		t.Fatalf("UpdateLifecycle: %v", err)
	}
	if !ok {
		t.Fatal("UpdateLifecycle returned ok=false")
	}
	assertEqual(t, "Lifecycle", string(triage.LifecycleOverdue), string(got.Lifecycle))
	assertEqual(t, "OwnerRole", "lead_doctor", got.OwnerRole)
	if !got.UpdatedAt.After(v.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want bumped past %v", got.UpdatedAt, v.UpdatedAt)
	}

	// Empty owner keeps the existing assignment via COALESCE.
	got, ok, err = s.UpdateLifecycle(ctx, v.ID, triage.LifecycleResolved, "")
	if err != nil {
		t.Fatalf("UpdateLifecycle empty owner: %v", err)
	}
	if !ok {
		t.Fatal("UpdateLifecycle returned ok=false")
	}
	assertEqual(t, "OwnerRole", "lead_doctor", got.OwnerRole)

	_, ok, err = s.UpdateLifecycle(ctx, "nonexistent-id", triage.LifecycleOverdue, "")
	if err != nil {
		t.Fatalf("UpdateLifecycle missing: %v", err)
	}
	if ok {
		t.Error("UpdateLifecycle returned ok=true for nonexistent id")
	}
}

func TestAppendEvent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	v := testVector("nurse", triage.LifecycleNeedsReply)
	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ev := &triage.MessageEvent{
		ID:          ulid.Make().String(),
		VectorID:    v.ID,
		EventType:   triage.EventEscalated,
		Description: "Manual escalation",
		CreatedAt:   time.Now().Truncate(time.Microsecond).UTC(),
	}
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	// Events reference their vector; an unknown vector id must be rejected.
	orphan := &triage.MessageEvent{
		ID:        ulid.Make().String(),
		VectorID:  "nonexistent-id",
		EventType: triage.EventEscalated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendEvent(ctx, orphan); err == nil {
		t.Error("AppendEvent accepted an event for a nonexistent vector")
	}
}

func TestOverrideUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	key := triage.SenderKey(ulid.Make().String() + "@example.com")

	_, ok, err := s.GetOverride(ctx, key)
	if err != nil {
		t.Fatalf("GetOverride: %v", err)
	}
	if ok {
		t.Error("GetOverride returned ok=true before set")
	}

	if err := s.SetOverride(ctx, key, triage.ZoneStat); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := s.SetOverride(ctx, key, triage.ZoneLater); err != nil {
		t.Fatalf("SetOverride update: %v", err)
	}

	zone, ok, err := s.GetOverride(ctx, key)
	if err != nil {
		t.Fatalf("GetOverride: %v", err)
	}
	if !ok {
		t.Fatal("GetOverride returned ok=false after set")
	}
	if zone != triage.ZoneLater {
		t.Errorf("zone = %v, want last write LATER", zone)
	}
}

func TestQueriesCreateSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.
	s := openStore(t)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	v := testVector("nurse", triage.LifecycleNeedsReply)
	ctx := context.Background()
	if err := s.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := s.Get(ctx, v.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	counts := make(map[string]int)
	for _, span := range exporter.GetSpans() {
		counts[span.Name]++
	}
	if counts["pgstore.Create"] != 1 {
		t.Errorf("pgstore.Create spans = %d, want 1", counts["pgstore.Create"])
	}
	if counts["pgstore.Get"] != 1 {
		t.Errorf("pgstore.Get spans = %d, want 1", counts["pgstore.Get"])
	}

	for _, span := range exporter.GetSpans() {
		if span.Name != "pgstore.Get" {
			continue
		}
		var foundSystem bool
		for _, attr := range span.Attributes {
			if string(attr.Key) == "db.system" && attr.Value.AsString() == "postgresql" {
				foundSystem = true
			}
		}
		if !foundSystem {
			t.Error("pgstore.Get span missing db.system attribute")
		}
	}
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}

package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{TenantID: "t"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), "t", "u", "super_admin", "1.2.3.4", "granted minutes", map[string]int{"minutes": 50}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at")
	}
	if evs[0].Metadata != `{"minutes":50}` {
		t.Fatalf("unexpected metadata %q", evs[0].Metadata)
	}
}

func TestService_CallEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogPlacementFailed(context.Background(), "t", "c1", "camp", "provider 500"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogReconciliationRisk(context.Background(), "t", "c1", "update after placement failed", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypePlacementFailed || evs[0].CallID != "c1" || evs[0].Message != "provider 500" {
		t.Fatalf("unexpected placement event %+v", evs[0])
	}
	if evs[1].Type != EventTypeReconciliationRisk || evs[1].Metadata != "{}" {
		t.Fatalf("unexpected risk event %+v", evs[1])
	}
}

func TestService_NilIsSafe(t *testing.T) {
	var svc *Service
	if err := svc.LogPlacementFailed(context.Background(), "t", "c", "", "x"); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

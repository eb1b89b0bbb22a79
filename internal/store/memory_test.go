package store

import (
	"context"
	"testing"

	"qfleet/internal/model"
)

func sampleReport() model.ComparisonReport {
	best := model.NearestNeighbor
	return model.ComparisonReport{
		Classical: map[string]model.SolverResult{
			model.NearestNeighbor: {Algorithm: model.NearestNeighbor, TotalCost: 14, IsValid: true},
		},
		Quantum:    map[string]model.SolverResult{},
		Comparison: model.ComparisonSummary{BestOverall: &best, BestClassical: &best},
	}
}

func TestMemorySaveAndGetComparison(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	saved, err := m.SaveComparison(ctx, sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || saved.CreatedAt == "" {
		t.Fatalf("expected generated id and timestamp: %+v", saved)
	}

	got, err := m.GetComparison(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Classical[model.NearestNeighbor].TotalCost != 14 {
		t.Fatalf("round trip lost data: %+v", got)
	}

	if _, err := m.GetComparison(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryListComparisonsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 3; i++ {
		saved, err := m.SaveComparison(ctx, sampleReport())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, saved.ID)
	}

	items, next, err := m.ListComparisons(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != ids[2] || items[1].ID != ids[1] {
		t.Fatalf("expected newest first: %v", items)
	}
	if next == "" {
		t.Fatal("expected a next cursor")
	}

	rest, next, err := m.ListComparisons(ctx, next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ID != ids[0] || next != "" {
		t.Fatalf("expected final page: %v next=%q", rest, next)
	}
}

func TestMemorySubscriptionsAndQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.CreateSubscription(ctx, model.Subscription{URL: "http://x", Events: []string{"run.completed"}})
	if err != nil {
		t.Fatal(err)
	}
	matches, err := m.GetSubscriptionsForEvent(ctx, "run.completed")
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one match: %v %v", matches, err)
	}
	if matches, _ := m.GetSubscriptionsForEvent(ctx, "run.failed"); len(matches) != 0 {
		t.Fatalf("event filter leaked: %v", matches)
	}

	id, err := m.EnqueueWebhook(ctx, sub.ID, "run.completed", sub.URL, "", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("expected one due delivery: %v %v", due, err)
	}

	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 5); err != nil {
		t.Fatal(err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered entries must leave the queue: %v", due)
	}

	if err := m.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, sub.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

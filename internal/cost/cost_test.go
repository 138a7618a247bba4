package cost

import (
	"context"
	"testing"
	"time"

	"github.com/relaygate/gateway/internal/storage"
)

type fakeCostStore struct {
	records []*storage.CostRecord
}

func (f *fakeCostStore) RecordCost(ctx context.Context, r *storage.CostRecord) error {
	f.records = append(f.records, r)
	return nil
}

func (f *fakeCostStore) GetCosts(ctx context.Context, filter storage.CostFilter) ([]*storage.CostRecord, error) {
	var out []*storage.CostRecord
	for _, r := range f.records {
		if filter.ProjectID != "" && r.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestPricingTableNonZeroForKnownAndUnknownModels(t *testing.T) {
	table := DefaultPricingTable()
	if table.CostMicros("gpt-4", 1000, 1000) <= 0 {
		t.Fatal("expected non-zero cost for known model")
	}
	if table.CostMicros("some-unreleased-model", 1000, 1000) <= 0 {
		t.Fatal("expected non-zero fallback cost for unknown model")
	}
}

func TestTrackerRecordAndTotal(t *testing.T) {
	store := &fakeCostStore{}
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	if _, err := tracker.Record(ctx, "chat", "gpt-4", 1000, 500, "conv-1", "proj-a"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := tracker.Record(ctx, "chat", "gpt-4", 2000, 1000, "conv-2", "proj-b"); err != nil {
		t.Fatalf("record: %v", err)
	}

	total, err := tracker.Total(ctx, time.Time{}, time.Time{}, "proj-a")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total <= 0 {
		t.Fatal("expected positive total for proj-a")
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 records stored, got %d", len(store.records))
	}
}

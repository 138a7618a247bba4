// Package cost implements the gateway's cost tracker (spec.md §4.I):
// recording per-call usage and computing USD cost from a pricing table,
// and totaling recorded cost over a time range and/or project.
package cost

import (
	"context"
	"time"

	"github.com/relaygate/gateway/internal/storage"
)

// Store is the subset of storage.Backend the cost tracker needs.
type Store interface {
	RecordCost(ctx context.Context, r *storage.CostRecord) error
	GetCosts(ctx context.Context, filter storage.CostFilter) ([]*storage.CostRecord, error)
}

// Tracker records cost entries and totals them back.
type Tracker struct {
	store   Store
	pricing *PricingTable
}

func NewTracker(store Store, pricing *PricingTable) *Tracker {
	if pricing == nil {
		pricing = DefaultPricingTable()
	}
	return &Tracker{store: store, pricing: pricing}
}

// Record computes USD cost for (model, inputTokens, outputTokens) from
// the pricing table and persists a cost record.
func (t *Tracker) Record(ctx context.Context, tool, model string, inputTokens, outputTokens int, conversationID, projectID string) (*storage.CostRecord, error) {
	micros := t.pricing.CostMicros(model, inputTokens, outputTokens)
	record := &storage.CostRecord{
		Tool:           tool,
		Model:          model,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		USDMicros:      micros,
		ConversationID: conversationID,
		ProjectID:      projectID,
	}
	if err := t.store.RecordCost(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Total sums USDMicros for every cost record matching the filter.
func (t *Tracker) Total(ctx context.Context, start, end time.Time, projectID string) (int64, error) {
	records, err := t.store.GetCosts(ctx, storage.CostFilter{ProjectID: projectID, Start: start, End: end})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range records {
		total += r.USDMicros
	}
	return total, nil
}

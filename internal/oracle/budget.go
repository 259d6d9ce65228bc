package oracle

import "sync/atomic"

// Budget counts oracle usage for a run. Counters are atomic so concurrent
// batch dispatches can share one instance.
type Budget struct {
	asks     atomic.Int64
	visions  atomic.Int64
	failures atomic.Int64
}

// BudgetStatus is a point-in-time snapshot of the counters.
type BudgetStatus struct {
	Asks     int64 `json:"asks" yaml:"asks"`
	Visions  int64 `json:"visions" yaml:"visions"`
	Failures int64 `json:"failures" yaml:"failures"`
	Total    int64 `json:"total" yaml:"total"`
}

func (b *Budget) RecordAsk()     { b.asks.Add(1) }
func (b *Budget) RecordVision()  { b.visions.Add(1) }
func (b *Budget) RecordFailure() { b.failures.Add(1) }

// Snapshot reads the counters. Total counts queries issued, failed or not.
func (b *Budget) Snapshot() BudgetStatus {
	asks, visions := b.asks.Load(), b.visions.Load()
	return BudgetStatus{
		Asks:     asks,
		Visions:  visions,
		Failures: b.failures.Load(),
		Total:    asks + visions,
	}
}

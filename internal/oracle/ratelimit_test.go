package oracle

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterTryConsume(t *testing.T) {
	r := NewRateLimiter(2)
	if !r.TryConsume() || !r.TryConsume() {
		t.Fatal("fresh bucket should hold two tokens")
	}
	if r.TryConsume() {
		t.Fatal("third consume should fail immediately")
	}
	st := r.Status()
	if st.TotalConsumed != 2 || st.TokensLimit != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	r := NewRateLimiter(1)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Fatal("wait on a drained bucket should respect cancellation")
	}
}

func TestRateLimiterBackpressure(t *testing.T) {
	r := NewRateLimiter(100)
	r.Backpressure()
	if r.TryConsume() {
		t.Fatal("bucket should be empty right after backpressure")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	r := NewRateLimiter(6000) // 100 tokens/second
	for r.TryConsume() {
	}
	time.Sleep(50 * time.Millisecond)
	if !r.TryConsume() {
		t.Fatal("bucket did not refill over time")
	}
}

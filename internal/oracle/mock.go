package oracle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/binder/internal/sections"
)

// MockClient is a scriptable Client and VisionClient for tests. Replies
// come from the hook functions when set, otherwise ReplyText is parsed like
// a real oracle reply (so an empty mock answers Unknown for every page).
type MockClient struct {
	Latency   time.Duration
	Err       error // returned by every call when set
	FailAfter int   // fail requests after this many successes (0 = never)
	ReplyText string

	ReplyFunc  func(req *BatchRequest) ([]sections.PageLabel, error)
	VisionFunc func(req *PageRequest) (sections.PageLabel, error)

	budget       Budget
	requestCount atomic.Int64
}

// NewMockClient returns a mock with a small simulated latency.
func NewMockClient() *MockClient {
	return &MockClient{Latency: time.Millisecond}
}

func (c *MockClient) Name() string    { return "mock" }
func (c *MockClient) Budget() *Budget { return &c.budget }

// RequestCount returns the number of calls made, vision included.
func (c *MockClient) RequestCount() int64 { return c.requestCount.Load() }

// Reset clears the request counter.
func (c *MockClient) Reset() { c.requestCount.Store(0) }

func (c *MockClient) ClassifyBatch(ctx context.Context, req *BatchRequest) ([]sections.PageLabel, error) {
	c.budget.RecordAsk()
	if err := c.gate(ctx); err != nil {
		c.budget.RecordFailure()
		return nil, err
	}
	if c.ReplyFunc != nil {
		labels, err := c.ReplyFunc(req)
		if err != nil {
			c.budget.RecordFailure()
			return nil, err
		}
		return NormalizeBatch(req.Batch, labels), nil
	}
	return NormalizeBatch(req.Batch, ParseReply(c.ReplyText)), nil
}

func (c *MockClient) ClassifyPage(ctx context.Context, req *PageRequest) (sections.PageLabel, error) {
	c.budget.RecordVision()
	if err := c.gate(ctx); err != nil {
		c.budget.RecordFailure()
		return sections.PageLabel{Page: req.Page}, err
	}
	if c.VisionFunc != nil {
		return c.VisionFunc(req)
	}
	label := ParseVisionReply(req.Page, c.ReplyText)
	label.Source = sections.SourceVision
	return label, nil
}

// gate applies the scripted failure modes and latency.
func (c *MockClient) gate(ctx context.Context) error {
	count := c.requestCount.Add(1)
	if c.Err != nil {
		return c.Err
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return errMockExhausted
	}
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var errMockExhausted = &mockError{"mock client failed after configured request budget"}

type mockError struct{ msg string }

func (e *mockError) Error() string { return e.msg }

// AskOnly strips the vision capability from a client, for exercising the
// degradation path when the configured oracle cannot read images.
type AskOnly struct {
	Inner Client
}

func (a AskOnly) ClassifyBatch(ctx context.Context, req *BatchRequest) ([]sections.PageLabel, error) {
	return a.Inner.ClassifyBatch(ctx, req)
}

func (a AskOnly) Name() string    { return a.Inner.Name() }
func (a AskOnly) Budget() *Budget { return a.Inner.Budget() }

var (
	_ VisionClient = (*MockClient)(nil)
	_ Client       = AskOnly{}
)

// Package oracle adapts external inference APIs into minute book page
// classifiers. Every implementation shares one reply contract: free-form
// text containing "page, category, confidence" lines, parsed tolerantly so
// a noisy oracle never crashes a run.
package oracle

import (
	"context"
	"errors"

	"github.com/jackzampolin/binder/internal/planner"
	"github.com/jackzampolin/binder/internal/sections"
)

// ErrAuth marks credential rejection by the oracle. It is never retried and
// aborts the run before any output is written.
var ErrAuth = errors.New("oracle authentication failed")

// Client classifies batches of pages. ClassifyBatch returns exactly one
// label per primary page of the request's batch, in page order; pages the
// oracle did not answer for come back Unknown at zero confidence. A non-nil
// error means the whole batch failed and the caller decides how to degrade.
type Client interface {
	ClassifyBatch(ctx context.Context, req *BatchRequest) ([]sections.PageLabel, error)
	Name() string
	Budget() *Budget
}

// VisionClient is the optional capability of classifying a single page
// from its scan image. Callers type-assert and degrade gracefully when the
// configured client lacks it.
type VisionClient interface {
	Client
	ClassifyPage(ctx context.Context, req *PageRequest) (sections.PageLabel, error)
}

// PageExcerpt pairs a 0-based page index with the salient text the oracle
// sees for it.
type PageExcerpt struct {
	Page int
	Text string
}

// BatchRequest asks for labels over one planned batch. Excerpts cover every
// batch page, context included, in page order. FlankHints carry the
// neighboring-section summaries a targeted re-query includes so the oracle
// knows what surrounds the disputed pages.
type BatchRequest struct {
	Batch      planner.Batch
	Excerpts   []PageExcerpt
	FlankHints []string
	Model      string
	RequestID  string
}

// PageRequest asks for a single page's label from its scan image.
type PageRequest struct {
	Page      int
	Image     []byte
	MIME      string
	Model     string
	RequestID string
}

// NormalizeBatch reduces parsed labels to the batch's primary pages:
// context-page answers are advisory and dropped, and a primary page absent
// from the reply yields an Unknown label at zero confidence.
func NormalizeBatch(b planner.Batch, parsed []sections.PageLabel) []sections.PageLabel {
	byPage := make(map[int]sections.PageLabel, len(parsed))
	for _, l := range parsed {
		byPage[l.Page] = l
	}
	out := make([]sections.PageLabel, 0, b.Hi-b.Lo+1)
	for p := b.Lo; p <= b.Hi; p++ {
		if l, ok := byPage[p]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, sections.PageLabel{Page: p})
	}
	return out
}

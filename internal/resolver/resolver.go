// Package resolver repairs suspicious stretches of a label map with
// targeted oracle re-queries. It walks a small state machine per pass:
// scan the current sections for suspects, re-query the non-final pages of
// each suspect with flanking context, merge behind a single-writer
// barrier, and stop on stability, no possible progress, or the iteration
// cap.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/binder/internal/corpus"
	"github.com/jackzampolin/binder/internal/oracle"
	"github.com/jackzampolin/binder/internal/planner"
	"github.com/jackzampolin/binder/internal/sections"
)

// State is the resolver's phase for one pass over the sections.
type State int

const (
	// StateStable means the scan found nothing suspicious.
	StateStable State = iota
	// StateSuspect means suspects were found and re-queries are being built.
	StateSuspect
	// StateResolving means re-queries are in flight.
	StateResolving
	// StateExhausted means the iteration cap elapsed with suspects left:
	// the best-known labels are kept and reported as-is.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateSuspect:
		return "suspect"
	case StateResolving:
		return "resolving"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes suspect detection and re-query construction.
type Config struct {
	// MaxIterations caps repair passes; the document is never left
	// unfinished, only unrefined.
	MaxIterations int
	// SmallSectionPages is the island size threshold: a section this many
	// pages or fewer, wedged between two strictly larger sections of one
	// shared category, is suspect.
	SmallSectionPages int
	// LowConfidence marks a section suspect when its average confidence
	// falls below it.
	LowConfidence float64
	// ContextMargin is how many pages of flanking context ride along with
	// a re-query.
	ContextMargin int
	// FinalConfidence protects pages from re-query; a suspect whose pages
	// are all final is not a suspect at all.
	FinalConfidence float64
	// MaxParallel bounds concurrent re-queries.
	MaxParallel int
	// Model optionally overrides the oracle's default model.
	Model string
	// FirstLines and LastLines control page excerpting in re-queries.
	FirstLines int
	LastLines  int
	// Smooth is applied before every scan and after the last merge.
	Smooth sections.SmoothConfig
}

// DefaultConfig mirrors the tuning that held up on real minute books.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     3,
		SmallSectionPages: 3,
		LowConfidence:     60,
		ContextMargin:     2,
		FinalConfidence:   85,
		MaxParallel:       4,
		FirstLines:        corpus.DefaultFirstLines,
		LastLines:         corpus.DefaultLastLines,
		Smooth:            sections.DefaultSmoothConfig(),
	}
}

func (c Config) sanitized() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.SmallSectionPages <= 0 {
		c.SmallSectionPages = d.SmallSectionPages
	}
	if c.LowConfidence <= 0 {
		c.LowConfidence = d.LowConfidence
	}
	if c.ContextMargin < 0 {
		c.ContextMargin = d.ContextMargin
	}
	if c.FinalConfidence <= 0 {
		c.FinalConfidence = d.FinalConfidence
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = d.MaxParallel
	}
	if c.FirstLines <= 0 {
		c.FirstLines = d.FirstLines
	}
	if c.LastLines < 0 {
		c.LastLines = d.LastLines
	}
	return c
}

// Result reports how resolution ended.
type Result struct {
	State   State
	Passes  int
	Queries int
}

// Resolver drives the repair loop against one oracle client.
type Resolver struct {
	client oracle.Client
	pages  *corpus.Corpus
	cfg    Config
	log    *slog.Logger
}

// New builds a resolver over the given corpus and client.
func New(client oracle.Client, pages *corpus.Corpus, cfg Config) *Resolver {
	return &Resolver{
		client: client,
		pages:  pages,
		cfg:    cfg.sanitized(),
		log:    slog.With("component", "resolver"),
	}
}

// Run repairs m until stable or out of iterations, returning the final
// snapshot. Failed re-queries keep existing labels; only credential
// rejection or context cancellation aborts with an error.
func (r *Resolver) Run(ctx context.Context, m *sections.LabelMap) (*sections.LabelMap, Result, error) {
	res := Result{State: StateStable}
	for pass := 1; pass <= r.cfg.MaxIterations; pass++ {
		m = m.Replace(sections.Smooth(m.Labels(), r.cfg.Smooth))
		labels := m.Labels()
		secs := sections.Aggregate(labels)
		suspects := r.findSuspects(secs, labels)
		if len(suspects) == 0 {
			r.log.Debug("resolution stable", "pass", pass, "sections", len(secs))
			res.State = StateStable
			return m, res, nil
		}
		res.State = StateSuspect
		r.log.Info("suspect sections found",
			"pass", pass,
			"suspects", len(suspects),
			"version", m.Version(),
		)

		reqs := r.buildRequeries(suspects, secs, labels, m.Len())
		if len(reqs) == 0 {
			// Every suspect page is pinned final; no query can move them.
			res.State = StateStable
			return m, res, nil
		}
		res.State = StateResolving
		res.Passes = pass
		res.Queries += len(reqs)

		merged, err := r.dispatch(ctx, reqs)
		if err != nil {
			return m, res, err
		}
		m = m.Merge(merged, r.cfg.FinalConfidence)
	}

	m = m.Replace(sections.Smooth(m.Labels(), r.cfg.Smooth))
	res.State = StateExhausted
	r.log.Warn("resolution exhausted; keeping best-known labels",
		"passes", res.Passes,
		"queries", res.Queries,
	)
	return m, res, nil
}

// findSuspects scans aggregated sections for islands, low-confidence runs
// and Unknown runs. Sections whose pages are all final are never suspect:
// no re-query could change them.
func (r *Resolver) findSuspects(secs []sections.Section, labels []sections.PageLabel) []sections.Section {
	var out []sections.Section
	for i, s := range secs {
		if !r.hasNonFinalPage(labels, s) {
			continue
		}
		switch {
		case s.Category == sections.Unknown:
			out = append(out, s)
		case s.AvgConfidence < r.cfg.LowConfidence:
			out = append(out, s)
		case r.isIsland(secs, i):
			out = append(out, s)
		}
	}
	return out
}

func (r *Resolver) hasNonFinalPage(labels []sections.PageLabel, s sections.Section) bool {
	for p := s.StartPage; p <= s.EndPage; p++ {
		if labels[p].Confidence < r.cfg.FinalConfidence || labels[p].Category == sections.Unknown {
			return true
		}
	}
	return false
}

// isIsland reports whether section i is small and wedged between two
// strictly larger sections sharing one category.
func (r *Resolver) isIsland(secs []sections.Section, i int) bool {
	s := secs[i]
	if s.NumPages() > r.cfg.SmallSectionPages || i == 0 || i == len(secs)-1 {
		return false
	}
	left, right := secs[i-1], secs[i+1]
	return left.Category == right.Category &&
		left.Category != sections.Unknown &&
		left.NumPages() > s.NumPages() &&
		right.NumPages() > s.NumPages()
}

// buildRequeries turns each suspect into targeted batch requests covering
// its non-final pages, with flanking pages as context and the neighboring
// sections named as hints.
func (r *Resolver) buildRequeries(suspects, secs []sections.Section, labels []sections.PageLabel, pageCount int) []*oracle.BatchRequest {
	var reqs []*oracle.BatchRequest
	for _, s := range suspects {
		for _, rng := range nonFinalRanges(labels, s, r.cfg.FinalConfidence) {
			window, ok := planner.Window(rng[0], rng[1], r.cfg.ContextMargin, pageCount)
			if !ok {
				continue
			}
			reqs = append(reqs, &oracle.BatchRequest{
				Batch:      window,
				Excerpts:   r.excerpts(window),
				FlankHints: flankHints(secs, s),
				Model:      r.cfg.Model,
			})
		}
	}
	return reqs
}

// nonFinalRanges splits the suspect's pages into maximal runs of
// re-queryable pages, skipping any pinned final.
func nonFinalRanges(labels []sections.PageLabel, s sections.Section, final float64) [][2]int {
	var out [][2]int
	start := -1
	for p := s.StartPage; p <= s.EndPage+1; p++ {
		open := p <= s.EndPage &&
			(labels[p].Confidence < final || labels[p].Category == sections.Unknown)
		switch {
		case open && start < 0:
			start = p
		case !open && start >= 0:
			out = append(out, [2]int{start, p - 1})
			start = -1
		}
	}
	return out
}

func (r *Resolver) excerpts(b planner.Batch) []oracle.PageExcerpt {
	out := make([]oracle.PageExcerpt, 0, b.CtxHi-b.CtxLo+1)
	for _, p := range b.Pages() {
		out = append(out, oracle.PageExcerpt{
			Page: p,
			Text: r.pages.Page(p).Excerpt(r.cfg.FirstLines, r.cfg.LastLines),
		})
	}
	return out
}

// flankHints names the sections neighboring the suspect so the oracle
// knows what the disputed pages sit between.
func flankHints(secs []sections.Section, s sections.Section) []string {
	var hints []string
	for i, sec := range secs {
		if sec.StartPage != s.StartPage {
			continue
		}
		if i > 0 {
			left := secs[i-1]
			hints = append(hints, fmt.Sprintf("pages %d-%d are %s", left.StartPage+1, left.EndPage+1, left.Category))
		}
		if i < len(secs)-1 {
			right := secs[i+1]
			hints = append(hints, fmt.Sprintf("pages %d-%d are %s", right.StartPage+1, right.EndPage+1, right.Category))
		}
		break
	}
	return hints
}

// dispatch runs the re-queries concurrently and flattens the replies in
// page order. Only one goroutine touches the label map afterwards; workers
// write to their own slot. A failed re-query contributes nothing, so the
// pages it covered keep their existing labels.
func (r *Resolver) dispatch(ctx context.Context, reqs []*oracle.BatchRequest) ([]sections.PageLabel, error) {
	slots := make([][]sections.PageLabel, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallel)
	for i, req := range reqs {
		g.Go(func() error {
			labels, err := r.client.ClassifyBatch(gctx, req)
			if err != nil {
				if errors.Is(err, oracle.ErrAuth) || gctx.Err() != nil {
					return err
				}
				r.log.Warn("re-query failed; keeping existing labels",
					"batch", req.Batch.String(),
					"error", err,
				)
				return nil
			}
			slots[i] = labels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var merged []sections.PageLabel
	for _, labels := range slots {
		merged = append(merged, labels...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Page < merged[j].Page })
	return merged, nil
}

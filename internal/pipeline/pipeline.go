// Package pipeline drives one end-to-end split run: plan batches, fan out
// the initial classification, repair discontinuities, fall back to vision
// for unreadable pages, reconcile stragglers, and build the validated
// section document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/binder/internal/calllog"
	"github.com/jackzampolin/binder/internal/corpus"
	"github.com/jackzampolin/binder/internal/emit"
	"github.com/jackzampolin/binder/internal/oracle"
	"github.com/jackzampolin/binder/internal/planner"
	"github.com/jackzampolin/binder/internal/reconcile"
	"github.com/jackzampolin/binder/internal/resolver"
	"github.com/jackzampolin/binder/internal/sections"
)

// VisionConfig tunes the image fallback pass.
type VisionConfig struct {
	Enabled bool
	// MaxPages caps vision queries per run; pages over the cap keep their
	// text-based labels.
	MaxPages int
	// LowConfidence and QualityThreshold pick candidates: a labeled page
	// qualifies when its confidence is below LowConfidence and its
	// extracted text scores below QualityThreshold. Unknown pages always
	// qualify, the text gave nothing to work with.
	LowConfidence    float64
	QualityThreshold float64
}

// Config carries the tuning for one run.
type Config struct {
	BatchSize   int
	Overlap     int
	MaxParallel int
	Model       string

	FirstLines int
	LastLines  int

	Smooth    sections.SmoothConfig
	Resolver  resolver.Config
	Reconcile reconcile.Config
	Vision    VisionConfig
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		BatchSize:   planner.DefaultBatchSize,
		Overlap:     planner.DefaultOverlap,
		MaxParallel: 4,
		FirstLines:  corpus.DefaultFirstLines,
		LastLines:   corpus.DefaultLastLines,
		Smooth:      sections.DefaultSmoothConfig(),
		Resolver:    resolver.DefaultConfig(),
		Reconcile:   reconcile.DefaultConfig(),
		Vision: VisionConfig{
			Enabled:          true,
			MaxPages:         20,
			LowConfidence:    70,
			QualityThreshold: 35,
		},
	}
}

func (c Config) sanitized() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Overlap < 0 {
		c.Overlap = d.Overlap
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
	if c.Vision.MaxPages <= 0 {
		c.Vision.MaxPages = d.Vision.MaxPages
	}
	if c.Vision.LowConfidence <= 0 {
		c.Vision.LowConfidence = d.Vision.LowConfidence
	}
	if c.Vision.QualityThreshold <= 0 {
		c.Vision.QualityThreshold = d.Vision.QualityThreshold
	}
	return c
}

// Summary reports what one run did.
type Summary struct {
	Pages       int    `json:"pages" yaml:"pages"`
	Sections    int    `json:"sections" yaml:"sections"`
	OracleCalls int64  `json:"oracle_calls" yaml:"oracle_calls"`
	VisionCalls int64  `json:"vision_calls" yaml:"vision_calls"`
	FailedCalls int64  `json:"failed_calls" yaml:"failed_calls"`
	Passes      int    `json:"passes" yaml:"passes"`
	State       string `json:"state" yaml:"state"`
	Elapsed     string `json:"elapsed" yaml:"elapsed"`
}

// Pipeline runs the stages against one corpus and oracle client.
type Pipeline struct {
	client oracle.Client
	pages  *corpus.Corpus
	cfg    Config
	rec    *calllog.Recorder
	log    *slog.Logger
}

// New builds a pipeline. rec may be nil to skip call recording. The
// resolver inherits the pipeline's smoothing, parallelism, and model so
// both stages query the oracle the same way.
func New(client oracle.Client, pages *corpus.Corpus, cfg Config, rec *calllog.Recorder) *Pipeline {
	cfg = cfg.sanitized()
	cfg.Resolver.Smooth = cfg.Smooth
	cfg.Resolver.MaxParallel = cfg.MaxParallel
	cfg.Resolver.Model = cfg.Model
	cfg.Resolver.FirstLines = cfg.FirstLines
	cfg.Resolver.LastLines = cfg.LastLines
	return &Pipeline{
		client: client,
		pages:  pages,
		cfg:    cfg,
		rec:    rec,
		log:    slog.With("component", "pipeline"),
	}
}

// Run executes the full pipeline and returns the validated document.
func (p *Pipeline) Run(ctx context.Context) (emit.Document, Summary, error) {
	start := time.Now()
	n := p.pages.Len()
	if n == 0 {
		return emit.Document{}, Summary{}, fmt.Errorf("corpus has no pages")
	}
	p.log.Info("run started",
		"pages", n,
		"oracle", p.client.Name(),
		"batch_size", p.cfg.BatchSize,
		"max_parallel", p.cfg.MaxParallel,
	)

	m, err := p.classifyAll(ctx, sections.NewLabelMap(n))
	if err != nil {
		return emit.Document{}, p.summary(start, nil, resolver.Result{}), err
	}
	if len(m.UnknownPages()) == n {
		return emit.Document{}, p.summary(start, nil, resolver.Result{}),
			fmt.Errorf("oracle produced no usable label for any of %d pages", n)
	}

	m, res, err := resolver.New(p.client, p.pages, p.cfg.Resolver).Run(ctx, m)
	if err != nil {
		return emit.Document{}, p.summary(start, nil, res), err
	}

	if p.cfg.Vision.Enabled {
		if m, err = p.visionPass(ctx, m); err != nil {
			return emit.Document{}, p.summary(start, nil, res), err
		}
	}

	if labels, merges := reconcile.New(p.pages, p.cfg.Reconcile).Apply(m.Labels()); merges > 0 {
		m = m.Replace(labels)
	}

	m = m.Replace(sections.FillUnknown(m.Labels()))

	secs := sections.Aggregate(m.Labels())
	if err := sections.ValidateCover(secs, n); err != nil {
		return emit.Document{}, p.summary(start, secs, res), err
	}
	doc, err := emit.Build(secs)
	if err != nil {
		return emit.Document{}, p.summary(start, secs, res), err
	}

	sum := p.summary(start, secs, res)
	p.log.Info("run finished",
		"sections", sum.Sections,
		"oracle_calls", sum.OracleCalls,
		"vision_calls", sum.VisionCalls,
		"state", sum.State,
		"elapsed", sum.Elapsed,
	)
	return doc, sum, nil
}

// classifyAll fans the initial batches out and merges the replies behind
// the errgroup barrier: workers fill their own slot and only this
// goroutine advances the label map. A failed batch leaves its pages
// Unknown for the resolver to pick up.
func (p *Pipeline) classifyAll(ctx context.Context, m *sections.LabelMap) (*sections.LabelMap, error) {
	plan := planner.Plan(p.pages.Len(), p.cfg.BatchSize, p.cfg.Overlap)
	slots := make([][]sections.PageLabel, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallel)
	for i, b := range plan {
		g.Go(func() error {
			req := &oracle.BatchRequest{
				Batch:     b,
				Excerpts:  p.excerpts(b),
				Model:     p.cfg.Model,
				RequestID: uuid.New().String(),
			}
			t0 := time.Now()
			labels, err := p.client.ClassifyBatch(gctx, req)
			p.rec.Record(calllog.New(calllog.KindAsk, p.client.Name(), p.cfg.Model,
				b.String(), b.Hi-b.Lo+1, time.Since(t0), err))
			if err != nil {
				if errors.Is(err, oracle.ErrAuth) || gctx.Err() != nil {
					return err
				}
				p.log.Warn("batch classification failed; its pages stay Unknown",
					"batch", b.String(), "error", err)
				return nil
			}
			slots[i] = labels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return m, err
	}
	var merged []sections.PageLabel
	for _, labels := range slots {
		merged = append(merged, labels...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Page < merged[j].Page })
	return m.Merge(merged, p.cfg.Resolver.FinalConfidence), nil
}

// visionPass re-examines unreadable pages with single-page image queries.
// It needs a client that can see and a corpus that can render; without
// both it is a silent no-op.
func (p *Pipeline) visionPass(ctx context.Context, m *sections.LabelMap) (*sections.LabelMap, error) {
	vc, ok := p.client.(oracle.VisionClient)
	if !ok {
		p.log.Debug("vision fallback unavailable", "oracle", p.client.Name())
		return m, nil
	}
	if !p.pages.HasPDF() {
		p.log.Debug("vision fallback skipped; no pdf attached")
		return m, nil
	}
	candidates := p.visionCandidates(m)
	if len(candidates) == 0 {
		return m, nil
	}
	p.log.Info("vision fallback", "pages", len(candidates))

	slots := make([]*sections.PageLabel, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallel)
	for i, page := range candidates {
		g.Go(func() error {
			img, mime, err := p.pages.PageImage(gctx, page)
			if err != nil {
				p.log.Warn("page image render failed", "page", page+1, "error", err)
				return nil
			}
			req := &oracle.PageRequest{
				Page:      page,
				Image:     img,
				MIME:      mime,
				Model:     p.cfg.Model,
				RequestID: uuid.New().String(),
			}
			t0 := time.Now()
			label, err := vc.ClassifyPage(gctx, req)
			p.rec.Record(calllog.New(calllog.KindVision, p.client.Name(), p.cfg.Model,
				fmt.Sprintf("page %d", page+1), 1, time.Since(t0), err))
			if err != nil {
				if errors.Is(err, oracle.ErrAuth) || gctx.Err() != nil {
					return err
				}
				p.log.Warn("vision query failed; keeping existing label",
					"page", page+1, "error", err)
				return nil
			}
			slots[i] = &label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return m, err
	}
	var merged []sections.PageLabel
	for _, l := range slots {
		if l != nil {
			merged = append(merged, *l)
		}
	}
	if len(merged) == 0 {
		return m, nil
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Page < merged[j].Page })
	m = m.Merge(merged, p.cfg.Resolver.FinalConfidence)
	return m.Replace(sections.Smooth(m.Labels(), p.cfg.Smooth)), nil
}

// visionCandidates picks the pages worth an image query, worst first, then
// returns them capped and in page order for dispatch.
func (p *Pipeline) visionCandidates(m *sections.LabelMap) []int {
	type cand struct {
		page int
		conf float64
	}
	var cands []cand
	for _, l := range m.Labels() {
		switch {
		case l.Category == sections.Unknown:
			cands = append(cands, cand{l.Page, -1})
		case l.Confidence < p.cfg.Vision.LowConfidence:
			if corpus.QualityScore(p.pages.Page(l.Page).Text()) < p.cfg.Vision.QualityThreshold {
				cands = append(cands, cand{l.Page, l.Confidence})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].conf < cands[j].conf })
	if len(cands) > p.cfg.Vision.MaxPages {
		cands = cands[:p.cfg.Vision.MaxPages]
	}
	pages := make([]int, len(cands))
	for i, c := range cands {
		pages[i] = c.page
	}
	sort.Ints(pages)
	return pages
}

func (p *Pipeline) excerpts(b planner.Batch) []oracle.PageExcerpt {
	out := make([]oracle.PageExcerpt, 0, b.CtxHi-b.CtxLo+1)
	for _, page := range b.Pages() {
		out = append(out, oracle.PageExcerpt{
			Page: page,
			Text: p.pages.Page(page).Excerpt(p.cfg.FirstLines, p.cfg.LastLines),
		})
	}
	return out
}

func (p *Pipeline) summary(start time.Time, secs []sections.Section, res resolver.Result) Summary {
	b := p.client.Budget().Snapshot()
	return Summary{
		Pages:       p.pages.Len(),
		Sections:    len(secs),
		OracleCalls: b.Asks,
		VisionCalls: b.Visions,
		FailedCalls: b.Failures,
		Passes:      res.Passes,
		State:       res.State.String(),
		Elapsed:     time.Since(start).Round(time.Millisecond).String(),
	}
}

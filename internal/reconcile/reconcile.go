// Package reconcile merges tiny leftover sections into a neighbor whose
// text reads like theirs. It runs after the resolver has spent its query
// budget and costs zero oracle calls: similarity is computed over page
// fingerprints alone.
package reconcile

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/jackzampolin/binder/internal/corpus"
	"github.com/jackzampolin/binder/internal/sections"
)

// Config tunes which sections count as isolated and how alike the text
// must read before a merge.
type Config struct {
	// MaxPages is the isolated section size cap. Keep it below the
	// resolver's small-section threshold so the two stages do not fight
	// over the same sections.
	MaxPages int
	// MinSimilarity is the Sørensen-Dice acceptance floor.
	MinSimilarity float64
	// FirstLines and LastLines select the salient lines per page for
	// fingerprints.
	FirstLines int
	LastLines  int
}

// DefaultConfig returns the tuning used by the pipeline.
func DefaultConfig() Config {
	return Config{
		MaxPages:      2,
		MinSimilarity: 0.75,
		FirstLines:    corpus.DefaultFirstLines,
		LastLines:     corpus.DefaultLastLines,
	}
}

func (c Config) sanitized() Config {
	d := DefaultConfig()
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MinSimilarity <= 0 || c.MinSimilarity > 1 {
		c.MinSimilarity = d.MinSimilarity
	}
	if c.FirstLines <= 0 {
		c.FirstLines = d.FirstLines
	}
	if c.LastLines < 0 {
		c.LastLines = d.LastLines
	}
	return c
}

// Reconciler relabels isolated sections by text similarity.
type Reconciler struct {
	pages  *corpus.Corpus
	cfg    Config
	metric *metrics.SorensenDice
	log    *slog.Logger
}

// New builds a reconciler over the corpus the labels describe.
func New(pages *corpus.Corpus, cfg Config) *Reconciler {
	metric := metrics.NewSorensenDice()
	metric.CaseSensitive = false
	return &Reconciler{
		pages:  pages,
		cfg:    cfg.sanitized(),
		metric: metric,
		log:    slog.With("component", "reconcile"),
	}
}

// Apply merges isolated sections into the best-matching neighbor and
// returns the updated labels with the number of merges performed. Merged
// pages adopt the neighbor's category but keep their own confidences.
func (r *Reconciler) Apply(labels []sections.PageLabel) ([]sections.PageLabel, int) {
	out := slices.Clone(labels)
	merges := 0
	for {
		secs := sections.Aggregate(out)
		if len(secs) < 2 {
			return out, merges
		}
		merged := false
		for i, s := range secs {
			target, score, ok := r.bestNeighbor(secs, i)
			if !ok {
				continue
			}
			for p := s.StartPage; p <= s.EndPage; p++ {
				out[p].Category = target.Category
			}
			r.log.Info("merged isolated section",
				"section", s.String(),
				"into", target.Category.String(),
				"similarity", score,
			)
			merges++
			merged = true
			break
		}
		if !merged {
			return out, merges
		}
	}
}

// bestNeighbor scores section i against every other section and returns
// the adjacent section to merge into. The merge is refused when no
// adjacent candidate clears the floor or when some non-adjacent section
// reads even more alike, since that means the label is probably right and
// the section is genuinely its own thing.
func (r *Reconciler) bestNeighbor(secs []sections.Section, i int) (sections.Section, float64, bool) {
	s := secs[i]
	if s.NumPages() > r.cfg.MaxPages {
		return sections.Section{}, 0, false
	}
	own := r.fingerprint(s.StartPage, s.EndPage)
	if strings.TrimSpace(own) == "" {
		return sections.Section{}, 0, false
	}
	bestAdj := -1
	var bestAdjScore, bestOtherScore float64
	for j := range secs {
		if j == i {
			continue
		}
		score := strutil.Similarity(own, r.edgeFingerprint(secs[j], s), r.metric)
		if (j == i-1 || j == i+1) && secs[j].Category != sections.Unknown {
			if score > bestAdjScore {
				bestAdj, bestAdjScore = j, score
			}
		} else if score > bestOtherScore {
			bestOtherScore = score
		}
	}
	if bestAdj < 0 || bestAdjScore < r.cfg.MinSimilarity || bestOtherScore > bestAdjScore {
		return sections.Section{}, 0, false
	}
	return secs[bestAdj], bestAdjScore, true
}

// edgeFingerprint fingerprints at most len(s) pages of other, taken from
// the side facing s, so similarity compares text at equal scale.
func (r *Reconciler) edgeFingerprint(other, s sections.Section) string {
	lo, hi := other.StartPage, other.EndPage
	if k := s.NumPages(); other.NumPages() > k {
		if other.StartPage > s.EndPage {
			hi = lo + k - 1
		} else {
			lo = hi - k + 1
		}
	}
	return r.fingerprint(lo, hi)
}

func (r *Reconciler) fingerprint(lo, hi int) string {
	var b strings.Builder
	for p := lo; p <= hi && p < r.pages.Len(); p++ {
		for _, line := range r.pages.Page(p).Salient(r.cfg.FirstLines, r.cfg.LastLines) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

package sections

import "slices"

// SmoothConfig tunes the window-majority filter.
type SmoothConfig struct {
	// Window is the sliding window width. Even values are rounded up; the
	// window is clamped at document edges.
	Window int
	// MinRun protects pages whose same-category run is already at least
	// this long.
	MinRun int
	// HighConfidence protects labels at or above this confidence from
	// being rewritten regardless of their neighborhood.
	HighConfidence float64
}

// DefaultSmoothConfig matches the values that worked on real minute books:
// a three page window, lone pages only, and an 85 point protection bar.
func DefaultSmoothConfig() SmoothConfig {
	return SmoothConfig{Window: 3, MinRun: 2, HighConfidence: 85}
}

func (c SmoothConfig) sanitized() SmoothConfig {
	if c.Window < 3 {
		c.Window = 3
	}
	if c.Window%2 == 0 {
		c.Window++
	}
	if c.MinRun < 1 {
		c.MinRun = DefaultSmoothConfig().MinRun
	}
	if c.HighConfidence <= 0 {
		c.HighConfidence = DefaultSmoothConfig().HighConfidence
	}
	return c
}

// Smooth returns a denoised copy of labels. Each pass replaces a page's
// category with the strict majority of its window when the page disagrees
// with that majority, sits in a run shorter than MinRun, and holds a
// confidence below HighConfidence. Replaced labels keep 90% of their
// confidence. Passes repeat until a fixed point, so the filter is
// idempotent: Smooth(Smooth(l)) equals Smooth(l). The input is never
// mutated and pages never smooth to Unknown.
func Smooth(labels []PageLabel, cfg SmoothConfig) []PageLabel {
	cfg = cfg.sanitized()
	out := slices.Clone(labels)
	for pass := 0; pass <= len(out); pass++ {
		if !smoothPass(out, cfg) {
			break
		}
	}
	return out
}

// smoothPass applies one simultaneous vote over out, reading categories
// from a snapshot so earlier rewrites in the pass cannot influence later
// votes. Reports whether anything changed.
func smoothPass(out []PageLabel, cfg SmoothConfig) bool {
	src := slices.Clone(out)
	half := cfg.Window / 2
	changed := false
	for i := range src {
		cur := src[i]
		if cur.Category != Unknown && cur.Confidence >= cfg.HighConfidence {
			continue
		}
		if runLength(src, i) >= cfg.MinRun {
			continue
		}
		maj, votes, ok := windowMajority(src, i, half)
		if !ok || maj == cur.Category {
			continue
		}
		conf := cur.Confidence * 0.9
		if cur.Category == Unknown {
			conf = meanConfidence(votes) * 0.9
		}
		out[i].Category = maj
		out[i].Confidence = conf
		changed = true
	}
	return changed
}

// runLength counts the contiguous pages around i sharing i's category.
func runLength(labels []PageLabel, i int) int {
	cat := labels[i].Category
	n := 1
	for j := i - 1; j >= 0 && labels[j].Category == cat; j-- {
		n++
	}
	for j := i + 1; j < len(labels) && labels[j].Category == cat; j++ {
		n++
	}
	return n
}

// windowMajority tallies the known categories in the clamped window around
// i. It returns the winner and its supporting labels only when the winner
// holds a strict majority of the known votes with at least two of them;
// Unknown pages do not vote, so a page can never be smoothed to Unknown.
func windowMajority(labels []PageLabel, i, half int) (Category, []PageLabel, bool) {
	lo := max(0, i-half)
	hi := min(len(labels)-1, i+half)
	counts := make(map[Category]int)
	total := 0
	for j := lo; j <= hi; j++ {
		if c := labels[j].Category; c != Unknown {
			counts[c]++
			total++
		}
	}
	best, bestN, tie := Unknown, 0, false
	for c, n := range counts {
		switch {
		case n > bestN:
			best, bestN, tie = c, n, false
		case n == bestN:
			tie = true
		}
	}
	if tie || bestN < 2 || bestN*2 <= total {
		return Unknown, nil, false
	}
	votes := make([]PageLabel, 0, bestN)
	for j := lo; j <= hi; j++ {
		if labels[j].Category == best {
			votes = append(votes, labels[j])
		}
	}
	return best, votes, true
}

func meanConfidence(labels []PageLabel) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for _, l := range labels {
		sum += l.Confidence
	}
	return sum / float64(len(labels))
}

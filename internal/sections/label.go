package sections

// Source records which oracle operation produced a label.
type Source int

const (
	SourceAsk Source = iota
	SourceVision
)

func (s Source) String() string {
	switch s {
	case SourceVision:
		return "vision"
	default:
		return "ask"
	}
}

// PageLabel is the current classification of a single page. Page is the
// 0-indexed position in the corpus and Confidence is in [0, 100].
type PageLabel struct {
	Page       int
	Category   Category
	Confidence float64
	Source     Source
}

// LabelMap is an immutable snapshot of the per-page labels. Merge returns a
// new snapshot rather than mutating, so a snapshot handed to concurrent
// readers stays valid while a single writer advances the version.
type LabelMap struct {
	version int
	labels  []PageLabel
}

// NewLabelMap returns version 0 with every page Unknown at confidence 0.
func NewLabelMap(pageCount int) *LabelMap {
	labels := make([]PageLabel, pageCount)
	for i := range labels {
		labels[i].Page = i
	}
	return &LabelMap{labels: labels}
}

func (m *LabelMap) Version() int { return m.version }
func (m *LabelMap) Len() int     { return len(m.labels) }

// Label returns the current label for page. Out-of-range pages report
// Unknown.
func (m *LabelMap) Label(page int) PageLabel {
	if page < 0 || page >= len(m.labels) {
		return PageLabel{Page: page}
	}
	return m.labels[page]
}

// Labels returns a copy of the current labels in page order.
func (m *LabelMap) Labels() []PageLabel {
	out := make([]PageLabel, len(m.labels))
	copy(out, m.labels)
	return out
}

// UnknownPages lists the pages whose category is still Unknown.
func (m *LabelMap) UnknownPages() []int {
	var out []int
	for _, l := range m.labels {
		if l.Category == Unknown {
			out = append(out, l.Page)
		}
	}
	return out
}

// Merge applies results to a copy of the map and returns the next version.
// A newer result supersedes the current label except that Unknown never
// replaces a known category, and a label at or above finalConfidence is
// only replaced by a strictly higher confidence. Results for pages outside
// the map are dropped. Within results, later entries win subject to the
// same rules.
func (m *LabelMap) Merge(results []PageLabel, finalConfidence float64) *LabelMap {
	next := &LabelMap{
		version: m.version + 1,
		labels:  make([]PageLabel, len(m.labels)),
	}
	copy(next.labels, m.labels)
	for _, r := range results {
		if r.Page < 0 || r.Page >= len(next.labels) {
			continue
		}
		cur := next.labels[r.Page]
		if r.Category == Unknown && cur.Category != Unknown {
			continue
		}
		if cur.Category != Unknown && cur.Confidence >= finalConfidence && r.Confidence <= cur.Confidence {
			continue
		}
		next.labels[r.Page] = r
	}
	return next
}

// Replace returns a new version whose labels are exactly labels; used after
// pure transforms like smoothing that rewrite the whole sequence.
func (m *LabelMap) Replace(labels []PageLabel) *LabelMap {
	next := &LabelMap{
		version: m.version + 1,
		labels:  make([]PageLabel, len(m.labels)),
	}
	copy(next.labels, m.labels)
	for _, l := range labels {
		if l.Page < 0 || l.Page >= len(next.labels) {
			continue
		}
		next.labels[l.Page] = l
	}
	return next
}

package oracle

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackzampolin/binder/internal/sections"
)

var (
	intPattern   = regexp.MustCompile(`\d+`)
	floatPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseReply scans free-form oracle output for "page, category, confidence"
// triples. Page numbers are 1-based on the wire; the category field may be
// a 1-based id or a section name. Code fences, headers, prose and any line
// that does not yield a page, a known category and a confidence are
// skipped. Later duplicates win. Labels come back 0-based, sorted by page.
func ParseReply(text string) []sections.PageLabel {
	byPage := make(map[int]sections.PageLabel)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		label, ok := parseLine(line)
		if !ok {
			continue
		}
		byPage[label.Page] = label
	}
	out := make([]sections.PageLabel, 0, len(byPage))
	for _, l := range byPage {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

func parseLine(line string) (sections.PageLabel, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return sections.PageLabel{}, false
	}
	pageStr := intPattern.FindString(fields[0])
	if pageStr == "" {
		return sections.PageLabel{}, false
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return sections.PageLabel{}, false
	}

	cat := parseCategoryField(fields[1])
	if cat == sections.Unknown {
		return sections.PageLabel{}, false
	}

	confStr := floatPattern.FindString(fields[2])
	if confStr == "" && len(fields) > 3 {
		// Category names with stray commas push the confidence rightward.
		confStr = floatPattern.FindString(fields[len(fields)-1])
	}
	if confStr == "" {
		return sections.PageLabel{}, false
	}
	conf, err := strconv.ParseFloat(confStr, 64)
	if err != nil {
		return sections.PageLabel{}, false
	}
	conf = min(100, max(0, conf))

	return sections.PageLabel{Page: page - 1, Category: cat, Confidence: conf}, true
}

// parseCategoryField accepts a bare 1-based id or a category name. A header
// line like "page, category, confidence" falls through both and is skipped.
func parseCategoryField(field string) sections.Category {
	field = strings.TrimSpace(field)
	if id, err := strconv.Atoi(field); err == nil {
		cat, _ := sections.FromID(id)
		return cat
	}
	return sections.ParseCategory(field)
}

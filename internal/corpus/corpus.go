// Package corpus loads the per-page extracted text of a scanned minute
// book and prepares the page excerpts sent to the classification oracle.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Salient line defaults: the opening lines carry headings and the closing
// lines carry signatures and stamps, which is where section identity lives.
const (
	DefaultFirstLines = 3
	DefaultLastLines  = 2
)

// Page is one scanned page's extracted text. Index is 0-based; loaders
// normalize 1-based page numbers from input files.
type Page struct {
	Index int
	Lines []string
}

// Text joins the page lines.
func (p Page) Text() string {
	return strings.Join(p.Lines, "\n")
}

// cleaned drops blank and symbol-only lines and folds single-word lines
// into their predecessor, so stray OCR fragments do not crowd out real
// headings.
func (p Page) cleaned() []string {
	out := make([]string, 0, len(p.Lines))
	for _, line := range p.Lines {
		line = strings.TrimSpace(line)
		if !hasAlnum(line) {
			continue
		}
		if len(out) > 0 && !strings.ContainsAny(line, " \t") {
			out[len(out)-1] += " " + line
			continue
		}
		out = append(out, line)
	}
	return out
}

// Salient returns up to firstN leading and lastN trailing cleaned lines.
func (p Page) Salient(firstN, lastN int) []string {
	if firstN < 0 {
		firstN = DefaultFirstLines
	}
	if lastN < 0 {
		lastN = DefaultLastLines
	}
	cleaned := p.cleaned()
	if len(cleaned) <= firstN+lastN {
		return cleaned
	}
	out := make([]string, 0, firstN+lastN)
	out = append(out, cleaned[:firstN]...)
	out = append(out, cleaned[len(cleaned)-lastN:]...)
	return out
}

// Excerpt renders the salient lines for a prompt, marking elided middles.
func (p Page) Excerpt(firstN, lastN int) string {
	if firstN < 0 {
		firstN = DefaultFirstLines
	}
	if lastN < 0 {
		lastN = DefaultLastLines
	}
	lines := p.Salient(firstN, lastN)
	if len(lines) == 0 {
		return "(no readable text)"
	}
	if len(p.cleaned()) > len(lines) {
		head := lines[:min(firstN, len(lines))]
		tail := lines[len(head):]
		return strings.Join(head, "\n") + "\n[...]\n" + strings.Join(tail, "\n")
	}
	return strings.Join(lines, "\n")
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Corpus is the ordered page collection for one document.
type Corpus struct {
	pages   []Page
	pdfPath string
}

// New builds a corpus from pages already in order, reassigning indexes.
func New(pages []Page) *Corpus {
	out := make([]Page, len(pages))
	copy(out, pages)
	for i := range out {
		out[i].Index = i
	}
	return &Corpus{pages: out}
}

// Len returns the page count.
func (c *Corpus) Len() int { return len(c.pages) }

// Page returns the page at index i.
func (c *Corpus) Page(i int) Page { return c.pages[i] }

// Pages returns the pages in order. Callers must not mutate them.
func (c *Corpus) Pages() []Page { return c.pages }

// Load reads a corpus from path: a pages JSON file or a directory of
// per-page .txt files.
func Load(ctx context.Context, path string) (*Corpus, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat corpus input: %w", err)
	}
	if info.IsDir() {
		return LoadDir(ctx, path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported corpus input %q (want a .json file or a directory of .txt pages)", path)
	}
}

type pageEntry struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// LoadJSON reads pages from a JSON file. Two shapes are accepted: an object
// {"pages": [{"page": 1, "text": "..."}]} with 1-based page numbers, or a
// bare array of page text strings in order.
func LoadJSON(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pages file: %w", err)
	}
	var texts []string

	trimmed := strings.TrimLeftFunc(string(data), unicode.IsSpace)
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &texts); err != nil {
			return nil, fmt.Errorf("parse pages array: %w", err)
		}
	} else {
		var doc struct {
			Pages []pageEntry `json:"pages"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse pages file: %w", err)
		}
		entries := doc.Pages
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
		for i, e := range entries {
			if e.Page > 0 && e.Page != i+1 {
				return nil, fmt.Errorf("pages file skips page %d (found %d)", i+1, e.Page)
			}
			texts = append(texts, e.Text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("pages file %s contains no pages", path)
	}
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{Index: i, Lines: splitLines(t)}
	}
	return &Corpus{pages: pages}, nil
}

var pageFileNum = regexp.MustCompile(`(\d+)`)

// LoadDir reads every .txt file in dir as one page, ordered by the first
// number in the filename, falling back to name order. Files are read
// concurrently.
func LoadDir(ctx context.Context, dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pages directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .txt pages in %s", dir)
	}
	sort.Slice(names, func(i, j int) bool {
		ni, iok := firstNumber(names[i])
		nj, jok := firstNumber(names[j])
		if iok && jok && ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	pages := make([]Page, len(names))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, name := range names {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("read page %s: %w", name, err)
			}
			pages[i] = Page{Index: i, Lines: splitLines(string(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Corpus{pages: pages}, nil
}

func firstNumber(name string) (int, bool) {
	m := pageFileNum.FindString(name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadJSONObjectShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.json")
	writeFile(t, path, `{"pages":[
		{"page":2,"text":"second page"},
		{"page":1,"text":"BY-LAW NO. 1\nof the Corporation"},
		{"page":3,"text":"third page"}
	]}`)
	c, err := LoadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if got := c.Page(0).Lines[0]; got != "BY-LAW NO. 1" {
		t.Errorf("page 0 line 0 = %q, pages not sorted by number", got)
	}
	if c.Page(2).Index != 2 {
		t.Errorf("page index = %d, want 2", c.Page(2).Index)
	}
}

func TestLoadJSONArrayShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.json")
	writeFile(t, path, `["first","second","third"]`)
	c, err := LoadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 || c.Page(1).Text() != "second" {
		t.Fatalf("unexpected corpus: len %d", c.Len())
	}
}

func TestLoadJSONRejectsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.json")
	writeFile(t, path, `{"pages":[{"page":1,"text":"a"},{"page":3,"text":"b"}]}`)
	if _, err := LoadJSON(path); err == nil {
		t.Fatal("expected an error for a page number gap")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 12; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("page-%d.txt", i)), fmt.Sprintf("page %d", i))
	}
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored")
	c, err := LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 12 {
		t.Fatalf("len = %d, want 12", c.Len())
	}
	// Numeric ordering, not lexicographic: page-10 sorts after page-9.
	if got := c.Page(9).Text(); got != "page 10" {
		t.Errorf("page index 9 = %q, want %q", got, "page 10")
	}
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0001.txt"), "only page")
	c, err := Load(context.Background(), dir)
	if err != nil || c.Len() != 1 {
		t.Fatalf("dir dispatch failed: %v", err)
	}
	bad := filepath.Join(dir, "pages.csv")
	writeFile(t, bad, "a,b")
	if _, err := Load(context.Background(), bad); err == nil {
		t.Fatal("expected an error for unsupported input")
	}
}

func TestSalientAndExcerpt(t *testing.T) {
	p := Page{Lines: []string{
		"MINUTES OF THE ANNUAL MEETING",
		"---",
		"of the shareholders of",
		"Example Holdings Inc.",
		"held on January 5, 1998",
		"",
		"The meeting was called to order.",
		"It was resolved that the financial statements be approved.",
		"Directors present: J. Smith, A. Tremblay.",
		"***",
		"Secretary",
	}}
	got := p.Salient(3, 2)
	want := []string{
		"MINUTES OF THE ANNUAL MEETING",
		"of the shareholders of",
		"Example Holdings Inc.",
		"It was resolved that the financial statements be approved.",
		"Directors present: J. Smith, A. Tremblay. Secretary",
	}
	if len(got) != len(want) {
		t.Fatalf("salient = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("salient[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !strings.Contains(p.Excerpt(3, 2), "[...]") {
		t.Error("excerpt does not mark the elided middle")
	}

	short := Page{Lines: []string{"one line"}}
	if short.Excerpt(3, 2) != "one line" {
		t.Errorf("short excerpt = %q", short.Excerpt(3, 2))
	}
	empty := Page{Lines: []string{"", "###"}}
	if empty.Excerpt(3, 2) != "(no readable text)" {
		t.Errorf("empty excerpt = %q", empty.Excerpt(3, 2))
	}
}

func TestCleanedFoldsSingleWordLines(t *testing.T) {
	p := Page{Lines: []string{
		"SHAREHOLDER REGISTER",
		"continued",
		"as at December 31",
	}}
	got := p.Salient(3, 2)
	want := []string{"SHAREHOLDER REGISTER continued", "as at December 31"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("salient = %v, want %v", got, want)
	}
}

func TestQualityScore(t *testing.T) {
	clean := "The board of directors approved the annual resolutions at the meeting held in Montreal."
	garbage := "��� �� ����"
	if got := QualityScore(clean); got < 70 {
		t.Errorf("clean text scored %v, want >= 70", got)
	}
	if got := QualityScore(garbage); got > 35 {
		t.Errorf("garbage scored %v, want <= 35", got)
	}
	if got := QualityScore(""); got != 0 {
		t.Errorf("empty text scored %v, want 0", got)
	}
	if QualityScore(clean) <= QualityScore(garbage) {
		t.Error("clean text must outscore garbage")
	}
}

func TestAttachPDFMissing(t *testing.T) {
	c := New([]Page{{Lines: []string{"x"}}})
	if err := c.AttachPDF(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected an error for a missing pdf")
	}
	if c.HasPDF() {
		t.Error("failed attach left a pdf path behind")
	}
	if _, _, err := c.PageImage(context.Background(), 0); err == nil {
		t.Fatal("expected an error without an attached pdf")
	}
}

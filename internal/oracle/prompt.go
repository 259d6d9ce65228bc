package oracle

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/jackzampolin/binder/internal/sections"
)

//go:embed classify.tmpl
var classifyTmpl string

//go:embed vision.tmpl
var visionTmpl string

var (
	classifyTemplate = template.Must(template.New("classify").Parse(classifyTmpl))
	visionTemplate   = template.Must(template.New("vision").Parse(visionTmpl))
)

type categoryRow struct {
	ID   int
	Name string
}

func categoryRows() []categoryRow {
	rows := make([]categoryRow, 0, sections.NumCategories)
	for _, c := range sections.Categories() {
		rows = append(rows, categoryRow{ID: int(c), Name: c.String()})
	}
	return rows
}

type promptPage struct {
	Number  int
	Context bool
	Excerpt string
}

// ClassifyPrompt renders the batch prompt: the section rubric, any
// flanking-section hints, the reply contract, and the page excerpts with
// 1-based page numbers matching the wire format.
func ClassifyPrompt(req *BatchRequest) (string, error) {
	pages := make([]promptPage, 0, len(req.Excerpts))
	for _, e := range req.Excerpts {
		pages = append(pages, promptPage{
			Number:  e.Page + 1,
			Context: !req.Batch.Primary(e.Page),
			Excerpt: e.Text,
		})
	}
	data := struct {
		Categories []categoryRow
		FlankHints []string
		Pages      []promptPage
	}{categoryRows(), req.FlankHints, pages}

	var buf bytes.Buffer
	if err := classifyTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render classify prompt: %w", err)
	}
	return buf.String(), nil
}

// VisionPrompt renders the single-page prompt for image queries. The page
// argument is 0-based; the prompt shows it 1-based.
func VisionPrompt(page int) (string, error) {
	data := struct {
		Number     int
		Categories []categoryRow
	}{page + 1, categoryRows()}

	var buf bytes.Buffer
	if err := visionTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render vision prompt: %w", err)
	}
	return buf.String(), nil
}

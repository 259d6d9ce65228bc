// Package emit renders the final section index. The output document is
// validated against an embedded JSON schema before anything touches disk,
// so a bad run aborts instead of leaving a partial or malformed file.
package emit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/binder/internal/sections"
)

//go:embed schema.json
var schemaJSON []byte

var outputSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("emit: load embedded schema: %v", err))
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("emit: compile embedded schema: %v", err))
	}
	return schema
}

// SectionOut is one emitted section. Pages are 1-indexed and inclusive.
type SectionOut struct {
	Name      string `json:"name" yaml:"name"`
	StartPage int    `json:"startPage" yaml:"startPage"`
	EndPage   int    `json:"endPage" yaml:"endPage"`
}

// Document is the emitted result document.
type Document struct {
	Sections []SectionOut `json:"sections" yaml:"sections"`
}

// Build converts internal 0-indexed sections to the output document. Any
// Unknown section is an error: the pipeline absorbs those before emitting.
func Build(secs []sections.Section) (Document, error) {
	doc := Document{Sections: make([]SectionOut, 0, len(secs))}
	for _, s := range secs {
		if !s.Category.Valid() {
			return Document{}, fmt.Errorf("cannot emit unresolved section %s", s)
		}
		doc.Sections = append(doc.Sections, SectionOut{
			Name:      s.Category.String(),
			StartPage: s.StartPage + 1,
			EndPage:   s.EndPage + 1,
		})
	}
	return doc, nil
}

// Validate checks doc against the embedded schema plus the ordering rules
// the schema cannot express: sections ascending and contiguous from page 1
// through pageCount.
func Validate(doc Document, pageCount int) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := outputSchema.Validate(generic); err != nil {
		return fmt.Errorf("document does not match output schema: %w", err)
	}

	if len(doc.Sections) == 0 {
		return fmt.Errorf("document has no sections")
	}
	next := 1
	for _, s := range doc.Sections {
		if s.StartPage != next {
			return fmt.Errorf("section %q starts at page %d, want %d", s.Name, s.StartPage, next)
		}
		if s.EndPage < s.StartPage {
			return fmt.Errorf("section %q ends before it starts (%d < %d)", s.Name, s.EndPage, s.StartPage)
		}
		next = s.EndPage + 1
	}
	if pageCount > 0 && next != pageCount+1 {
		return fmt.Errorf("sections cover pages 1-%d, want 1-%d", next-1, pageCount)
	}
	return nil
}

// WriteFile validates doc and writes it as indented JSON. The write goes
// through a temp file and rename in the target directory.
func WriteFile(path string, doc Document, pageCount int) error {
	if err := Validate(doc, pageCount); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".binder-out-*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

// Format selects how Fprint renders a value.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a CLI flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Fprint writes data to w in the given format.
func Fprint(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

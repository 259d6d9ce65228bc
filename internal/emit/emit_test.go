package emit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/binder/internal/sections"
)

func sampleDoc() Document {
	return Document{Sections: []SectionOut{
		{Name: "Articles & Amendments", StartPage: 1, EndPage: 12},
		{Name: "By Laws", StartPage: 13, EndPage: 30},
		{Name: "Minutes & Resolutions", StartPage: 31, EndPage: 90},
	}}
}

func TestBuildConvertsToOneIndexed(t *testing.T) {
	doc, err := Build([]sections.Section{
		{Category: sections.ArticlesAmendments, StartPage: 0, EndPage: 11},
		{Category: sections.ByLaws, StartPage: 12, EndPage: 29},
	})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Sections[0].StartPage != 1 || doc.Sections[0].EndPage != 12 {
		t.Fatalf("section 0 = %+v, want pages 1-12", doc.Sections[0])
	}
	if doc.Sections[1].Name != "By Laws" {
		t.Fatalf("section 1 name = %q", doc.Sections[1].Name)
	}
}

func TestBuildRejectsUnknown(t *testing.T) {
	_, err := Build([]sections.Section{
		{Category: sections.Unknown, StartPage: 0, EndPage: 3},
	})
	if err == nil {
		t.Fatal("expected an error for an unresolved section")
	}
}

func TestValidateAcceptsCanonicalDocument(t *testing.T) {
	if err := Validate(sampleDoc(), 90); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]struct {
		doc   Document
		pages int
	}{
		"non-canonical name": {
			doc: Document{Sections: []SectionOut{
				{Name: "Bylaws", StartPage: 1, EndPage: 90},
			}},
			pages: 90,
		},
		"zero start page": {
			doc: Document{Sections: []SectionOut{
				{Name: "By Laws", StartPage: 0, EndPage: 90},
			}},
			pages: 90,
		},
		"gap between sections": {
			doc: Document{Sections: []SectionOut{
				{Name: "By Laws", StartPage: 1, EndPage: 10},
				{Name: "Minutes & Resolutions", StartPage: 12, EndPage: 90},
			}},
			pages: 90,
		},
		"overlap between sections": {
			doc: Document{Sections: []SectionOut{
				{Name: "By Laws", StartPage: 1, EndPage: 10},
				{Name: "Minutes & Resolutions", StartPage: 10, EndPage: 90},
			}},
			pages: 90,
		},
		"inverted section": {
			doc: Document{Sections: []SectionOut{
				{Name: "By Laws", StartPage: 1, EndPage: 10},
				{Name: "Minutes & Resolutions", StartPage: 11, EndPage: 9},
			}},
			pages: 90,
		},
		"short cover": {
			doc: Document{Sections: []SectionOut{
				{Name: "By Laws", StartPage: 1, EndPage: 89},
			}},
			pages: 90,
		},
		"empty": {
			doc:   Document{},
			pages: 90,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Validate(tc.doc, tc.pages); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sections.json")
	if err := WriteFile(path, sampleDoc(), 90); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Sections) != 3 || doc.Sections[2].EndPage != 90 {
		t.Fatalf("round-tripped document = %+v", doc)
	}
}

func TestWriteFileRefusesInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sections.json")
	bad := Document{Sections: []SectionOut{{Name: "Bylaws", StartPage: 1, EndPage: 9}}}
	if err := WriteFile(path, bad, 9); err == nil {
		t.Fatal("expected a schema error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("invalid document left a file behind")
	}
}

func TestFprintFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := Fprint(&buf, FormatJSON, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\"startPage\": 1") {
		t.Fatalf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := Fprint(&buf, FormatYAML, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "startPage: 1") {
		t.Fatalf("yaml output = %q", buf.String())
	}

	if err := Fprint(&buf, Format("toml"), sampleDoc()); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("yaml"); err != nil || f != FormatYAML {
		t.Fatalf("ParseFormat(yaml) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected an error for xml")
	}
}

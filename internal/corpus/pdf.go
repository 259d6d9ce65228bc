package corpus

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pageImageDPI is the pdftoppm render resolution. Classification only needs
// headings and layout to be legible, so this stays well below archival DPI
// to keep vision payloads small.
const pageImageDPI = "150"

// AttachPDF associates the source scan with the corpus so pages can be
// re-read as images. The PDF page count must match the corpus exactly; a
// mismatch means the text extraction and the scan disagree about the
// document and every page index downstream would be suspect.
func (c *Corpus) AttachPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return fmt.Errorf("count pdf pages: %w", err)
	}
	if pageCount != c.Len() {
		return fmt.Errorf("pdf has %d pages but corpus has %d", pageCount, c.Len())
	}
	c.pdfPath = path
	return nil
}

// HasPDF reports whether a source scan is attached.
func (c *Corpus) HasPDF() bool { return c.pdfPath != "" }

// PageImage renders the page at index (0-based) to PNG using pdftoppm
// (poppler-utils). Rendering the page is used instead of pdfcpu image
// extraction because embedded image objects carry internal numbering that
// may not match page order.
func (c *Corpus) PageImage(ctx context.Context, index int) ([]byte, string, error) {
	if c.pdfPath == "" {
		return nil, "", fmt.Errorf("no pdf attached")
	}
	if index < 0 || index >= c.Len() {
		return nil, "", fmt.Errorf("page %d out of range", index)
	}
	tmpDir, err := os.MkdirTemp("", "binder-page-*")
	if err != nil {
		return nil, "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", index+1)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", pageImageDPI,
		"-singlefile",
		c.pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, "", fmt.Errorf("pdftoppm failed for page %s: %w (output: %s)", pageStr, err, string(output))
	}
	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, "", fmt.Errorf("read rendered page %s: %w", pageStr, err)
	}
	return data, "image/png", nil
}

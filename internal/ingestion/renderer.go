package ingestion

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// RenderDPI is the resolution resume pages are rasterized at. 150
	// keeps pages readable for the vision model without huge payloads.
	RenderDPI = "150"
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// Renderer turns resume attachments into PNG page images for the vision
// extraction, keeping per-thread working directories it can clean up.
type Renderer struct {
	workDir string
}

// NewRenderer creates a renderer rooted at workDir.
func NewRenderer(workDir string) *Renderer {
	return &Renderer{workDir: workDir}
}

// RenderPDF rasterizes a PDF into one PNG per page using pdftoppm and
// returns the page images in order.
func (r *Renderer) RenderPDF(threadID string, pdf []byte) ([][]byte, error) {
	dir := r.threadDir(threadID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("render pdf: create dir: %w", err)
	}

	pdfPath := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return nil, fmt.Errorf("render pdf: write pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	cmd := exec.Command("pdftoppm", "-png", "-r", RenderDPI, pdfPath, prefix)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("PDF rendering requires 'pdftoppm' (install poppler-utils): %w: %s", err, output)
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, fmt.Errorf("render pdf: glob pages: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("render pdf: no pages produced for thread %s", threadID)
	}
	sort.Strings(matches)

	pages := make([][]byte, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("render pdf: read page: %w", err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// Cleanup removes the working directory for a thread.
func (r *Renderer) Cleanup(threadID string) error {
	if err := os.RemoveAll(r.threadDir(threadID)); err != nil {
		return fmt.Errorf("cleanup render dir: %w", err)
	}
	return nil
}

func (r *Renderer) threadDir(threadID string) string {
	return filepath.Join(r.workDir, "attachment_images", threadID)
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}

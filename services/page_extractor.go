package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"

	"github.com/ledongthuc/pdf"
)

// PageImage is one rendered page of a document, PNG-encoded.
// PageID is the 1-based page ordinal.
type PageImage struct {
	PageID int
	PNG    []byte
}

// PageExtractor splits a paginated document into one ordered image per page.
type PageExtractor interface {
	ExtractPages(ctx context.Context, document []byte) ([]PageImage, error)
}

// PopplerPageExtractor renders PDF pages to PNG with poppler's pdftoppm.
// The page count comes from the PDF trailer so a truncated document is
// rejected before rendering starts.
type PopplerPageExtractor struct {
	dpi int
}

func NewPopplerPageExtractor(cfg *config.Config) *PopplerPageExtractor {
	dpi := cfg.PDFRenderDPI
	if dpi <= 0 {
		dpi = 200
	}
	return &PopplerPageExtractor{dpi: dpi}
}

func (e *PopplerPageExtractor) ExtractPages(ctx context.Context, document []byte) ([]PageImage, error) {
	if len(document) < 5 || string(document[:4]) != "%PDF" {
		return nil, fmt.Errorf("%w: not a PDF document", models.ErrUnsupportedFormat)
	}

	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptDocument, err)
	}

	total := reader.NumPage()
	if total < 0 {
		return nil, fmt.Errorf("%w: page count undetermined", models.ErrCorruptDocument)
	}
	if total == 0 {
		return nil, nil
	}

	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not available: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "pagerender-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create render directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, document, 0600); err != nil {
		return nil, fmt.Errorf("failed to stage PDF for rendering: %w", err)
	}

	outPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(e.dpi), pdfPath, outPrefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftoppm: %v, stderr: %s", models.ErrCorruptDocument, err, stderr.String())
	}

	// pdftoppm pads page numbers to the width of the last page number
	width := len(strconv.Itoa(total))
	pages := make([]PageImage, 0, total)
	for i := 1; i <= total; i++ {
		data, err := os.ReadFile(fmt.Sprintf("%s-%0*d.png", outPrefix, width, i))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d not rendered: %v", models.ErrCorruptDocument, i, err)
		}
		pages = append(pages, PageImage{PageID: i, PNG: data})
	}

	return pages, nil
}

package services

import (
	"context"
	"errors"
	"testing"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"
)

func TestExtractPagesRejectsNonPDF(t *testing.T) {
	e := NewPopplerPageExtractor(&config.Config{PDFRenderDPI: 200})

	for _, doc := range [][]byte{
		[]byte("plain text, definitely not a pdf"),
		[]byte("GIF89a....."),
		{},
		[]byte("%PD"),
	} {
		_, err := e.ExtractPages(context.Background(), doc)
		if !errors.Is(err, models.ErrUnsupportedFormat) {
			t.Fatalf("doc %q: err = %v, want ErrUnsupportedFormat", doc, err)
		}
	}
}

func TestExtractPagesRejectsTruncatedPDF(t *testing.T) {
	e := NewPopplerPageExtractor(&config.Config{PDFRenderDPI: 200})

	// Valid magic bytes but no xref table or trailer.
	_, err := e.ExtractPages(context.Background(), []byte("%PDF-1.7\nthis file ends abruptly"))
	if !errors.Is(err, models.ErrCorruptDocument) {
		t.Fatalf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestNewPopplerPageExtractorDefaultsDPI(t *testing.T) {
	e := NewPopplerPageExtractor(&config.Config{})
	if e.dpi != 200 {
		t.Fatalf("dpi = %d, want default 200", e.dpi)
	}
}

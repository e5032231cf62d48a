package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFontSize   = 12
	pdfLineHeight = 6
)

// PDF lays text out on A4 pages, wrapping long lines and adding pages as
// needed. Characters outside cp1252 are replaced by the core font translator.
func PDF(text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("XferLogic document", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", pdfFontSize)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, pdfLineHeight, tr(text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

package export

import (
	"io"

	"slidedeck/core"

	"github.com/go-pdf/fpdf"
)

// WritePDF writes the projection of doc as an A4 PDF, one page per slide.
// Element coordinates are used as millimetres. Text is set in the core
// Helvetica font, so it is encoded as cp1252: characters outside that code
// page are dropped.
func WritePDF(w io.Writer, doc *core.Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Creator, true)
	pdf.SetFont("Helvetica", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range Project(doc) {
		pdf.AddPage()
		pdf.Text(10, 10, page.Marker)
		for _, line := range page.Lines {
			pdf.Text(line.X, line.Y, tr(line.Text))
		}
	}
	if len(doc.Content.Slides) == 0 {
		pdf.AddPage()
	}
	return pdf.Output(w)
}

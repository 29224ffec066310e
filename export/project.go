// Package export turns a finished document into static output: a page
// projection, a PDF built from it, and PNG thumbnails of single slides.
package export

import (
	"fmt"

	"slidedeck/core"
)

type (
	// Line is one positioned text run on a page.
	Line struct {
		Text string
		X    float64
		Y    float64
	}

	// Page is the static form of one slide.
	Page struct {
		Number int
		Marker string
		Lines  []Line
	}
)

// Project returns one page per slide, in order. Only text elements become
// lines; shapes and images are left out of the projection.
func Project(doc *core.Document) []Page {
	pages := make([]Page, 0, len(doc.Content.Slides))
	for i, slide := range doc.Content.Slides {
		page := Page{
			Number: i + 1,
			Marker: fmt.Sprintf("Slide %d", i+1),
			Lines:  []Line{},
		}
		for _, el := range slide.Elements {
			switch el := el.(type) {
			case core.Text:
				page.Lines = append(page.Lines, Line{Text: el.Text, X: el.X, Y: el.Y})
			case core.Rectangle, core.Circle, core.Image:
			default:
				panic(fmt.Sprintf("export: unhandled element %T", el))
			}
		}
		pages = append(pages, page)
	}
	return pages
}

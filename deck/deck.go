// Package deck implements the slide and element operations on a document.
// All operations work on an in-memory document and never touch the store.
package deck

import (
	"strings"

	"slidedeck/core"
)

// Mutation is one local change applied to a document snapshot.
type Mutation func(doc *core.Document) error

// CreateDocument builds a document with a single empty slide. The document
// has no id until the store assigns one.
func CreateDocument(title, creator string, ids core.IDGenerator) (*core.Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &core.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(creator) == "" {
		return nil, &core.ValidationError{Field: "creator", Reason: "must not be empty"}
	}

	return &core.Document{
		Title:   title,
		Creator: creator,
		Content: core.Content{
			Slides: []core.Slide{{ID: ids.NewID("slide"), Elements: core.Elements{}}},
		},
		Viewers: core.Members{},
		Editors: core.Members{},
	}, nil
}

func NewText(ids core.IDGenerator) core.Text {
	return core.Text{
		Placement: core.Placement{ID: ids.NewID(string(core.KindText)), X: 50, Y: 50, Draggable: true},
		Text:      "New Text",
		FontSize:  20,
	}
}

func NewRectangle(ids core.IDGenerator) core.Rectangle {
	return core.Rectangle{
		Placement: core.Placement{ID: ids.NewID(string(core.KindRectangle)), X: 100, Y: 100, Draggable: true},
		Width:     100,
		Height:    100,
		Fill:      core.DefaultRectangleFill,
	}
}

func NewCircle(ids core.IDGenerator) core.Circle {
	return core.Circle{
		Placement: core.Placement{ID: ids.NewID(string(core.KindCircle)), X: 100, Y: 100, Draggable: true},
		Radius:    core.DefaultCircleRadius,
		Fill:      core.DefaultCircleFill,
	}
}

func NewImage(ids core.IDGenerator, src string) (core.Image, error) {
	if strings.TrimSpace(src) == "" {
		return core.Image{}, &core.ValidationError{Field: "src", Reason: "must not be empty"}
	}
	return core.Image{
		Placement: core.Placement{ID: ids.NewID(string(core.KindImage)), X: 50, Y: 50, Draggable: true},
		Src:       src,
	}, nil
}

func validSlide(doc *core.Document, slideIndex int) bool {
	return slideIndex >= 0 && slideIndex < len(doc.Content.Slides)
}

// AddElement appends el to the slide's elements.
func AddElement(doc *core.Document, slideIndex int, el core.Element) {
	if !validSlide(doc, slideIndex) {
		return
	}
	slide := &doc.Content.Slides[slideIndex]
	slide.Elements = append(slide.Elements, el)
}

// MoveElement replaces the position of the element at elementIndex. An out
// of range index leaves the document unchanged.
func MoveElement(doc *core.Document, slideIndex, elementIndex int, x, y float64) {
	if !validSlide(doc, slideIndex) {
		return
	}
	elements := doc.Content.Slides[slideIndex].Elements
	if elementIndex < 0 || elementIndex >= len(elements) {
		return
	}
	elements[elementIndex] = core.WithPosition(elements[elementIndex], x, y)
}

// DeleteElement removes the element at elementIndex. An out of range index
// leaves the document unchanged.
func DeleteElement(doc *core.Document, slideIndex, elementIndex int) {
	if !validSlide(doc, slideIndex) {
		return
	}
	slide := &doc.Content.Slides[slideIndex]
	if elementIndex < 0 || elementIndex >= len(slide.Elements) {
		return
	}
	slide.Elements = append(slide.Elements[:elementIndex:elementIndex], slide.Elements[elementIndex+1:]...)
}

// SetDraggable marks every element draggable or not, mirroring edit mode.
func SetDraggable(doc *core.Document, draggable bool) {
	for i := range doc.Content.Slides {
		for j, el := range doc.Content.Slides[i].Elements {
			doc.Content.Slides[i].Elements[j] = core.WithDraggable(el, draggable)
		}
	}
}

package core

import (
	"encoding/json"
	"fmt"
)

// Kind is the wire discriminator of an element.
type Kind string

const (
	KindText      Kind = "text"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindImage     Kind = "image"
)

const (
	DefaultRectangleFill = "blue"
	DefaultCircleFill    = "red"
	DefaultCircleRadius  = 50
	DefaultImageSize     = 100
)

type (
	// Element is a drawable primitive on a slide. The implementations are
	// Text, Rectangle, Circle and Image; consumers switch over them.
	Element interface {
		ElementID() string
		Kind() Kind
		Position() (x, y float64)
		element()
	}

	// Placement holds the fields shared by every element kind.
	Placement struct {
		ID        string  `json:"id"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		Draggable bool    `json:"draggable"`
	}

	Text struct {
		Placement
		Text     string  `json:"text"`
		FontSize float64 `json:"fontSize"`
	}

	Rectangle struct {
		Placement
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Fill   string  `json:"fill,omitempty"`
	}

	Circle struct {
		Placement
		Radius float64 `json:"radius"`
		Fill   string  `json:"fill,omitempty"`
	}

	Image struct {
		Placement
		Src    string  `json:"src"`
		Width  float64 `json:"width,omitempty"`
		Height float64 `json:"height,omitempty"`
	}

	// Elements is the ordered element list of a slide. It encodes each
	// element with its "type" discriminator.
	Elements []Element
)

func (p Placement) ElementID() string             { return p.ID }
func (p Placement) Position() (float64, float64) { return p.X, p.Y }

func (Text) Kind() Kind      { return KindText }
func (Rectangle) Kind() Kind { return KindRectangle }
func (Circle) Kind() Kind    { return KindCircle }
func (Image) Kind() Kind     { return KindImage }

func (Text) element()      {}
func (Rectangle) element() {}
func (Circle) element()    {}
func (Image) element()     {}

// FillOrDefault returns the fill color token, falling back to blue.
func (r Rectangle) FillOrDefault() string {
	if r.Fill == "" {
		return DefaultRectangleFill
	}
	return r.Fill
}

// FillOrDefault returns the fill color token, falling back to red.
func (c Circle) FillOrDefault() string {
	if c.Fill == "" {
		return DefaultCircleFill
	}
	return c.Fill
}

func (c Circle) RadiusOrDefault() float64 {
	if c.Radius <= 0 {
		return DefaultCircleRadius
	}
	return c.Radius
}

// Size returns the drawn size of the image, defaulting to 100x100.
func (i Image) Size() (float64, float64) {
	w, h := i.Width, i.Height
	if w <= 0 {
		w = DefaultImageSize
	}
	if h <= 0 {
		h = DefaultImageSize
	}
	return w, h
}

func (t Text) MarshalJSON() ([]byte, error) {
	type text Text
	return json.Marshal(struct {
		Type Kind `json:"type"`
		text
	}{KindText, text(t)})
}

func (r Rectangle) MarshalJSON() ([]byte, error) {
	type rectangle Rectangle
	return json.Marshal(struct {
		Type Kind `json:"type"`
		rectangle
	}{KindRectangle, rectangle(r)})
}

func (c Circle) MarshalJSON() ([]byte, error) {
	type circle Circle
	return json.Marshal(struct {
		Type Kind `json:"type"`
		circle
	}{KindCircle, circle(c)})
}

func (i Image) MarshalJSON() ([]byte, error) {
	type image Image
	return json.Marshal(struct {
		Type Kind `json:"type"`
		image
	}{KindImage, image(i)})
}

// WithPosition returns a copy of e moved to (x, y).
func WithPosition(e Element, x, y float64) Element {
	switch el := e.(type) {
	case Text:
		el.X, el.Y = x, y
		return el
	case Rectangle:
		el.X, el.Y = x, y
		return el
	case Circle:
		el.X, el.Y = x, y
		return el
	case Image:
		el.X, el.Y = x, y
		return el
	default:
		panic(fmt.Sprintf("core: unhandled element %T", e))
	}
}

// WithDraggable returns a copy of e with the draggable flag set.
func WithDraggable(e Element, draggable bool) Element {
	switch el := e.(type) {
	case Text:
		el.Draggable = draggable
		return el
	case Rectangle:
		el.Draggable = draggable
		return el
	case Circle:
		el.Draggable = draggable
		return el
	case Image:
		el.Draggable = draggable
		return el
	default:
		panic(fmt.Sprintf("core: unhandled element %T", e))
	}
}

// DecodeElement decodes one element using its "type" discriminator.
func DecodeElement(data []byte) (Element, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var (
		el  Element
		err error
	)
	switch probe.Type {
	case KindText:
		var t Text
		err = json.Unmarshal(data, &t)
		el = t
	case KindRectangle:
		var r Rectangle
		err = json.Unmarshal(data, &r)
		el = r
	case KindCircle:
		var c Circle
		err = json.Unmarshal(data, &c)
		el = c
	case KindImage:
		var i Image
		err = json.Unmarshal(data, &i)
		el = i
	default:
		return nil, fmt.Errorf("%w: unknown element type %q", ErrInvalidDocument, probe.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return el, nil
}

func (es Elements) MarshalJSON() ([]byte, error) {
	if es == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Element(es))
}

func (es *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: elements: %v", ErrInvalidDocument, err)
	}

	out := make(Elements, 0, len(raw))
	for i, r := range raw {
		el, err := DecodeElement(r)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}
	*es = out
	return nil
}

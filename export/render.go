package export

import (
	"fmt"
	"image/color"
	"io"
	"strings"
	"sync"

	"slidedeck/core"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	StageWidth  = 800
	StageHeight = 600
)

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
	fontErr    error
)

func regularFont() (*text.FontSource, error) {
	fontOnce.Do(func() {
		fontSource, fontErr = text.NewFontSource(goregular.TTF)
	})
	return fontSource, fontErr
}

// Fill resolves a fill token: an SVG color name or a #rrggbb value.
// Unknown tokens fall back to black.
func Fill(token string) color.Color {
	token = strings.ToLower(strings.TrimSpace(token))
	if c, ok := colornames.Map[token]; ok {
		return c
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(token, "#%02x%02x%02x", &r, &g, &b); err == nil {
		return color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return color.Black
}

// RenderSlide draws slide on an 800x600 white stage and writes it as PNG.
// Images are drawn as grey placeholders of their size.
func RenderSlide(w io.Writer, slide core.Slide) error {
	dc := gg.NewContext(StageWidth, StageHeight)
	defer dc.Close()

	dc.SetColor(color.White)
	dc.DrawRectangle(0, 0, StageWidth, StageHeight)
	if err := dc.Fill(); err != nil {
		return err
	}

	for _, el := range slide.Elements {
		if err := drawElement(dc, el); err != nil {
			return fmt.Errorf("draw %s: %w", el.ElementID(), err)
		}
	}
	return dc.EncodePNG(w)
}

func drawElement(dc *gg.Context, el core.Element) error {
	switch el := el.(type) {
	case core.Text:
		src, err := regularFont()
		if err != nil {
			return err
		}
		size := el.FontSize
		if size <= 0 {
			size = 20
		}
		dc.SetFont(src.Face(size))
		dc.SetColor(color.Black)
		// Stage text is anchored at its top-left corner, DrawString at the baseline.
		dc.DrawString(el.Text, el.X, el.Y+size)
		return nil
	case core.Rectangle:
		dc.SetColor(Fill(el.FillOrDefault()))
		dc.DrawRectangle(el.X, el.Y, el.Width, el.Height)
		return dc.Fill()
	case core.Circle:
		dc.SetColor(Fill(el.FillOrDefault()))
		dc.DrawCircle(el.X, el.Y, el.RadiusOrDefault())
		return dc.Fill()
	case core.Image:
		width, height := el.Size()
		dc.SetHexColor("#cccccc")
		dc.DrawRectangle(el.X, el.Y, width, height)
		return dc.Fill()
	default:
		panic(fmt.Sprintf("export: unhandled element %T", el))
	}
}

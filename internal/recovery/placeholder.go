package recovery

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 800
	placeholderHeight = 600
	placeholderBorder = 2
)

var placeholderBackground = color.NRGBA{R: 220, G: 220, B: 240, A: 255}

// RenderPlaceholder draws the stand-in image used when a referenced media file
// could not be recovered.
func RenderPlaceholder(name string) *image.NRGBA {
	img := imaging.New(placeholderWidth, placeholderHeight, placeholderBackground)

	black := color.NRGBA{A: 255}
	for y := 0; y < placeholderHeight; y++ {
		for x := 0; x < placeholderWidth; x++ {
			if x < placeholderBorder || y < placeholderBorder ||
				x >= placeholderWidth-placeholderBorder || y >= placeholderHeight-placeholderBorder {
				img.SetNRGBA(x, y, black)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(black),
		Face: basicfont.Face7x13,
	}
	captions := []string{
		"Placeholder for: " + name,
		"Original image could not be recovered",
		"This is a generated placeholder",
	}
	for i, line := range captions {
		d.Dot = fixed.P(50, 50+i*50)
		d.DrawString(line)
	}
	return img
}

// WritePlaceholder encodes a placeholder in the format implied by name's extension.
func WritePlaceholder(w io.Writer, name string) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		format = imaging.PNG
	}
	return imaging.Encode(w, RenderPlaceholder(name), format)
}

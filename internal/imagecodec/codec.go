// Package imagecodec converts PNG data to and from an addressable RGBA pixel grid.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/starford/vizbase/internal/apperr"
)

// PixelGrid is a decoded image: row-major, 4 bytes (R, G, B, A) per pixel,
// non-premultiplied.
type PixelGrid struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewGrid allocates a zeroed (transparent black) grid.
func NewGrid(width, height int) *PixelGrid {
	return &PixelGrid{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
}

// Offset returns the index of the first channel of (x, y) in Pix.
func (g *PixelGrid) Offset(x, y int) int {
	return (y*g.Width + x) * 4
}

// At returns the sample at (x, y).
func (g *PixelGrid) At(x, y int) color.NRGBA {
	i := g.Offset(x, y)
	p := g.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Set writes c at (x, y).
func (g *PixelGrid) Set(x, y int, c color.NRGBA) {
	i := g.Offset(x, y)
	p := g.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Fill paints every pixel with c.
func (g *PixelGrid) Fill(c color.NRGBA) {
	for i := 0; i < len(g.Pix); i += 4 {
		g.Pix[i], g.Pix[i+1], g.Pix[i+2], g.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// Image exposes the grid as an image.NRGBA sharing the same backing array.
func (g *PixelGrid) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    g.Pix,
		Stride: g.Width * 4,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// FromImage copies any image.Image into a fresh grid.
func FromImage(img image.Image) (*PixelGrid, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", apperr.ErrDecode, b.Dx(), b.Dy())
	}
	g := NewGrid(b.Dx(), b.Dy())
	if n, ok := img.(*image.NRGBA); ok && n.Stride == g.Width*4 {
		copy(g.Pix, n.Pix[n.PixOffset(b.Min.X, b.Min.Y):])
		return g, nil
	}
	draw.Draw(g.Image(), g.Image().Bounds(), img, b.Min, draw.Src)
	return g, nil
}

// Decode parses PNG bytes. Every failure wraps apperr.ErrDecode.
func Decode(data []byte) (*PixelGrid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", apperr.ErrDecode)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	return FromImage(img)
}

// Dimensions reads only the PNG header.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Encode writes g to w as an 8-bit RGBA PNG.
func Encode(w io.Writer, g *PixelGrid) error {
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("imagecodec: refusing to encode empty grid")
	}
	if err := png.Encode(w, g.Image()); err != nil {
		return fmt.Errorf("imagecodec: encode: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(g *PixelGrid) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package imaging owns the dense 8-bit BGR pixel buffer the whole pipeline
// is built on (spec component C1), and its separable filtered resampler.
package imaging

import (
	"fmt"
	"image"
)

// Image is a dense row-major 8-bit BGR pixel buffer. Every operation in
// this package and its callers is bounds-checked against (Width, Height);
// channel order (blue, green, red) is part of the invariant and is never
// renegotiated downstream.
type Image struct {
	Pix    []uint8 // len == Width*Height*3, row-major, BGR
	Width  int
	Height int
}

// Rect is an axis-aligned sub-rectangle of an Image, in pixel coordinates.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether r covers zero pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Full returns the rectangle spanning the whole image.
func (img *Image) Full() Rect { return Rect{0, 0, img.Width, img.Height} }

// New allocates a zeroed BGR image of the given size.
func New(w, h int) *Image {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Image{Pix: make([]uint8, w*h*3), Width: w, Height: h}
}

// InBounds reports whether r fits entirely within img.
func (img *Image) InBounds(r Rect) bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 &&
		r.X+r.W <= img.Width && r.Y+r.H <= img.Height
}

// At returns the BGR triple at (x, y). Callers are expected to stay in
// bounds; this is a hot inner-loop accessor and does not itself check.
func (img *Image) At(x, y int) (b, g, r uint8) {
	o := (y*img.Width + x) * 3
	return img.Pix[o], img.Pix[o+1], img.Pix[o+2]
}

// Set writes the BGR triple at (x, y).
func (img *Image) Set(x, y int, b, g, r uint8) {
	o := (y*img.Width + x) * 3
	img.Pix[o], img.Pix[o+1], img.Pix[o+2] = b, g, r
}

// SubImage copies the pixels inside r into a freshly allocated Image. r must
// be within img's bounds.
func (img *Image) SubImage(r Rect) (*Image, error) {
	if !img.InBounds(r) {
		return nil, fmt.Errorf("imaging: rect %+v outside image %dx%d", r, img.Width, img.Height)
	}
	dst := New(r.W, r.H)
	for y := 0; y < r.H; y++ {
		srcOff := ((r.Y+y)*img.Width + r.X) * 3
		dstOff := y * r.W * 3
		copy(dst.Pix[dstOff:dstOff+r.W*3], img.Pix[srcOff:srcOff+r.W*3])
	}
	return dst, nil
}

// FromStdImage converts a standard library image.Image into a BGR Image,
// as produced by the pack's assorted format decoders (internal/encode).
func FromStdImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := New(w, h)

	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			srcOff := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			dstOff := y * w * 3
			for x := 0; x < w; x++ {
				r, g, bl, _ := nrgba.Pix[srcOff], nrgba.Pix[srcOff+1], nrgba.Pix[srcOff+2], nrgba.Pix[srcOff+3]
				dst.Pix[dstOff], dst.Pix[dstOff+1], dst.Pix[dstOff+2] = bl, g, r
				srcOff += 4
				dstOff += 3
			}
		}
		return dst
	}

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := rgba.RGBAAt(b.Min.X+x, b.Min.Y+y)
				dst.Set(x, y, c.B, c.G, c.R)
			}
		}
		return dst
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r32, g32, b32, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst.Set(x, y, uint8(b32>>8), uint8(g32>>8), uint8(r32>>8))
		}
	}
	return dst
}

// ToStdImage wraps the BGR buffer as a standard library image.Image (an
// RGBA copy), for handing to internal/encode's encoders.
func (img *Image) ToStdImage() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		srcOff := y * img.Width * 3
		dstOff := dst.PixOffset(0, y)
		for x := 0; x < img.Width; x++ {
			b, g, r := img.Pix[srcOff], img.Pix[srcOff+1], img.Pix[srcOff+2]
			dst.Pix[dstOff], dst.Pix[dstOff+1], dst.Pix[dstOff+2], dst.Pix[dstOff+3] = r, g, b, 255
			srcOff += 3
			dstOff += 4
		}
	}
	return dst
}

// Gray returns the Rec.601 luma of a BGR triple: 0.114·B + 0.587·G + 0.299·R.
func Gray(b, g, r uint8) uint8 {
	v := 0.114*float64(b) + 0.587*float64(g) + 0.299*float64(r)
	return clampToByte(v)
}

func clampToByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

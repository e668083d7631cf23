// Package internal holds helpers shared by package tests.
package internal

import (
	"image"
	"image/color"
)

// TestImage returns an opaque RGBA image whose pixels depend on seed,
// so images made with different seeds differ.
func TestImage(width, height int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + seed,
				G: uint8(y) ^ seed,
				B: uint8(x*y) + 3*seed,
				A: 0xff,
			})
		}
	}
	return img
}

// SameImage reports whether a and b have equal bounds sizes and equal pixels
// after conversion to 8-bit RGBA. Encoders are free to change the image type.
func SameImage(a, b image.Image) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}
	for y := range ab.Dy() {
		for x := range ab.Dx() {
			ca := color.RGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y))
			cb := color.RGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y))
			if ca != cb {
				return false
			}
		}
	}
	return true
}

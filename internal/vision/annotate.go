// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package vision

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var markColor = color.RGBA{G: 255, A: 255}

const boxThickness = 2

// Canvas returns a mutable RGBA copy of img for annotation.
func Canvas(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Annotate draws the face box and its label onto dst. The label sits
// above the box, or inside it when the box touches the top edge.
func Annotate(dst *image.RGBA, r Rect, label string) {
	box := r.Rectangle().Intersect(dst.Bounds())
	if box.Empty() {
		return
	}

	src := image.NewUniform(markColor)
	for i := 0; i < boxThickness; i++ {
		draw.Draw(dst, image.Rect(box.Min.X, box.Min.Y+i, box.Max.X, box.Min.Y+i+1), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(box.Min.X, box.Max.Y-i-1, box.Max.X, box.Max.Y-i), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(box.Min.X+i, box.Min.Y, box.Min.X+i+1, box.Max.Y), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(box.Max.X-i-1, box.Min.Y, box.Max.X-i, box.Max.Y), src, image.Point{}, draw.Src)
	}

	if label == "" {
		return
	}

	face := basicfont.Face7x13
	baseline := box.Min.Y - 10
	if baseline-face.Ascent < 0 {
		baseline = box.Min.Y + face.Ascent + boxThickness
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: face,
		Dot:  fixed.P(box.Min.X, baseline),
	}
	d.DrawString(label)
}

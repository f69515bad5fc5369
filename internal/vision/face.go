// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PatchSize is the side of the square face patch fed to the classifier.
const PatchSize = 48

// ErrEmptyRegion is returned when a face rectangle does not overlap the image.
var ErrEmptyRegion = errors.New("face region outside image")

// Rect is an axis-aligned face rectangle in image coordinates.
type Rect struct {
	X, Y, W, H int
}

// Area returns W*H.
func (r Rect) Area() int { return r.W * r.H }

// Rectangle converts r to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// RectFrom converts an image.Rectangle to a Rect.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Locator finds face rectangles in a grayscale frame.
type Locator interface {
	Locate(ctx context.Context, gray *image.Gray) ([]Rect, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, gray *image.Gray) ([]Rect, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, gray *image.Gray) ([]Rect, error) {
	return f(ctx, gray)
}

// LargestFace returns the rectangle with the largest area. Ties go to the
// earliest rectangle. ok is false when faces is empty.
func LargestFace(faces []Rect) (largest Rect, ok bool) {
	for i, f := range faces {
		if i == 0 || f.Area() > largest.Area() {
			largest = f
		}
	}
	return largest, len(faces) > 0
}

// Patch is a PatchSize x PatchSize grayscale face crop with intensities
// scaled to [0,1], stored row-major.
type Patch struct {
	Pixels []float32
}

// At returns the intensity at (x, y).
func (p Patch) At(x, y int) float32 {
	return p.Pixels[y*PatchSize+x]
}

// Image renders the patch back to an 8-bit grayscale image.
func (p Patch) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, PatchSize, PatchSize))
	for i, v := range p.Pixels {
		img.Pix[i] = uint8(v*255 + 0.5)
	}
	return img
}

// ExtractPatch crops r out of gray, resizes it to PatchSize x PatchSize and
// scales intensities to [0,1].
func ExtractPatch(gray *image.Gray, r Rect) (Patch, error) {
	region := r.Rectangle().Intersect(gray.Bounds())
	if region.Empty() {
		return Patch{}, fmt.Errorf("%w: %v", ErrEmptyRegion, r)
	}

	resized := imaging.Resize(imaging.Crop(gray, region), PatchSize, PatchSize, imaging.Linear)

	pixels := make([]float32, PatchSize*PatchSize)
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			pixels[y*PatchSize+x] = float32(resized.Pix[y*resized.Stride+x*4]) / 255
		}
	}
	return Patch{Pixels: pixels}, nil
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package vision turns raw captures into what the detection pipeline needs:
// decoded and oriented images, grayscale frames, face rectangles, the
// normalized face patch fed to the classifier and annotated output frames.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// DefaultJPEGQuality is used by EncodeJPEG when quality is out of range.
const DefaultJPEGQuality = 85

// MaxImageBytes caps the size of a single capture.
const MaxImageBytes = 10 << 20

// ErrInvalidImage is returned when a capture cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Decode decodes a JPEG, PNG, GIF or WebP capture and applies its EXIF
// orientation. Any failure is reported as ErrInvalidImage.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrInvalidImage, len(data))
	}

	format := detectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("%w: unsupported format", ErrInvalidImage)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if format == "jpeg" {
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	}
	return img, nil
}

// Grayscale returns a single-channel copy of img.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	// imaging.Grayscale keeps the NRGBA layout with equal channels.
	src := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Pix[y*gray.Stride+x] = src.Pix[y*src.Stride+x*4]
		}
	}
	return gray
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies an EXIF orientation transformation.
// 2 flip H, 3 rotate 180, 4 flip V, 5 transpose, 6 rotate 90 CW,
// 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

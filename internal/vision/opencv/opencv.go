// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package opencv provides the OpenCV-backed face locator and camera capture
// source. It is the only package linking against OpenCV.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/olegiv/ostress-go/internal/vision"
)

// Haar cascade parameters used for face location.
const (
	DefaultScaleFactor  = 1.3
	DefaultMinNeighbors = 5
)

// CascadeLocator locates faces with a Haar cascade classifier.
type CascadeLocator struct {
	mu           sync.Mutex
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
}

// NewCascadeLocator loads the cascade file at path.
func NewCascadeLocator(path string, minFaceSize int) (*CascadeLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("loading face cascade %q", path)
	}

	slog.Info("face cascade loaded", "path", path, "min_face_size", minFaceSize)
	return &CascadeLocator{
		classifier:   classifier,
		scaleFactor:  DefaultScaleFactor,
		minNeighbors: DefaultMinNeighbors,
		minSize:      image.Pt(minFaceSize, minFaceSize),
	}, nil
}

// Locate implements vision.Locator.
func (l *CascadeLocator) Locate(ctx context.Context, gray *image.Gray) ([]vision.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer func() { _ = mat.Close() }()

	// CascadeClassifier is not safe for concurrent detection.
	l.mu.Lock()
	found := l.classifier.DetectMultiScaleWithParams(mat, l.scaleFactor, l.minNeighbors, 0, l.minSize, image.Point{})
	l.mu.Unlock()

	faces := make([]vision.Rect, 0, len(found))
	for _, r := range found {
		faces = append(faces, vision.RectFrom(r))
	}
	return faces, nil
}

// Close releases the classifier.
func (l *CascadeLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.classifier.Close()
}

// Camera reads frames from a local capture device.
type Camera struct {
	device  int
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenCamera opens the capture device with the given index.
func OpenCamera(device int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("opening camera %d: %w", device, err)
	}
	return &Camera{device: device, capture: capture, frame: gocv.NewMat()}, nil
}

// Read captures the next frame.
func (c *Camera) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, vision.ErrSourceClosed
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return img, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	_ = c.frame.Close()
	if err := c.capture.Close(); err != nil {
		return fmt.Errorf("closing camera %d: %w", c.device, err)
	}
	return nil
}

// CameraOpener opens camera devices on demand.
type CameraOpener struct {
	Device int
}

// Open implements vision.SourceOpener.
func (o CameraOpener) Open(context.Context) (vision.FrameSource, error) {
	return OpenCamera(o.Device)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package detect runs the stress detection pipeline: decode, locate faces,
// classify the most prominent one and score it.
package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/olegiv/ostress-go/internal/emotion"
	"github.com/olegiv/ostress-go/internal/stress"
	"github.com/olegiv/ostress-go/internal/vision"
)

// Defaults for Options fields left at zero.
const (
	DefaultWorkers         = 4
	DefaultClassifyTimeout = 5 * time.Second
)

var (
	// ErrNoFace is returned when the capture contains no face. It is an
	// expected outcome, not a failure.
	ErrNoFace = errors.New("no face detected")

	// ErrBusy is returned when no worker became free before the request
	// context ended.
	ErrBusy = errors.New("detection workers busy")

	// ErrDeviceBusy is returned when the capture device already serves
	// a stream.
	ErrDeviceBusy = errors.New("capture device busy")

	// ErrNoSource is returned when streaming is requested without a
	// capture source configured.
	ErrNoSource = errors.New("no capture source configured")
)

// Result is the outcome of a single-shot detection.
type Result struct {
	StressLevel int
	Emotion     string
	Message     string
	Face        vision.Rect
	Faces       int
	// Degraded is set when the score is the fallback value.
	Degraded bool
}

// Options tunes a Pipeline.
type Options struct {
	Workers         int
	ClassifyTimeout time.Duration
	JPEGQuality     int
	Source          vision.SourceOpener
}

// Pipeline runs detections on a bounded pool of workers so a stalled
// classifier cannot starve the rest of the process.
type Pipeline struct {
	locator         vision.Locator
	classifier      emotion.Classifier
	scorer          *stress.Scorer
	slots           chan struct{}
	classifyTimeout time.Duration
	jpegQuality     int
	source          vision.SourceOpener
	device          chan struct{}
}

// New creates a Pipeline.
func New(locator vision.Locator, classifier emotion.Classifier, scorer *stress.Scorer, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = DefaultClassifyTimeout
	}
	if classifier == nil {
		classifier = emotion.Unavailable{}
	}
	if scorer == nil {
		scorer = stress.NewScorer(nil)
	}
	return &Pipeline{
		locator:         locator,
		classifier:      classifier,
		scorer:          scorer,
		slots:           make(chan struct{}, opts.Workers),
		classifyTimeout: opts.ClassifyTimeout,
		jpegQuality:     opts.JPEGQuality,
		source:          opts.Source,
		device:          make(chan struct{}, 1),
	}
}

// ClassifierName returns the configured classifier backend.
func (p *Pipeline) ClassifierName() string {
	return p.classifier.Name()
}

// DetectStress scores the largest face in data. It returns
// vision.ErrInvalidImage for undecodable input and ErrNoFace when no face
// is found. Classification failures never surface: they yield a fallback
// score with Degraded set.
func (p *Pipeline) DetectStress(ctx context.Context, data []byte) (Result, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	img, err := vision.Decode(data)
	if err != nil {
		return Result{}, err
	}
	gray := vision.Grayscale(img)

	faces, err := p.locator.Locate(ctx, gray)
	if err != nil {
		return Result{}, fmt.Errorf("locating faces: %w", err)
	}
	face, ok := vision.LargestFace(faces)
	if !ok {
		return Result{}, ErrNoFace
	}

	res := Result{Face: face, Faces: len(faces)}
	label, err := p.classify(ctx, gray, face)
	if err != nil {
		slog.Warn("classification failed, using fallback score",
			"error", err, "classifier", p.classifier.Name(), "category", "detection")
		res.StressLevel, res.Emotion = p.scorer.Fallback()
		res.Degraded = true
	} else {
		res.Emotion = label
		res.StressLevel = p.scorer.Score(label)
	}
	res.Message = stress.Message(res.StressLevel)
	return res, nil
}

// classify extracts the face patch and returns its arg-max label. Panics
// inside the classifier are reported as errors.
func (p *Pipeline) classify(ctx context.Context, gray *image.Gray, face vision.Rect) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	patch, err := vision.ExtractPatch(gray, face)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.classifyTimeout)
	defer cancel()

	scores, err := p.classifier.Classify(ctx, patch)
	if err != nil {
		return "", err
	}
	return emotion.ArgMax(scores)
}

func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

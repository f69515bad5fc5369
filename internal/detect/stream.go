// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/olegiv/ostress-go/internal/emotion"
	"github.com/olegiv/ostress-go/internal/vision"
)

// Stream is an exclusive session on the capture device. Frames can be
// pulled once; Close releases the device.
type Stream struct {
	p        *Pipeline
	src      vision.FrameSource
	consumed atomic.Bool
	once     sync.Once
	closeErr error
}

// OpenStream claims the capture device. It fails with ErrDeviceBusy while
// another stream holds it.
func (p *Pipeline) OpenStream(ctx context.Context) (*Stream, error) {
	if p.source == nil {
		return nil, ErrNoSource
	}

	select {
	case p.device <- struct{}{}:
	default:
		return nil, ErrDeviceBusy
	}

	src, err := p.source.Open(ctx)
	if err != nil {
		<-p.device
		return nil, fmt.Errorf("opening capture source: %w", err)
	}

	slog.Info("capture stream opened", "category", "detection")
	return &Stream{p: p, src: src}, nil
}

// Frames returns the annotated frames as JPEG images. Every face in every
// frame is boxed and labelled. The sequence ends when the source runs dry,
// ctx is done or the consumer stops pulling; in every case the stream is
// closed. A second call yields nothing.
func (s *Stream) Frames(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		defer func() { _ = s.Close() }()

		for ctx.Err() == nil {
			img, err := s.src.Read(ctx)
			if err != nil {
				if errors.Is(err, vision.ErrSourceClosed) || ctx.Err() != nil {
					return
				}
				yield(nil, fmt.Errorf("reading frame: %w", err))
				return
			}

			frame, err := s.p.annotate(ctx, img)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// Close releases the capture device. It is safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.src.Close()
		<-s.p.device
		slog.Info("capture stream closed", "category", "detection")
	})
	return s.closeErr
}

// annotate labels every face in img and encodes the result.
func (p *Pipeline) annotate(ctx context.Context, img image.Image) ([]byte, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	gray := vision.Grayscale(img)
	faces, err := p.locator.Locate(ctx, gray)
	if err != nil {
		return nil, fmt.Errorf("locating faces: %w", err)
	}

	canvas := vision.Canvas(img)
	for _, face := range faces {
		label, err := p.classify(ctx, gray, face)
		if err != nil {
			slog.Debug("frame classification failed", "error", err, "category", "detection")
			label = emotion.Unknown
		}
		vision.Annotate(canvas, face, label)
	}

	return vision.EncodeJPEG(canvas, p.jpegQuality)
}

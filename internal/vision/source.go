// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package vision

import (
	"context"
	"errors"
	"image"
)

// ErrSourceClosed is returned by FrameSource.Read once the source has no
// more frames.
var ErrSourceClosed = errors.New("capture source closed")

// FrameSource delivers live frames, one per Read call.
type FrameSource interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// SourceOpener opens a FrameSource for one streaming session.
type SourceOpener interface {
	Open(ctx context.Context) (FrameSource, error)
}

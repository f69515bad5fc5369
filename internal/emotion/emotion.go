// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package emotion classifies face patches into the seven facial expression
// labels.
package emotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/ostress-go/internal/vision"
)

// Expression labels, in classifier output order.
const (
	Angry    = "Angry"
	Disgust  = "Disgust"
	Fear     = "Fear"
	Happy    = "Happy"
	Sad      = "Sad"
	Surprise = "Surprise"
	Neutral  = "Neutral"

	// Unknown is reported when no label could be determined.
	Unknown = "Unknown"
)

// Labels is the fixed label set; index i matches element i of a
// confidence vector.
var Labels = [...]string{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

// NumLabels is the length of every confidence vector.
const NumLabels = len(Labels)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendRemote = "remote"
	BackendOpenAI = "openai"
)

// ErrBadVector is returned when a backend answers with a vector of the
// wrong length or with invalid values.
var ErrBadVector = errors.New("invalid confidence vector")

// Classifier maps a face patch to a NumLabels confidence vector.
type Classifier interface {
	Classify(ctx context.Context, patch vision.Patch) ([]float64, error)
	Name() string
}

// ArgMax returns the label with the highest confidence. The first label
// wins ties, so an all-zero vector yields Angry.
func ArgMax(scores []float64) (string, error) {
	if len(scores) != NumLabels {
		return "", fmt.Errorf("%w: got %d values, want %d", ErrBadVector, len(scores), NumLabels)
	}
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return Labels[best], nil
}

// IsLabel reports whether s is one of Labels or Unknown.
func IsLabel(s string) bool {
	if s == Unknown {
		return true
	}
	for _, l := range Labels {
		if l == s {
			return true
		}
	}
	return false
}

// Unavailable stands in when no model is configured. It always answers
// with an all-zero vector.
type Unavailable struct{}

// Classify implements Classifier.
func (Unavailable) Classify(context.Context, vision.Patch) ([]float64, error) {
	return make([]float64, NumLabels), nil
}

// Name implements Classifier.
func (Unavailable) Name() string { return BackendNone }

// Config selects and configures a classifier backend.
type Config struct {
	Backend string
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the classifier for cfg.Backend. An empty backend selects
// Unavailable.
func New(cfg Config) (Classifier, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Unavailable{}, nil
	case BackendRemote:
		if cfg.URL == "" {
			return nil, errors.New("remote classifier requires a URL")
		}
		return NewRemote(cfg.URL, cfg.Timeout), nil
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai classifier requires an API key")
		}
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

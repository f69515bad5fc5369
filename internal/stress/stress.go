// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stress maps expression labels to stress scores and messages.
package stress

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/olegiv/ostress-go/internal/emotion"
)

// Score bounds and tuning.
const (
	MinLevel = 0
	MaxLevel = 100

	// Jitter is the largest offset added to a base score, in either direction.
	Jitter = 5

	// DefaultBase scores labels missing from the base table.
	DefaultBase = 50

	FallbackMin = 20
	FallbackMax = 80
)

// Score band thresholds. A level belongs to the first band whose
// threshold it is below.
const (
	LowBelow      = 30
	MildBelow     = 50
	ModerateBelow = 70
)

// Messages by band.
const (
	MessageLow      = "Low stress detected. You seem relaxed! 😊"
	MessageMild     = "Mild stress detected. Consider taking short breaks. 😐"
	MessageModerate = "Moderate stress detected. Try relaxation techniques. 😰"
	MessageHigh     = "High stress detected. Please take care of yourself! 😟"
)

var baseScores = map[string]int{
	emotion.Angry:    85,
	emotion.Disgust:  75,
	emotion.Fear:     80,
	emotion.Sad:      65,
	emotion.Surprise: 50,
	emotion.Neutral:  40,
	emotion.Happy:    25,
}

// BaseScore returns the table score for label.
func BaseScore(label string) int {
	if s, ok := baseScores[label]; ok {
		return s
	}
	return DefaultBase
}

// Scorer turns labels into jittered stress levels. It is safe for
// concurrent use.
type Scorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer creates a Scorer drawing from src. A nil src uses a
// time-seeded PCG source.
func NewScorer(src rand.Source) *Scorer {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>32|1)
	}
	return &Scorer{rng: rand.New(src)}
}

// Score returns the base score of label plus a jitter in [-Jitter, Jitter],
// clamped to [MinLevel, MaxLevel].
func (s *Scorer) Score(label string) int {
	return Clamp(BaseScore(label) + s.intBetween(-Jitter, Jitter))
}

// Fallback returns a level in [FallbackMin, FallbackMax] and the Unknown
// label, used when classification failed.
func (s *Scorer) Fallback() (int, string) {
	return s.intBetween(FallbackMin, FallbackMax), emotion.Unknown
}

func (s *Scorer) intBetween(lo, hi int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.IntN(hi-lo+1)
}

// Clamp limits level to [MinLevel, MaxLevel].
func Clamp(level int) int {
	return max(MinLevel, min(MaxLevel, level))
}

// Message returns the human-readable message for level.
func Message(level int) string {
	switch {
	case level < LowBelow:
		return MessageLow
	case level < MildBelow:
		return MessageMild
	case level < ModerateBelow:
		return MessageModerate
	default:
		return MessageHigh
	}
}

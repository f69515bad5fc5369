// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/olegiv/ostress-go/internal/vision"
)

const defaultTimeout = 10 * time.Second

// maxResponseBytes bounds the body read from a model server.
const maxResponseBytes = 1 << 20

// Remote calls a model server over HTTP. The server receives
// {"size":48,"pixels":[...]} with row-major intensities in [0,1] and
// answers {"scores":[...]} with one confidence per label.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a Remote classifier posting to url.
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Remote{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Size   int       `json:"size"`
	Pixels []float32 `json:"pixels"`
}

type remoteResponse struct {
	Scores []float64 `json:"scores"`
}

// Classify implements Classifier.
func (r *Remote) Classify(ctx context.Context, patch vision.Patch) ([]float64, error) {
	body, err := json.Marshal(remoteRequest{Size: vision.PatchSize, Pixels: patch.Pixels})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out remoteResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validateVector(out.Scores); err != nil {
		return nil, err
	}
	return out.Scores, nil
}

// Name implements Classifier.
func (r *Remote) Name() string { return BackendRemote }

func validateVector(scores []float64) error {
	if len(scores) != NumLabels {
		return fmt.Errorf("%w: got %d values, want %d", ErrBadVector, len(scores), NumLabels)
	}
	for _, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrBadVector)
		}
	}
	return nil
}

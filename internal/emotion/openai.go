// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/olegiv/ostress-go/internal/vision"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const openAIPrompt = `You are a facial expression classifier. The image is a 48x48 grayscale face crop.
Reply with a single JSON object and nothing else. Its keys are exactly
"Angry", "Disgust", "Fear", "Happy", "Sad", "Surprise", "Neutral" and its values are
probabilities between 0 and 1 that sum to 1.`

// OpenAI classifies patches with a vision-capable chat model.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI classifier. baseURL may be empty to use the
// public API endpoint.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Classify implements Classifier.
func (o *OpenAI) Classify(ctx context.Context, patch vision.Patch) ([]float64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, patch.Image()); err != nil {
		return nil, fmt.Errorf("encoding patch: %w", err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAIPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Classify this face."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	return parseLabelScores(resp.Choices[0].Message.Content)
}

// Name implements Classifier.
func (o *OpenAI) Name() string { return BackendOpenAI }

// parseLabelScores turns a {"Label": p, ...} reply into a confidence
// vector. Missing labels score 0; a Markdown code fence is tolerated.
func parseLabelScores(content string) ([]float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var byLabel map[string]float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &byLabel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVector, err)
	}

	scores := make([]float64, NumLabels)
	matched := 0
	for i, label := range Labels {
		for k, v := range byLabel {
			if strings.EqualFold(k, label) {
				scores[i] = v
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: no known labels in reply", ErrBadVector)
	}
	if err := validateVector(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

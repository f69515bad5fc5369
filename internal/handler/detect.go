// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/olegiv/ostress-go/internal/detect"
	"github.com/olegiv/ostress-go/internal/middleware"
	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/service"
	"github.com/olegiv/ostress-go/internal/store"
	"github.com/olegiv/ostress-go/internal/vision"
)

// FrameBoundary separates the parts of the /video_feed response.
const FrameBoundary = "frame"

// DetectHandler serves single-shot detection and the annotated video feed.
type DetectHandler struct {
	pipeline *detect.Pipeline
	logs     *service.StressLogService
	avail    *store.Availability
}

// NewDetectHandler creates a new DetectHandler.
func NewDetectHandler(pipeline *detect.Pipeline, logs *service.StressLogService, avail *store.Availability) *DetectHandler {
	return &DetectHandler{
		pipeline: pipeline,
		logs:     logs,
		avail:    avail,
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

// DetectStress handles POST /api/detect-stress. The image is a base64
// string, optionally with a data-URL prefix. A capture without a face is
// answered 200 with success false and is not recorded.
func (h *DetectHandler) DetectStress(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, middleware.MessageUnauthorized)
		return
	}

	var in detectRequest
	if err := decodeJSON(w, r, &in, maxDetectBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if in.Image == "" {
		writeJSONError(w, http.StatusBadRequest, "No image provided")
		return
	}

	data, err := decodeImagePayload(in.Image)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	res, err := h.pipeline.DetectStress(r.Context(), data)
	switch {
	case errors.Is(err, detect.ErrNoFace):
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No face detected",
		})
		return
	case errors.Is(err, vision.ErrInvalidImage):
		writeJSONError(w, http.StatusBadRequest, "Invalid image")
		return
	case errors.Is(err, detect.ErrBusy):
		slog.Warn("detection rejected, workers busy", "user_id", p.SubjectID)
		writeJSONError(w, http.StatusServiceUnavailable, "Detection service busy, try again")
		return
	case err != nil:
		writeServiceError(w, r, "Detection", err)
		return
	}

	if err := h.avail.Check(); err != nil {
		slog.Warn("stress event not recorded, database unavailable", "user_id", p.SubjectID)
	} else if _, err := h.logs.Record(r.Context(), model.StressEvent{
		UserID:          p.SubjectID,
		Username:        p.Username,
		StressLevel:     res.StressLevel,
		DetectedEmotion: res.Emotion,
	}); err != nil {
		writeServiceError(w, r, "Detection", err)
		return
	}

	writeJSONSuccess(w, map[string]any{
		"stress_level": res.StressLevel,
		"emotion":      res.Emotion,
		"message":      res.Message,
	})
}

// decodeImagePayload strips an optional data-URL prefix and decodes the
// base64 body.
func decodeImagePayload(s string) ([]byte, error) {
	if i := strings.LastIndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if len(s) > base64.StdEncoding.EncodedLen(vision.MaxImageBytes) {
		return nil, vision.ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, nil
}

// VideoFeed handles GET /video_feed: annotated camera frames as
// multipart/x-mixed-replace. Only one feed may hold the camera.
func (h *DetectHandler) VideoFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream, err := h.pipeline.OpenStream(ctx)
	switch {
	case errors.Is(err, detect.ErrDeviceBusy):
		writeJSONError(w, http.StatusConflict, "Video stream already in use")
		return
	case errors.Is(err, detect.ErrNoSource):
		writeJSONError(w, http.StatusServiceUnavailable, "No camera configured")
		return
	case err != nil:
		writeServiceError(w, r, "Video feed", err)
		return
	}
	defer func() { _ = stream.Close() }()

	mw := multipart.NewWriter(w)
	_ = mw.SetBoundary(FrameBoundary)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+FrameBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	frames := 0
	for frame, err := range stream.Frames(ctx) {
		if err != nil {
			slog.Warn("video feed frame failed", "error", err)
			break
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(frame))},
		})
		if err != nil {
			break
		}
		if _, err := part.Write(frame); err != nil {
			break
		}
		if err := rc.Flush(); err != nil {
			break
		}
		frames++
	}
	if ctx.Err() == nil {
		_ = mw.Close()
	}
	slog.Info("video feed ended", "frames", frames)
}

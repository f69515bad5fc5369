// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ostress-go/internal/model"
	"github.com/olegiv/ostress-go/internal/testutil"
)

func TestEventService_LogEvent(t *testing.T) {
	ctx := context.Background()
	svc := NewEventService(testutil.TestDB(t))

	require.NoError(t, svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, "started", nil))
	require.NoError(t, svc.LogAuthEvent(ctx, model.EventLevelWarning, "login failed", map[string]any{"username": "bob"}))

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byMessage := map[string]model.SystemEvent{}
	for _, e := range events {
		byMessage[e.Message] = e
	}

	started := byMessage["started"]
	assert.Equal(t, "{}", started.Metadata)
	assert.Equal(t, model.EventCategorySystem, started.Category)

	failed := byMessage["login failed"]
	assert.Equal(t, model.EventCategoryAuth, failed.Category)
	assert.Equal(t, model.EventLevelWarning, failed.Level)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(failed.Metadata), &meta))
	assert.Equal(t, "bob", meta["username"])
}

func TestEventService_ListCap(t *testing.T) {
	ctx := context.Background()
	svc := NewEventService(testutil.TestDB(t))

	for i := 0; i < SystemEventsLimit+5; i++ {
		require.NoError(t, svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategorySystem, fmt.Sprintf("e%d", i), nil))
	}

	events, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, SystemEventsLimit)
}

func newStressLog(t *testing.T) *StressLogService {
	t.Helper()
	svc := NewStressLogService(testutil.TestDB(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc
}

func TestStressLog_Record(t *testing.T) {
	svc := newStressLog(t)

	e, err := svc.Record(context.Background(), model.StressEvent{
		UserID:          "7",
		Username:        "bob",
		StressLevel:     72,
		DetectedEmotion: "Fear",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	_, err = svc.Record(context.Background(), model.StressEvent{UserID: "7", Username: "bob", StressLevel: 101, DetectedEmotion: "Fear"})
	assert.Error(t, err, "level outside 0..100 is rejected by the store")
}

func TestStressLog_RecordRejectsUnknownEmotion(t *testing.T) {
	ctx := context.Background()
	svc := newStressLog(t)

	_, err := svc.Record(ctx, model.StressEvent{UserID: "7", Username: "bob", StressLevel: 40, DetectedEmotion: "happy"})
	assert.ErrorIs(t, err, ErrInvalidEmotion)

	_, err = svc.Record(ctx, model.StressEvent{UserID: "7", Username: "bob", StressLevel: 50, DetectedEmotion: "Unknown"})
	require.NoError(t, err)

	events, err := svc.List(ctx, model.Principal{SubjectID: "7", Role: model.RoleUser})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Unknown", events[0].DetectedEmotion)
}

func TestStressLog_ListScoping(t *testing.T) {
	ctx := context.Background()
	svc := newStressLog(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, model.StressEvent{UserID: "1", Username: "alice", StressLevel: 10 * i, DetectedEmotion: "Happy"})
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, model.StressEvent{UserID: "2", Username: "bob", StressLevel: 90, DetectedEmotion: "Angry"})
	require.NoError(t, err)

	alice := model.Principal{SubjectID: "1", Username: "alice", Role: model.RoleUser}
	events, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "1", e.UserID)
	}
	assert.Equal(t, 20, events[0].StressLevel, "newest first")

	admin := model.Principal{SubjectID: model.SuperAdminSubject, Username: "admin", Role: model.RoleAdmin}
	events, err = svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "2", events[0].UserID)

	nobody := model.Principal{SubjectID: "99", Username: "nobody", Role: model.RoleUser}
	events, err = svc.List(ctx, nobody)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStressLog_ListLimits(t *testing.T) {
	ctx := context.Background()
	svc := newStressLog(t)

	for i := 0; i < model.AdminEventsLimit+10; i++ {
		_, err := svc.Record(ctx, model.StressEvent{UserID: "1", Username: "alice", StressLevel: 50, DetectedEmotion: "Surprise"})
		require.NoError(t, err)
	}

	events, err := svc.List(ctx, model.Principal{SubjectID: "1", Role: model.RoleUser})
	require.NoError(t, err)
	assert.Len(t, events, model.UserEventsLimit)

	events, err = svc.List(ctx, model.Principal{SubjectID: "admin", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, events, model.AdminEventsLimit)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default schedules.
const (
	DefaultHealthCheckSchedule = "@every 30s"
	DefaultCleanupSchedule     = "@every 1h"
)

// jobTimeout bounds a single job run.
const jobTimeout = 30 * time.Second

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type registeredJob struct {
	name        string
	description string
	schedule    string
	entryID     cron.EntryID
	run         JobFunc

	mu      sync.Mutex
	lastErr error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
}

// Scheduler handles periodic jobs such as the store availability check.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a new scheduler instance. Overlapping runs of the same job
// are skipped and job panics are recovered.
func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
		jobs:   make(map[string]*registeredJob),
	}
}

// ValidateSchedule reports whether spec is a valid cron expression or descriptor.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Add registers a job under a unique name.
func (s *Scheduler) Add(name, description, schedule string, run JobFunc) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job already registered: %s", name)
	}

	job := &registeredJob{
		name:        name,
		description: description,
		schedule:    schedule,
		run:         run,
	}
	id, err := s.cron.AddFunc(schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	job.entryID = id
	s.jobs[name] = job

	s.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) execute(job *registeredJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := job.run(ctx)
	job.mu.Lock()
	job.lastErr = err
	job.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "job", job.name, "error", err, "category", "system")
	}
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		entry := s.cron.Entry(job.entryID)
		info := JobInfo{
			Name:        job.name,
			Description: job.description,
			Schedule:    job.schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
		}
		job.mu.Lock()
		if job.lastErr != nil {
			info.LastError = job.lastErr.Error()
		}
		job.mu.Unlock()
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// TriggerNow runs a job synchronously, outside its schedule.
func (s *Scheduler) TriggerNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.logger.Info("manually triggering job", "name", name)
	s.execute(job)

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.lastErr
}

// UpdateSchedule replaces the schedule of a registered job.
func (s *Scheduler) UpdateSchedule(name, schedule string) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("applying new schedule: %w", err)
	}
	s.cron.Remove(job.entryID)
	job.entryID = id
	job.schedule = schedule

	s.logger.Info("updated job schedule", "name", name, "schedule", schedule)
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

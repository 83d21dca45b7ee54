// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
)

const defaultSyncInterval = 5 * time.Minute

// Job runs periodic sync passes in the background until stopped.
type Job struct {
	engine   *Engine
	interval time.Duration
	log      *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewJob creates a background job over the given engine. A non-positive
// interval falls back to the 5 minute default.
func NewJob(engine *Engine, interval time.Duration, log *logger.Logger) *Job {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Job{
		engine:   engine,
		interval: interval,
		log:      log,
	}
}

// Start launches the ticker goroutine. An immediate pass runs first so a
// freshly unlocked vault reconciles without waiting a full interval.
// Calling Start on a running job is a no-op.
func (j *Job) Start(ctx context.Context) {
	if j.done != nil {
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)

		j.runOnce(ctx)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.log.Info().Msg("sync job: stopped")
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()
	j.log.Info().Dur("interval", j.interval).Msg("sync job: started")
}

// Stop cancels the job and waits for any in-flight pass to finish.
// Stopping a job that was never started is a no-op.
func (j *Job) Stop() {
	if j.done == nil {
		return
	}
	j.cancel()
	<-j.done
	j.cancel = nil
	j.done = nil
}

func (j *Job) runOnce(ctx context.Context) {
	err := j.engine.RunPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		j.log.Error().Err(err).Msg("sync job: pass failed")
	}
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/testutil"
)

func TestNew(t *testing.T) {
	logger := testutil.TestLogger()

	s := New(logger)
	require.NotNil(t, s)
	assert.NotNil(t, s.cron)
	assert.Same(t, logger, s.logger)
	assert.Empty(t, s.List())
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(testutil.TestLogger())
	require.NoError(t, s.Add(Job{Name: "noop", Schedule: "@hourly", Run: func(context.Context) error { return nil }}))

	s.Start()
	s.Stop()
}

func TestScheduler_Add(t *testing.T) {
	s := New(testutil.TestLogger())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "b", Schedule: "* * * * *", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "a", Schedule: "0 3 * * *", Run: noop}))

	assert.Error(t, s.Add(Job{Name: "a", Schedule: "* * * * *", Run: noop}), "duplicate name")
	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "not a schedule", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "", Schedule: "* * * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "nil-run", Schedule: "* * * * *"}))

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
}

func TestScheduler_Trigger(t *testing.T) {
	s := New(testutil.TestLogger())

	runs := 0
	require.NoError(t, s.Add(Job{Name: "count", Schedule: "@daily", Run: func(context.Context) error {
		runs++
		return nil
	}}))
	boom := errors.New("boom")
	require.NoError(t, s.Add(Job{Name: "fail", Schedule: "@daily", Run: func(context.Context) error { return boom }}))

	require.NoError(t, s.Trigger(context.Background(), "count"))
	assert.Equal(t, 1, runs)

	assert.ErrorIs(t, s.Trigger(context.Background(), "fail"), boom)
	assert.ErrorIs(t, s.Trigger(context.Background(), "missing"), ErrJobNotFound)

	byName := map[string]JobInfo{}
	for _, j := range s.List() {
		byName[j.Name] = j
	}
	assert.False(t, byName["count"].LastRun.IsZero())
	assert.Empty(t, byName["count"].LastError)
	assert.Equal(t, "boom", byName["fail"].LastError)
}

func TestExpirePopupsJob(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	popups := store.NewPopupStore(db)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &model.Popup{Title: "Spring sale", EndsAt: &past, Pages: []string{}}
	expired.IsActive = true
	running := &model.Popup{Title: "Summer sale", EndsAt: &future, Pages: []string{}}
	running.IsActive = true
	require.NoError(t, popups.Create(ctx, expired))
	require.NoError(t, popups.Create(ctx, running))

	job := ExpirePopupsJob(popups, nil, func() time.Time { return now })
	require.NoError(t, job.Run(ctx))

	got, err := popups.Get(ctx, expired.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = popups.Get(ctx, running.ID, false)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestPurgeLeadsJob(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	leads := store.NewLeadStore(db)

	closed := &model.Lead{Name: "Ada", Email: "ada@example.com", Status: model.LeadStatusClosed}
	open := &model.Lead{Name: "Grace", Email: "grace@example.com", Status: model.LeadStatusNew}
	require.NoError(t, leads.Create(ctx, closed))
	require.NoError(t, leads.Create(ctx, open))

	later := func() time.Time { return time.Now().Add(48 * time.Hour) }
	job := PurgeLeadsJob(leads, 24*time.Hour, later)
	require.NoError(t, job.Run(ctx))

	_, err := leads.Get(ctx, closed.ID, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = leads.Get(ctx, open.ID, false)
	assert.NoError(t, err)
}

func TestPruneEventsJob(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	events := store.NewEventStore(db)

	old := &model.EventLog{Level: model.EventLevelInfo, Category: model.EventCategorySystem, Message: "old", CreatedAt: time.Now().Add(-100 * 24 * time.Hour)}
	fresh := &model.EventLog{Level: model.EventLevelInfo, Category: model.EventCategorySystem, Message: "fresh", CreatedAt: time.Now()}
	require.NoError(t, events.Add(ctx, old))
	require.NoError(t, events.Add(ctx, fresh))

	job := PruneEventsJob(events, 90*24*time.Hour, time.Now)
	require.NoError(t, job.Run(ctx))

	n, err := events.Count(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// blockingJob signals started and waits for its context.
func blockingJob(started chan<- struct{}) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestScheduler_StopCancelsScheduledRun(t *testing.T) {
	s := New(testutil.TestLogger())
	started := make(chan struct{}, 1)
	require.NoError(t, s.Add(Job{Name: "slow", Schedule: "@every 1s", Run: blockingJob(started)}))

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		s.Stop()
		t.Fatal("job never ran")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for the job timeout")
	}

	jobs := s.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, context.Canceled.Error(), jobs[0].LastError)
}

func TestScheduler_StopCancelsTriggeredRun(t *testing.T) {
	s := New(testutil.TestLogger())
	started := make(chan struct{}, 1)
	require.NoError(t, s.Add(Job{Name: "slow", Schedule: "@daily", Run: blockingJob(started)}))
	s.Start()

	errc := make(chan error, 1)
	go func() { errc <- s.Trigger(context.Background(), "slow") }()
	<-started

	s.Stop()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("triggered run outlived Stop")
	}
}

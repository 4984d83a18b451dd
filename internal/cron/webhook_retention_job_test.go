package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tradelane/marketpay-backend/pkg/logger"
)

type fakeEventPruner struct {
	deleted    int64
	err        error
	lastCutoff time.Time
	called     int
}

func (f *fakeEventPruner) PruneProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return f.deleted, f.err
}

func newWebhookRetentionJob(t *testing.T, pruner *fakeEventPruner, retention time.Duration) *webhookRetentionJob {
	t.Helper()
	jobIface, err := NewWebhookRetentionJob(WebhookRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Events:    pruner,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("NewWebhookRetentionJob: %v", err)
	}
	job, ok := jobIface.(*webhookRetentionJob)
	if !ok {
		t.Fatalf("expected webhookRetentionJob, got %T", jobIface)
	}
	return job
}

func TestWebhookRetentionJobComputesCutoff(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	pruner := &fakeEventPruner{deleted: 4}
	job := newWebhookRetentionJob(t, pruner, 30*24*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := now.Add(-30 * 24 * time.Hour)
	if !pruner.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, pruner.lastCutoff)
	}
	if pruner.called != 1 {
		t.Fatalf("expected one prune call, got %d", pruner.called)
	}
}

func TestWebhookRetentionJobDefaultsRetention(t *testing.T) {
	job := newWebhookRetentionJob(t, &fakeEventPruner{}, 0)
	if job.retention != defaultEventRetention {
		t.Fatalf("expected default retention %s, got %s", defaultEventRetention, job.retention)
	}
}

func TestWebhookRetentionJobPropagatesError(t *testing.T) {
	pruner := &fakeEventPruner{err: errors.New("boom")}
	job := newWebhookRetentionJob(t, pruner, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

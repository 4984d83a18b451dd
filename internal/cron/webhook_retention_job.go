package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tradelane/marketpay-backend/pkg/logger"
)

const defaultEventRetention = 90 * 24 * time.Hour

type webhookEventPruner interface {
	PruneProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookRetentionJobParams configure the webhook event log cleanup.
type WebhookRetentionJobParams struct {
	Logger    *logger.Logger
	Events    webhookEventPruner
	Retention time.Duration
}

// NewWebhookRetentionJob builds the job that prunes processed webhook events.
// Unprocessed rows are kept regardless of age so failures stay investigable.
func NewWebhookRetentionJob(params WebhookRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("webhook event repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultEventRetention
	}
	return &webhookRetentionJob{
		logg:      params.Logger,
		events:    params.Events,
		retention: retention,
		now:       time.Now,
	}, nil
}

type webhookRetentionJob struct {
	logg      *logger.Logger
	events    webhookEventPruner
	retention time.Duration
	now       func() time.Time
}

func (j *webhookRetentionJob) Name() string { return "webhook-retention" }

func (j *webhookRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.events.PruneProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("webhook retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "webhook event retention cleanup complete")
	return nil
}

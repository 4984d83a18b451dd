package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

const (
	defaultAutoReleaseDays = 7
	autoReleaseBatchSize   = 100
)

type autoReleasableLister interface {
	ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type payoutReleaser interface {
	Release(ctx context.Context, paymentID uuid.UUID, adminForce bool) (*models.PaymentPayout, error)
}

// AutoReleaseJobParams configure the escrow auto-release sweep.
type AutoReleaseJobParams struct {
	Logger          *logger.Logger
	Payments        autoReleasableLister
	Engine          payoutReleaser
	AutoReleaseDays int
	BatchSize       int
}

// NewAutoReleaseJob builds the job that releases escrow past the holding window.
func NewAutoReleaseJob(params AutoReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments lister required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	days := params.AutoReleaseDays
	if days <= 0 {
		days = defaultAutoReleaseDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = autoReleaseBatchSize
	}
	return &autoReleaseJob{
		logg:     params.Logger,
		payments: params.Payments,
		engine:   params.Engine,
		days:     days,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type autoReleaseJob struct {
	logg     *logger.Logger
	payments autoReleasableLister
	engine   payoutReleaser
	days     int
	batch    int
	now      func() time.Time
}

func (j *autoReleaseJob) Name() string { return "auto-release" }

// Run releases every eligible payment, isolating failures so one stuck payout
// does not abort the sweep.
func (j *autoReleaseJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * 24 * time.Hour)
	candidates, err := j.payments.ListAutoReleasable(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list auto-releasable payments: %w", err)
	}

	var errs []error
	released := 0
	for _, payment := range candidates {
		if _, err := j.engine.Release(ctx, payment.ID, false); err != nil {
			paymentCtx := j.logg.WithPaymentID(ctx, payment.ID.String())
			j.logg.Error(paymentCtx, "auto-release failed", err)
			errs = append(errs, fmt.Errorf("release payment %s: %w", payment.ID, err))
			continue
		}
		released++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(candidates),
		"released":   released,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "escrow auto-release sweep complete")
	return multierr.Combine(errs...)
}

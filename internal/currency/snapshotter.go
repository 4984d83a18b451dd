package currency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

// RateSource resolves the current INR exchange rate for a currency.
type RateSource interface {
	GetRate(ctx context.Context, target enums.Currency) (*Rate, error)
}

// SnapshotterParams groups dependencies for the snapshotter.
type SnapshotterParams struct {
	Repo   SnapshotRepository
	Rates  RateSource
	Logger *logger.Logger
}

// Snapshotter freezes the exchange rate for an order at checkout. A snapshot
// is written once; later calls for the same order return the original row.
type Snapshotter struct {
	repo  SnapshotRepository
	rates RateSource
	logg  *logger.Logger
}

// NewSnapshotter builds the snapshotter.
func NewSnapshotter(params SnapshotterParams) (*Snapshotter, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot repo is required")
	}
	if params.Rates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rate source is required")
	}
	return &Snapshotter{repo: params.Repo, rates: params.Rates, logg: params.Logger}, nil
}

// SnapshotForOrder returns the order's frozen rate, creating it on first call.
func (s *Snapshotter) SnapshotForOrder(ctx context.Context, orderID uuid.UUID, totalPaise int64, buyerCurrency enums.Currency) (*models.OrderCurrencySnapshot, error) {
	if totalPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if !buyerCurrency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rate, err := s.rates.GetRate(ctx, buyerCurrency)
	if err != nil {
		return nil, err
	}

	convertedMinor, err := ConvertPaise(totalPaise, rate.RateMicros, buyerCurrency)
	if err != nil {
		return nil, err
	}

	snapshot := &models.OrderCurrencySnapshot{
		OrderID:             orderID,
		BaseCurrency:        enums.CurrencyINR,
		BuyerCurrency:       buyerCurrency,
		RateMicros:          rate.RateMicros,
		RateFetchedAt:       rate.FetchedAt,
		RateProvider:        rate.Provider,
		BaseTotalPaise:      totalPaise,
		ConvertedTotalMinor: convertedMinor,
	}

	if err := s.repo.Create(ctx, snapshot); err != nil {
		// a concurrent checkout won the insert; the frozen rate wins
		if dbpkg.IsUniqueViolation(err, "ux_currency_snapshots_order") {
			return s.repo.FindByOrderID(ctx, orderID)
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":        orderID.String(),
			"buyer_currency":  buyerCurrency.String(),
			"rate_micros":     rate.RateMicros,
			"converted_minor": convertedMinor,
		})
		s.logg.Info(logCtx, "currency snapshot created")
	}
	return snapshot, nil
}

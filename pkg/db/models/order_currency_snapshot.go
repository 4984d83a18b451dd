package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// OrderCurrencySnapshot freezes the exchange rate for an order at checkout.
// Created exactly once per order and never mutated, so refunds and payouts
// always reconstruct the same historical rate.
type OrderCurrencySnapshot struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID      `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_currency_snapshots_order"`
	BaseCurrency        enums.Currency `gorm:"column:base_currency;not null;default:'INR'"`
	BuyerCurrency       enums.Currency `gorm:"column:buyer_currency;not null"`
	RateMicros          int64          `gorm:"column:rate_micros;not null"`
	RateFetchedAt       time.Time      `gorm:"column:rate_fetched_at;not null"`
	RateProvider        string         `gorm:"column:rate_provider;not null"`
	BaseTotalPaise      int64          `gorm:"column:base_total_paise;not null"`
	ConvertedTotalMinor int64          `gorm:"column:converted_total_minor;not null"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
}

package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

const (
	freshRateKeyPrefix = "mp:fx:rate:"
	lastRateKeyPrefix  = "mp:fx:last:"
)

// Rate is an INR exchange rate resolved through the cache.
type Rate struct {
	RateMicros int64     `json:"rateMicros"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Provider   string    `json:"provider"`
	Stale      bool      `json:"-"`
}

// RateStore is the cache backend; satisfied by pkg/redis.Client.
type RateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RateCacheParams groups dependencies for the rate cache.
type RateCacheParams struct {
	Store  RateStore
	Rates  RateClient
	TTL    time.Duration
	Logger *logger.Logger
}

// RateCache resolves exchange rates provider-first with a TTL cache and a
// last-known fallback when the provider is unreachable.
type RateCache struct {
	store  RateStore
	rates  RateClient
	ttl    time.Duration
	logg   *logger.Logger
	flight singleflight.Group
}

// NewRateCache builds the rate cache.
func NewRateCache(params RateCacheParams) (*RateCache, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rate store is required")
	}
	if params.Rates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rate client is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RateCache{
		store: params.Store,
		rates: params.Rates,
		ttl:   ttl,
		logg:  params.Logger,
	}, nil
}

// GetRate returns the INR→target rate, serving from cache when fresh. Cache
// misses collapse into a single provider call per currency.
func (c *RateCache) GetRate(ctx context.Context, target enums.Currency) (*Rate, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if target == enums.CurrencyINR {
		return &Rate{RateMicros: RateScale, FetchedAt: time.Now().UTC(), Provider: "identity"}, nil
	}

	freshKey := freshRateKeyPrefix + target.String()
	if rate, ok := c.lookup(ctx, freshKey); ok {
		return rate, nil
	}

	result, err, _ := c.flight.Do(target.String(), func() (interface{}, error) {
		// another caller may have refreshed while we queued
		if rate, ok := c.lookup(ctx, freshKey); ok {
			return rate, nil
		}
		return c.refresh(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Rate), nil
}

func (c *RateCache) lookup(ctx context.Context, key string) (*Rate, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logg != nil {
			c.logg.Error(ctx, "fx rate cache read failed", err)
		}
		return nil, false
	}

	var rate Rate
	if err := json.Unmarshal([]byte(raw), &rate); err != nil || rate.RateMicros <= 0 {
		return nil, false
	}
	return &rate, true
}

func (c *RateCache) refresh(ctx context.Context, target enums.Currency) (*Rate, error) {
	micros, fetchErr := c.rates.FetchRate(ctx, target)
	if fetchErr == nil {
		rate := &Rate{
			RateMicros: micros,
			FetchedAt:  time.Now().UTC(),
			Provider:   c.rates.ProviderName(),
		}
		c.persist(ctx, target, rate)
		return rate, nil
	}

	// provider down: serve the last-known rate if one was ever stored
	if last, ok := c.lookup(ctx, lastRateKeyPrefix+target.String()); ok {
		last.Stale = true
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"currency":   target.String(),
				"fetched_at": last.FetchedAt,
			})
			c.logg.Warn(logCtx, "fx provider unavailable, serving stale rate")
		}
		return last, nil
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, fmt.Sprintf("no exchange rate available for %s", target))
}

func (c *RateCache) persist(ctx context.Context, target enums.Currency, rate *Rate) {
	payload, err := json.Marshal(rate)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, freshRateKeyPrefix+target.String(), string(payload), c.ttl); err != nil && c.logg != nil {
		c.logg.Error(ctx, "fx rate cache write failed", err)
	}
	if err := c.store.Set(ctx, lastRateKeyPrefix+target.String(), string(payload), 0); err != nil && c.logg != nil {
		c.logg.Error(ctx, "fx last-known rate write failed", err)
	}
}

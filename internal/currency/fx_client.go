package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelane/marketpay-backend/pkg/config"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// RateClient fetches a live INR exchange rate from the configured FX provider.
type RateClient interface {
	FetchRate(ctx context.Context, target enums.Currency) (int64, error)
	ProviderName() string
}

type httpRateClient struct {
	httpClient *http.Client
	baseURL    string
	provider   string
	apiKey     string
}

// NewRateClient builds the HTTP client for the configured FX rate provider.
func NewRateClient(cfg config.FXConfig) (RateClient, error) {
	baseURL := strings.TrimSpace(cfg.ProviderURL)
	if baseURL == "" {
		return nil, fmt.Errorf("fx provider url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpRateClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		provider:   strings.TrimSpace(cfg.ProviderName),
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}, nil
}

func (c *httpRateClient) ProviderName() string {
	return c.provider
}

// FetchRate queries the provider for the INR→target rate and returns it in micros.
func (c *httpRateClient) FetchRate(ctx context.Context, target enums.Currency) (int64, error) {
	if !target.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	query := url.Values{}
	query.Set("base", enums.CurrencyINR.String())
	query.Set("symbols", target.String())
	if c.apiKey != "" {
		query.Set("access_key", c.apiKey)
	}

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build fx rate request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute fx rate request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return 0, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"fx rate request failed",
		)
	}

	var apiResp struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode fx rate response")
	}

	rate, ok := apiResp.Rates[target.String()]
	if !ok || rate <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fx provider returned no rate for %s", target))
	}

	micros := decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(RateScale)).Round(0).IntPart()
	if micros <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fx rate for %s rounds to zero", target))
	}
	return micros, nil
}

package currency

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tradelane/marketpay-backend/pkg/config"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestRateClient(t *testing.T, rt roundTripFunc) RateClient {
	t.Helper()

	client, err := NewRateClient(config.FXConfig{
		ProviderURL:  "http://fx.test/latest",
		ProviderName: "test-fx",
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("new rate client: %v", err)
	}
	client.(*httpRateClient).httpClient = &http.Client{Transport: rt}
	return client
}

func TestFetchRateRequestAndConversion(t *testing.T) {
	var capturedQuery string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedQuery = req.URL.RawQuery
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"rates":{"USD":0.011950}}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestRateClient(t, rt)

	micros, err := client.FetchRate(context.Background(), enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("fetch rate: %v", err)
	}
	if micros != 11950 {
		t.Fatalf("expected 11950 micros, got %d", micros)
	}
	if !strings.Contains(capturedQuery, "base=INR") || !strings.Contains(capturedQuery, "symbols=USD") {
		t.Fatalf("unexpected query %q", capturedQuery)
	}
}

func TestFetchRateProviderError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader(`{"error":"maintenance"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestRateClient(t, rt)

	_, err := client.FetchRate(context.Background(), enums.CurrencyUSD)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestFetchRateMissingSymbol(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"rates":{}}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestRateClient(t, rt)

	_, err := client.FetchRate(context.Background(), enums.CurrencyEUR)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

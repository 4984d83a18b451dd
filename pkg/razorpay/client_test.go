package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()

	client, err := NewClient(Params{
		KeyID:         "rzp_test_key",
		KeySecret:     "secret",
		WebhookSecret: "whsec",
		AccountNumber: "2323230099089860",
	}, WithBaseURL("http://razorpay.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientCreateIntentRequest(t *testing.T) {
	const expectedURL = "http://razorpay.test/v1/orders"
	respBody := `{"id":"order_ABC123","amount":19999,"currency":"INR","status":"created"}`

	orderID := uuid.New()
	var capturedURL string
	var capturedAuthUser string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuthUser, _, _ = req.BasicAuth()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["amount"] != float64(19999) {
			t.Fatalf("unexpected amount %v", payload["amount"])
		}
		if payload["currency"] != "INR" {
			t.Fatalf("unexpected currency %v", payload["currency"])
		}
		if payload["receipt"] != orderID.String() {
			t.Fatalf("unexpected receipt %v", payload["receipt"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := testClient(t, rt)

	intent, err := client.CreateIntent(context.Background(), providers.IntentParams{
		OrderID:     orderID,
		AmountMinor: 19999,
		Currency:    enums.CurrencyINR,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuthUser != "rzp_test_key" {
		t.Fatalf("basic auth key id missing, got %q", capturedAuthUser)
	}
	if intent.ProviderIntentID != "order_ABC123" {
		t.Fatalf("unexpected intent id %q", intent.ProviderIntentID)
	}
}

func TestClientCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	client := testClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	_, err := client.CreateIntent(context.Background(), providers.IntentParams{
		OrderID:     uuid.New(),
		AmountMinor: 0,
		Currency:    enums.CurrencyINR,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientCreatePayoutMapsStatus(t *testing.T) {
	respBody := `{"id":"pout_XYZ789","status":"processed"}`

	var capturedPath string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["account_number"] != "2323230099089860" {
			t.Fatalf("unexpected account number %v", payload["account_number"])
		}
		if payload["fund_account_id"] != "fa_seller1" {
			t.Fatalf("unexpected fund account %v", payload["fund_account_id"])
		}
		if payload["currency"] != "INR" {
			t.Fatalf("unexpected currency %v", payload["currency"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := testClient(t, rt)

	result, err := client.CreatePayout(context.Background(), providers.PayoutParams{
		AccountRef:     "fa_seller1",
		NetAmountPaise: 19499,
		Reference:      "payout-1",
	})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if capturedPath != "/v1/payouts" {
		t.Fatalf("unexpected path %q", capturedPath)
	}
	if result.ProviderPayoutRef != "pout_XYZ789" {
		t.Fatalf("unexpected payout ref %q", result.ProviderPayoutRef)
	}
	if result.Status != enums.PayoutStatusSettled {
		t.Fatalf("expected settled, got %s", result.Status)
	}
}

func TestClientCreatePayoutAPIFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"description":"upstream down"}}`)),
			Header:     http.Header{},
		}, nil
	})

	client := testClient(t, rt)

	_, err := client.CreatePayout(context.Background(), providers.PayoutParams{
		AccountRef:     "fa_seller1",
		NetAmountPaise: 100,
		Reference:      "payout-2",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	client := testClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	payload := []byte(`{"event":"payment.captured"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	if err := client.VerifySignature(payload, signature); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	if err := client.VerifySignature(payload, "deadbeef"); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if err := client.VerifySignature(payload, ""); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for missing header, got %v", err)
	}
}

func TestMapPayoutStatus(t *testing.T) {
	cases := map[string]enums.PayoutStatus{
		"processed":  enums.PayoutStatusSettled,
		"queued":     enums.PayoutStatusProcessing,
		"processing": enums.PayoutStatusProcessing,
		"reversed":   enums.PayoutStatusFailed,
		"cancelled":  enums.PayoutStatusFailed,
		"unknown":    enums.PayoutStatusProcessing,
	}
	for raw, want := range cases {
		if got := mapPayoutStatus(raw); got != want {
			t.Errorf("mapPayoutStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

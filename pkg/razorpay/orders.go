package razorpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

// Name identifies the provider for persistence and routing.
func (c *Client) Name() enums.PaymentProvider {
	return enums.ProviderRazorpay
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateIntent creates a Razorpay order; the checkout widget charges against it.
func (c *Client) CreateIntent(ctx context.Context, params providers.IntentParams) (*providers.Intent, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	if params.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}

	req := orderRequest{
		Amount:   params.AmountMinor,
		Currency: strings.ToUpper(params.Currency.String()),
		Receipt:  params.OrderID.String(),
		Notes:    params.Metadata,
	}

	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "orders", req, &resp); err != nil {
		return nil, err
	}

	// Razorpay authenticates checkout with the public key id, not a secret.
	return &providers.Intent{ProviderIntentID: resp.ID}, nil
}

type refundRequest struct {
	Amount int64             `json:"amount,omitempty"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RefundPayment refunds a captured Razorpay payment and returns the refund id.
func (c *Client) RefundPayment(ctx context.Context, params providers.RefundParams) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	paymentID := strings.TrimSpace(params.ProviderIntentID)
	if paymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}

	req := refundRequest{Amount: params.AmountMinor}
	if reason := strings.TrimSpace(params.Reason); reason != "" {
		req.Notes = map[string]string{"reason": reason}
	}

	var resp refundResponse
	path := fmt.Sprintf("payments/%s/refund", url.PathEscape(paymentID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

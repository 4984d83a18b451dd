package razorpay

import (
	"context"
	"net/http"
	"strings"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

type payoutRequest struct {
	AccountNumber string `json:"account_number"`
	FundAccountID string `json:"fund_account_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Mode          string `json:"mode"`
	Purpose       string `json:"purpose"`
	ReferenceID   string `json:"reference_id"`
	Narration     string `json:"narration,omitempty"`
}

type payoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePayout transfers INR from the platform account to a seller fund account.
func (c *Client) CreatePayout(ctx context.Context, params providers.PayoutParams) (*providers.PayoutResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	if c.accountNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay payout account number not configured")
	}
	if strings.TrimSpace(params.AccountRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller fund account ref is required")
	}
	if params.NetAmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	req := payoutRequest{
		AccountNumber: c.accountNumber,
		FundAccountID: params.AccountRef,
		Amount:        params.NetAmountPaise,
		Currency:      "INR",
		Mode:          "IMPS",
		Purpose:       "payout",
		ReferenceID:   params.Reference,
		Narration:     params.Narration,
	}

	var resp payoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "payouts", req, &resp); err != nil {
		return nil, err
	}

	return &providers.PayoutResult{
		ProviderPayoutRef: resp.ID,
		Status:            mapPayoutStatus(resp.Status),
	}, nil
}

func mapPayoutStatus(raw string) enums.PayoutStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "processed":
		return enums.PayoutStatusSettled
	case "queued", "pending", "processing":
		return enums.PayoutStatusProcessing
	case "reversed", "cancelled", "rejected", "failed":
		return enums.PayoutStatusFailed
	default:
		return enums.PayoutStatusProcessing
	}
}

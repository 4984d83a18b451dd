package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

// VerifySignature authenticates a webhook delivery. Razorpay signs the raw
// body with HMAC-SHA256 over the webhook secret and sends the hex digest in
// the X-Razorpay-Signature header.
func (c *Client) VerifySignature(payload []byte, signatureHeader string) error {
	if c == nil || c.webhookSecret == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "razorpay webhook secret not configured")
	}

	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing razorpay signature header")
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid razorpay webhook signature")
	}
	return nil
}

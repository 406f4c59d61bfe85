package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/quantumflow/callengine/internal/logging"
)

// Verifier checks the HMAC-SHA256 signature of inbound webhooks
type Verifier struct {
	secret []byte
	logger *slog.Logger
}

// NewVerifier creates a verifier. An empty secret disables verification.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		logger: logging.OrDiscard(logger),
	}
}

// Enabled reports whether a secret is configured
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Sign returns the hex signature of body
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify validates signature against the raw body. The signature is the hex
// HMAC-SHA256 of the body, optionally prefixed with "sha256=".
func (v *Verifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		v.logger.Warn("webhook signature verification disabled: no secret configured")
		return nil
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}

	expected := v.Sign(body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}
